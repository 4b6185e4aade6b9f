// Package store keeps the shared files in one flat directory.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/moyoez/snapshare/types"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// tempDir holds in-flight uploads. It is a directory, so it never shows up
// as a shared file, and its name is refused as an upload name.
const tempDir = ".tmp"

// Store is the shared directory. Every name passed in is reduced to its
// basename, so nothing can be read or written outside dir.
type Store struct {
	dir string
}

// New opens dir, creating it if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve shared dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create shared dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, tempDir), 0o700); err != nil {
		return nil, fmt.Errorf("create upload temp dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

func (s *Store) Dir() string { return s.dir }

// SanitizeName returns the basename of name with both separator styles
// handled. "../../etc/passwd" becomes "passwd". The upload temp directory
// name is refused.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)
	switch base {
	case "", ".", "..", "/", tempDir:
		return "", ErrInvalidName
	}
	return base, nil
}

func (s *Store) path(name string) (string, string, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return "", "", err
	}
	return safe, filepath.Join(s.dir, safe), nil
}

// Save writes data under the sanitized name, replacing any existing file.
func (s *Store) Save(name string, data []byte) (types.StoredFile, error) {
	safe, full, err := s.path(name)
	if err != nil {
		return types.StoredFile{}, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.dir, tempDir), "upload-*")
	if err != nil {
		return types.StoredFile{}, fmt.Errorf("save %s: %w", safe, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.StoredFile{}, fmt.Errorf("save %s: %w", safe, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.StoredFile{}, fmt.Errorf("save %s: %w", safe, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return types.StoredFile{}, fmt.Errorf("save %s: %w", safe, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return types.StoredFile{}, fmt.Errorf("save %s: %w", safe, err)
	}
	return s.Stat(safe)
}

// Stat describes one regular file.
func (s *Store) Stat(name string) (types.StoredFile, error) {
	safe, full, err := s.path(name)
	if err != nil {
		return types.StoredFile{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.StoredFile{}, ErrNotFound
		}
		return types.StoredFile{}, fmt.Errorf("stat %s: %w", safe, err)
	}
	if !info.Mode().IsRegular() {
		return types.StoredFile{}, ErrNotFound
	}
	return storedFile(safe, info), nil
}

// List returns the regular files of the shared directory sorted by name.
func (s *Store) List() ([]types.StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list shared dir: %w", err)
	}
	files := make([]types.StoredFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		files = append(files, storedFile(entry.Name(), info))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open opens the file for reading. The caller closes it.
func (s *Store) Open(name string) (*os.File, types.StoredFile, error) {
	meta, err := s.Stat(name)
	if err != nil {
		return nil, types.StoredFile{}, err
	}
	f, err := os.Open(filepath.Join(s.dir, meta.Name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.StoredFile{}, ErrNotFound
		}
		return nil, types.StoredFile{}, fmt.Errorf("open %s: %w", meta.Name, err)
	}
	return f, meta, nil
}

// Delete removes the file. It returns ErrNotFound when there is none.
func (s *Store) Delete(name string) error {
	meta, err := s.Stat(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, meta.Name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", meta.Name, err)
	}
	return nil
}

// ContentType guesses the media type of a stored file, first from its
// extension and then from its leading bytes.
func (s *Store) ContentType(name string) string {
	safe, full, err := s.path(name)
	if err != nil {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(filepath.Ext(safe)); ct != "" {
		return ct
	}
	if mt, err := mimetype.DetectFile(full); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}

func storedFile(name string, info fs.FileInfo) types.StoredFile {
	return types.StoredFile{
		Name:     name,
		Size:     info.Size(),
		Modified: info.ModTime().Format(types.ModifiedLayout),
		ModTime:  info.ModTime(),
	}
}
