// Package transfer turns uploads into stored files and the events that
// announce them.
package transfer

import (
	"errors"
	"fmt"
	"os"

	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/store"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/types"
)

// Reserved form fields of an upload.
const (
	FieldTo   = "to"
	FieldFrom = "from"
)

// Identity of a sender the registry does not know.
const (
	UnknownSenderName = "Someone"
	UnknownSenderIcon = "📎"
)

// Identities looks up the current identity of a device.
type Identities interface {
	Get(id string) (types.DeviceInfo, bool)
}

// Publisher is the event bus as seen by the router.
type Publisher interface {
	Broadcast(eventType string, payload any, excludeID string) int
	Notify(deviceID, eventType string, payload any) int
}

type Router struct {
	store      *store.Store
	identities Identities
	bus        Publisher
}

func NewRouter(st *store.Store, identities Identities, bus Publisher) *Router {
	return &Router{store: st, identities: identities, bus: bus}
}

// Upload stores every file part of a multipart body. When the body carries
// both a to and a from field, the target device gets a file-sent event per
// stored file. Everyone gets a shared-update afterwards, even for an upload
// that stored nothing.
//
// A failing write stops the upload; files stored before it are kept and
// still announced.
func (r *Router) Upload(body []byte, boundary string) ([]types.StoredFile, error) {
	parts, skipped := ParseMultipart(body, boundary)

	var (
		to, from string
		saved    []types.StoredFile
		saveErr  error
	)
	for _, p := range parts {
		if !p.IsFile() {
			switch p.Name {
			case FieldTo:
				to = p.Value()
			case FieldFrom:
				from = p.Value()
			}
			continue
		}
		if saveErr != nil {
			continue
		}
		meta, err := r.store.Save(p.Filename, p.Data)
		if err != nil {
			if errors.Is(err, store.ErrInvalidName) {
				tool.DefaultLogger.Warnf("[Upload] Skipping part with invalid filename %q", p.Filename)
				skipped++
				continue
			}
			saveErr = err
			continue
		}
		metrics.RecordUpload(meta.Size)
		tool.DefaultLogger.Infof("[Upload] Saved %s (%d bytes)", meta.Name, meta.Size)
		saved = append(saved, meta)
	}
	if skipped > 0 {
		metrics.RecordSkippedParts(skipped)
	}

	if to != "" && from != "" {
		name, icon := UnknownSenderName, UnknownSenderIcon
		if sender, ok := r.identities.Get(from); ok {
			name, icon = sender.Name, sender.Icon
		}
		for _, f := range saved {
			r.bus.Notify(to, types.EventFileSent, types.FileSentPayload{
				Filename: f.Name,
				Size:     f.Size,
				FromName: name,
				FromIcon: icon,
			})
		}
	}
	r.bus.Broadcast(types.EventSharedUpdate, types.SharedUpdatePayload{}, "")

	if saveErr != nil {
		return saved, fmt.Errorf("upload: %w", saveErr)
	}
	return saved, nil
}

// List returns the shared files sorted by name.
func (r *Router) List() ([]types.StoredFile, error) {
	return r.store.List()
}

// Open opens a shared file for download along with its media type.
func (r *Router) Open(name string) (*os.File, types.StoredFile, string, error) {
	f, meta, err := r.store.Open(name)
	if err != nil {
		return nil, types.StoredFile{}, "", err
	}
	return f, meta, r.store.ContentType(meta.Name), nil
}

// Delete removes a shared file and tells everyone. A missing file is
// store.ErrNotFound and publishes nothing.
func (r *Router) Delete(name string) error {
	if err := r.store.Delete(name); err != nil {
		return err
	}
	safe, _ := store.SanitizeName(name)
	tool.DefaultLogger.Infof("[Delete] Removed %s", safe)
	r.bus.Broadcast(types.EventSharedUpdate, types.SharedUpdatePayload{}, "")
	return nil
}

// SharedChanged announces a change of the shared directory made outside
// the router.
func (r *Router) SharedChanged() {
	r.bus.Broadcast(types.EventSharedUpdate, types.SharedUpdatePayload{}, "")
}
