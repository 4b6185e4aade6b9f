package transfer

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	crlf          = []byte("\r\n")
	headerEnd     = []byte("\r\n\r\n")
	dispositionRe = regexp.MustCompile(`(?i)content-disposition`)
	filenameRe    = regexp.MustCompile(`filename="(.+?)"`)
	fieldNameRe   = regexp.MustCompile(`\bname="(.+?)"`)
)

// Part is one section of a multipart/form-data body.
type Part struct {
	// Name is the form field name, "files" for the browser upload form.
	Name string
	// Filename is set for file parts, exactly as the client sent it.
	Filename string
	// Data is the raw body of a file part, or the decoded and trimmed
	// value of a field part.
	Data []byte
}

func (p Part) IsFile() bool { return p.Filename != "" }

// Value returns a field part's value.
func (p Part) Value() string { return string(p.Data) }

// ParseMultipart splits body on boundary and returns its parts in order,
// together with the number of sections it had to skip.
//
// A section without a Content-Disposition header is ignored. A section whose
// headers never end, or that names neither a file nor a field, is skipped and
// counted. Skipping never fails the rest of the body.
func ParseMultipart(body []byte, boundary string) (parts []Part, skipped int) {
	if boundary == "" {
		return nil, 0
	}
	for _, section := range bytes.Split(body, []byte("--"+boundary)) {
		if !dispositionRe.Match(section) {
			continue
		}
		end := bytes.Index(section, headerEnd)
		if end < 0 {
			skipped++
			continue
		}
		header := strings.ToValidUTF8(string(section[:end]), "\uFFFD")
		data := bytes.TrimSuffix(section[end+len(headerEnd):], crlf)

		if m := filenameRe.FindStringSubmatch(header); m != nil {
			p := Part{Filename: m[1], Data: data}
			if n := fieldNameRe.FindStringSubmatch(header); n != nil {
				p.Name = n[1]
			}
			parts = append(parts, p)
			continue
		}
		if n := fieldNameRe.FindStringSubmatch(header); n != nil {
			value := strings.TrimSpace(strings.ToValidUTF8(string(data), "\uFFFD"))
			parts = append(parts, Part{Name: n[1], Data: []byte(value)})
			continue
		}
		skipped++
	}
	return parts, skipped
}
