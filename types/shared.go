package types

import "time"

// ModifiedLayout is the layout of StoredFile.Modified in listings.
const ModifiedLayout = "2006-01-02 15:04"

// StoredFile is a file in the shared directory.
type StoredFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified string    `json:"modified"`
	ModTime  time.Time `json:"-"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Saved []string `json:"saved"`
}

// ServerInfo is returned by GET /api/info.
type ServerInfo struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
	URL  string `json:"url"`
}
