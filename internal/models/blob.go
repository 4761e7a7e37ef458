package models

// BlobHandle identifies an uploaded blob.
type BlobHandle struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
