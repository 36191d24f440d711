package models

import "time"

// Document is one evidence artifact owned by a task.
type Document struct {
	ID        string    `db:"id" json:"id"`
	TaskID    string    `db:"task_id" json:"task_id"`
	Filename  string    `db:"filename" json:"filename"`
	Path      string    `db:"path" json:"-"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EvidenceFile is the transport tuple describing an already stored upload.
type EvidenceFile struct {
	OriginalFilename string
	StoredPath       string
	MimeType         string
	SizeBytes        int64
}

// DocumentOwner links a document to the user owning its task.
type DocumentOwner struct {
	Document
	OwnerID string `db:"owner_id"`
}
