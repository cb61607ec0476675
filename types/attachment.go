package types

import "time"

// Attachment represents a file uploaded into a conversation.
//
// The file contents live in object storage (e.g. MinIO or GCS) under
// ObjectKey; the row here carries only metadata for listing and download.
type Attachment struct {
	// ID is the unique identifier of the attachment.
	ID int `json:"id" db:"id"`

	// ConvoID identifies the conversation the attachment was uploaded into.
	ConvoID int `json:"convo_id" db:"convo_id"`

	// Uploader is the username of the authenticated user who uploaded it.
	Uploader string `json:"user" db:"user"`

	// Filename is the original client-supplied file name.
	Filename string `json:"filename" db:"filename"`

	// ObjectKey is the identifier of the file in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	// ContentType is the MIME type reported at upload time.
	ContentType string `json:"content_type" db:"content_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size" db:"size"`

	// CreatedAt is the timestamp at which the attachment was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
