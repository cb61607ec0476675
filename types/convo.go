package types

import "time"

// Convo represents a named conversation thread.
type Convo struct {
	// ID is the unique, server-assigned identifier of the conversation.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the conversation. Titles are
	// globally unique; the uniqueness is enforced by the storage layer.
	Title string `json:"title" db:"title"`

	// CreatedAt is the timestamp at which the conversation was created.
	// Conversations are listed in creation order.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
