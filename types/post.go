package types

import "time"

// Post represents a single chat message inside a conversation.
// Posts are append-only: they are never updated or deleted.
type Post struct {
	// ID is the unique, server-assigned identifier of the post. IDs are
	// assigned in insertion order, so ascending ID equals creation order
	// within a conversation.
	ID int `json:"id" db:"id"`

	// ConvoID identifies the conversation this post belongs to. Every post
	// references an existing conversation; the reference is enforced by a
	// foreign key at the storage layer.
	ConvoID int `json:"convo_id" db:"convo_id"`

	// Author is the username of the authenticated user who wrote the post.
	Author string `json:"user" db:"user"`

	// Text is the message body. It is always non-empty.
	Text string `json:"text" db:"text"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
