package types

import "time"

// User represents an account in the system.
// It contains identity and credential material.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. It is optional: accounts created
	// through the username+password flow carry an empty email.
	Email string `json:"email,omitempty" db:"email"`

	// PasswordHash stores the hex-encoded PBKDF2 derived key of the user's
	// password. This field is never exposed in API responses and never
	// holds a plaintext password.
	PasswordHash string `json:"-" db:"password"`

	// Salt is the per-user random hex string mixed into password hashing.
	// It is generated once at registration and never changes.
	Salt string `json:"-" db:"salt"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
