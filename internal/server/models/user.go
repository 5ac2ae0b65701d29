// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. Email is stored normalized (trimmed, lower-cased) and
// never changes after creation. PasswordHash is an encoded hash string
// produced by passwords.Hasher and must never leave the server.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
