package domain

import "time"

// User represents a registered citizen account.
//
// Username and email are unique across the store and immutable after
// creation. PasswordHash never leaves the repository layer in API responses.
// A disabled user still authenticates (the token verifies) but is rejected
// before any handler runs.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash []byte
	Disabled     bool
	CreatedAt    time.Time
}
