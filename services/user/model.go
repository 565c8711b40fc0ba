package user

import "time"

// User is a single record shape for both guests and registered users: a
// guest that registers is promoted in place, so its uid (and everything
// keyed on it, like baskets) survives the promotion.
type User struct {
	UID          string
	Phone        string
	PasswordHash []byte
	Guest        bool
	CreatedAt    time.Time
	LastModified *time.Time
}
