package models

import "time"

// User is a registered physician.
type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Specialty    string    `json:"specialty,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewUser(name, username, passwordHash, specialty string) *User {
	return &User{
		Name:         name,
		Username:     username,
		PasswordHash: passwordHash,
		Specialty:    specialty,
		CreatedAt:    time.Now().UTC(),
	}
}
