package models

import (
	"time"
)

type User struct {
	ID               int        `json:"id" db:"id"`
	Username         string     `json:"username" db:"username"`
	Email            string     `json:"email" db:"email"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	IsVerified       bool       `json:"is_verified" db:"is_verified"`
	VerificationCode *string    `json:"-" db:"verification_code"`
	ResetToken       *string    `json:"-" db:"reset_token"`
	ResetTokenExpiry *time.Time `json:"-" db:"reset_token_expiry"`
	// AboutMe and ProfilePicture are stored encrypted. The store only ever
	// sees ciphertext; services seal/open at their read/write edge.
	AboutMe        string    `json:"about_me,omitempty" db:"about_me"`
	ProfilePicture string    `json:"profile_picture,omitempty" db:"profile_picture"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
