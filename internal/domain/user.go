package domain

import "time"

// Role controls access to administrative routes.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account holder. Verified flips once the email OTP round-trip
// succeeds; unverified users cannot authenticate mutating routes. Active
// is cleared instead of deleting the row so ratings keep their author.
type User struct {
	UUID      string
	FullName  string
	Email     string
	Verified  bool
	Active    bool
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Secret stores bcrypt hashes of the user's currently issued tokens plus
// the pending OTP token. Raw tokens are never persisted.
type Secret struct {
	UUID        string
	AccessHash  string
	RefreshHash string
	OTPToken    string
	UpdatedAt   time.Time
}
