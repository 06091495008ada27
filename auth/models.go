package auth

import "time"

// User is the domain representation of an archive account. It mirrors the
// users table and carries no JSON annotations so it can be reused by
// different presentation layers.
type User struct {
	ID           string
	NIP          string
	Email        string
	FullName     string
	PasswordHash string
	// RoleID is the numeric access-role code; Position is the organizational
	// title ("dean", "deputy dean", ...) and is nil for users who are not
	// routing participants. The two are independent.
	RoleID    int
	Position  *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the resolved caller context carried by a session token.
type Identity struct {
	UserID   string
	RoleID   int
	Position *string
}

// RegisterRequest contains account data supplied by the coordinator when
// creating staff accounts.
type RegisterRequest struct {
	NIP      string  `json:"nip"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	RoleID   int     `json:"role_id"`
	Position *string `json:"position"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
