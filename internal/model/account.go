package model

import (
	"time"

	"go-student-records/internal/auth"
)

// Account is a login credential. UserID links it to at most one profile.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	UserID       *int64    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity derives the request identity for this account.
func (a *Account) Identity() *auth.Identity {
	var profileID *int64
	if a.UserID != nil {
		id := *a.UserID
		profileID = &id
	}
	return auth.NewIdentity(a.ID, a.Username, a.Role, profileID)
}

// AuthResponse carries issued tokens. Refresh only returns a refresh token.
type AuthResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// MeResponse describes the caller.
type MeResponse struct {
	Account     Account  `json:"account"`
	Authorities []string `json:"authorities"`
}
