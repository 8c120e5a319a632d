package auth

import "time"

// TokenManager abstracts token issuance and verification.
type TokenManager interface {
	Generate(userID, email string) (string, error)
	Validate(token string) (Claims, error)
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}
