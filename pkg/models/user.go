package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the minimal principal record carried through the request context.
// Identity lifecycle (signup, OAuth, password handling) lives in an external
// identity system; this backend only trusts the id/email extracted from the
// verified access token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Profile holds the user-editable profile attributes.
type Profile struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Email       string    `json:"email,omitempty" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	Company     *string   `json:"company,omitempty" db:"company"`
	Address     *string   `json:"address,omitempty" db:"address"`
	City        *string   `json:"city,omitempty" db:"city"`
	State       *string   `json:"state,omitempty" db:"state"`
	Country     *string   `json:"country,omitempty" db:"country"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TokenClaims represents the JWT access token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Type   string `json:"type"` // "access" or "refresh"
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
