package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Phone  string
}

// AccessTokenClaims represents the typed JWT issued by the identity service.
// The user id travels in user_id; sub is accepted as a fallback.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Phone  string    `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// ResolveUserID resolves the authenticated user id.
func (c *AccessTokenClaims) ResolveUserID() (uuid.UUID, bool) {
	if c == nil {
		return uuid.Nil, false
	}
	if c.UserID != uuid.Nil {
		return c.UserID, true
	}
	if id, err := uuid.Parse(c.RegisteredClaims.Subject); err == nil && id != uuid.Nil {
		return id, true
	}
	return uuid.Nil, false
}
