package jwt

import (
	"github.com/Laisky/errors/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in a session.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// SessionClaims identify the principal behind a request.
// Subject is the owner id used to scope every file operation.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Validate is called by the parser after the registered claims pass.
func (c *SessionClaims) Validate() error {
	if c.Subject == "" {
		return errors.New("token has no subject")
	}
	switch c.Role {
	case RoleUser, RoleAdmin:
	default:
		return errors.Errorf("unknown role %q", c.Role)
	}

	return nil
}

// IsAdmin reports whether the session carries the elevated role.
func (c *SessionClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
