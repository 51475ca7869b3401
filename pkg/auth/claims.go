package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role accepted by the back office.
const RoleAdmin = "admin"

// AdminTokenPayload captures the data available when minting an admin JWT.
type AdminTokenPayload struct {
	Subject string
	Role    string
	JTI     string
}

// AdminClaims represents the typed JWT presented to /api/admin routes.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant back office access.
func (c *AdminClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
