package auth

import (
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.Role
	ClinicID  *uuid.UUID
	PatientID *uuid.UUID
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      enums.Role `json:"role"`
	ClinicID  *uuid.UUID `json:"clinic_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthContext returns the request identity encoded in the claims.
func (c *AccessTokenClaims) AuthContext() AuthContext {
	return AuthContext{
		UserID:    c.UserID,
		Role:      c.Role,
		ClinicID:  c.ClinicID,
		PatientID: c.PatientID,
	}
}
