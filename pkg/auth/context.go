package auth

import (
	"fmt"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/google/uuid"
)

// AuthContext is the identity every authenticated request carries. Clinic
// users are bound to a clinic and patients to a patient record.
type AuthContext struct {
	UserID    uuid.UUID
	Role      enums.Role
	ClinicID  *uuid.UUID
	PatientID *uuid.UUID
}

func (a AuthContext) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// IsPatientOf reports whether the caller is the given patient.
func (a AuthContext) IsPatientOf(patientID uuid.UUID) bool {
	return a.Role == enums.RolePatient && a.PatientID != nil && *a.PatientID == patientID
}

// IsClinicOf reports whether the caller acts for the given clinic.
func (a AuthContext) IsClinicOf(clinicID uuid.UUID) bool {
	return a.Role == enums.RoleClinic && a.ClinicID != nil && *a.ClinicID == clinicID
}

// Validate checks the role-specific bindings.
func (a AuthContext) Validate() error {
	if a.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	switch a.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleClinic:
		if a.ClinicID == nil || *a.ClinicID == uuid.Nil {
			return fmt.Errorf("clinic users require a clinic id")
		}
	case enums.RolePatient:
		if a.PatientID == nil || *a.PatientID == uuid.Nil {
			return fmt.Errorf("patients require a patient id")
		}
	default:
		return fmt.Errorf("invalid role %q", a.Role)
	}
	return nil
}
