package identity

import (
	"time"

	"github.com/careledger/careledger/pkg/principal"
)

// Role classifies a principal. It is assigned once at registration and never
// changes afterward.
type Role string

const (
	RoleUnset   Role = "unset"
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

var registrableRoles = map[Role]bool{
	RolePatient: true,
	RoleDoctor:  true,
	RoleAdmin:   true,
}

// Profile holds the demographic fields a principal shares at registration.
type Profile struct {
	FullName      string `db:"full_name" json:"full_name"`
	DateOfBirth   string `db:"date_of_birth" json:"date_of_birth,omitempty"`
	ContactNumber string `db:"contact_number" json:"contact_number,omitempty"`
	PostalAddress string `db:"postal_address" json:"postal_address,omitempty"`
	Allergies     string `db:"allergies" json:"allergies,omitempty"`
	Weight        string `db:"weight" json:"weight,omitempty"`
	Height        string `db:"height" json:"height,omitempty"`
}

// Account binds a principal to its role, profile and passcode digest. The
// digest never leaves the service; plaintext passcodes are never stored.
type Account struct {
	Principal      principal.Principal `db:"principal" json:"principal"`
	Role           Role                `db:"role" json:"role"`
	Profile        Profile             `json:"profile"`
	PasscodeDigest string              `db:"passcode_digest" json:"-"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}
