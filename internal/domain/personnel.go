package domain

import (
	"context"
	"time"
)

// Role classifies a person. The set is closed; role determines the
// authorization class, not a separate schema.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleSecurity Role = "security"
	RoleAdmin    Role = "admin"
)

// Capability is a coarse authorization class derived from role.
type Capability string

const (
	CapabilityAdminOnly       Capability = "admin_only"
	CapabilitySecurityOrAdmin Capability = "security_or_admin"
)

// RoleCapabilities maps roles to the capabilities they carry. Admin is a
// superset of security; capability sets, not inheritance.
var RoleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapabilityAdminOnly,
		CapabilitySecurityOrAdmin,
	},
	RoleSecurity: {
		CapabilitySecurityOrAdmin,
	},
}

// HasCapability checks whether a role carries a capability.
func HasCapability(role Role, capability Capability) bool {
	for _, c := range RoleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Person is a security officer or admin. The secret code is a site-operation
// PIN distinct from the login password; both are stored as one-way hashes.
type Person struct {
	ID                  string    `json:"id"` // UUID
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	Email               string    `json:"email"`
	PhoneNumber         string    `json:"phoneNumber"`
	Role                Role      `json:"role"`
	NationalIDEncrypted string    `json:"-"`
	PasswordHash        string    `json:"-"`
	SecretCodeHash      string    `json:"-"` // empty until a code is set
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PersonnelRepository defines data access for security personnel and admins.
type PersonnelRepository interface {
	// Create inserts a new officer. Email is unique; a violation returns
	// ErrDuplicate.
	Create(ctx context.Context, person *Person) error
	GetByID(ctx context.Context, id string) (*Person, error)
	GetByEmail(ctx context.Context, email string) (*Person, error)
	Update(ctx context.Context, person *Person) error
	// ListActiveWithSecretCode returns active officers that have a secret
	// code set, ordered by creation time. Secret-code authorization scans
	// this roster; rosters are small (tens, not millions).
	ListActiveWithSecretCode(ctx context.Context) ([]*Person, error)
	List(ctx context.Context, limit, offset int) ([]*Person, error)
	// Deactivate soft-deletes an officer (sets is_active false).
	Deactivate(ctx context.Context, id string) error
}
