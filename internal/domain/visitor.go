package domain

import (
	"context"
	"time"
)

// Visitor is a person whose entry and exit to the site is tracked.
// The national ID is held encrypted alongside a deterministic digest used
// for exact lookup; neither leaves the system in responses.
type Visitor struct {
	ID                  string    `json:"id"` // UUID
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	PhoneNumber         string    `json:"phoneNumber"`
	NationalIDEncrypted string    `json:"-"`
	NationalIDDigest    string    `json:"-"`
	Photo               []byte    `json:"-"` // stored reference image, nil if none
	IsBanned            bool      `json:"isBanned"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HasPhoto reports whether a reference image is on file for face matching.
func (v *Visitor) HasPhoto() bool { return len(v.Photo) > 0 }

// VisitorRepository defines data access for visitors.
type VisitorRepository interface {
	// Create inserts a new visitor. Phone number and national ID digest are
	// unique; a violation of either returns ErrDuplicate.
	Create(ctx context.Context, visitor *Visitor) error
	GetByID(ctx context.Context, id string) (*Visitor, error)
	GetByNationalIDDigest(ctx context.Context, digest string) (*Visitor, error)
	// ListWithPhoto returns all visitors that have a stored reference image,
	// ordered by ID so face-match tie-breaking is deterministic.
	ListWithPhoto(ctx context.Context) ([]*Visitor, error)
	List(ctx context.Context, limit, offset int) ([]*Visitor, error)
}
