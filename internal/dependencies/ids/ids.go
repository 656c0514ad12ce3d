package ids

import "github.com/google/uuid"

// Provider hands out identifiers for new records
type Provider interface {
	NewID() (string, error)
}

// UUIDv7 generates time-ordered UUIDs
type UUIDv7 struct{}

// New creates a UUIDv7 provider
func New() *UUIDv7 {
	return &UUIDv7{}
}

// NewID returns a fresh UUIDv7 string
func (UUIDv7) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
