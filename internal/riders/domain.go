package riders

import (
	"errors"
	"time"
)

// RiderStatus enumerates rider availability states.
type RiderStatus string

const (
	StatusAvailable    RiderStatus = "AVAILABLE"
	StatusNotAvailable RiderStatus = "NOT_AVAILABLE"
)

// IsValid reports whether the status is a known value.
func (s RiderStatus) IsValid() bool {
	return s == StatusAvailable || s == StatusNotAvailable
}

// Domain errors.
var (
	ErrRiderNotFound     = errors.New("riders: rider not found")
	ErrRiderNotAvailable = errors.New("riders: rider not available")
)

// Rider is a delivery courier account.
type Rider struct {
	ID        int64
	UserID    int64
	FullName  string
	Phone     string
	Status    RiderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
