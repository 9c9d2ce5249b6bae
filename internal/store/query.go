package store

import (
	"time"

	"github.com/htverse/apiserver/types"
)

// HackathonSort selects the ordering of hackathon listings.
type HackathonSort string

const (
	SortNewest   HackathonSort = "newest"
	SortOldest   HackathonSort = "oldest"
	SortPrize    HackathonSort = "prize"
	SortDeadline HackathonSort = "deadline"
)

// Valid reports whether s is a known sort key.
func (s HackathonSort) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortPrize, SortDeadline:
		return true
	}
	return false
}

// HackathonQuery filters, orders and paginates hackathon listings.
// Nil filter fields are not applied.
type HackathonQuery struct {
	Category *types.Category
	Status   *types.Status
	IsActive *bool
	Sort     HackathonSort
	Offset   int
	Limit    int
}

// RegisterGuard holds the preconditions for an atomic participant append.
type RegisterGuard struct {
	UserID string
	// Now must not be after the registration deadline.
	Now time.Time
}

// UnregisterGuard holds the preconditions for an atomic participant removal.
type UnregisterGuard struct {
	UserID string
	// Now must be before the start date.
	Now time.Time
}

// UpdateGuard holds the preconditions for a hackathon update. Every update
// requires the stored participant count to fit the new maxParticipants.
// The banner key is never written by an update.
type UpdateGuard struct {
	// SetStatus writes h.Status. A non-cancelled status is only written
	// while the stored record is not cancelled. Without SetStatus the
	// stored status is kept.
	SetStatus bool
}
