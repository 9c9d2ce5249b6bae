package types

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a hackathon.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Category is a hackathon theme from a fixed enumeration.
type Category string

const (
	CategoryWeb        Category = "Web Development"
	CategoryMobile     Category = "Mobile Development"
	CategoryAIML       Category = "AI/ML"
	CategoryBlockchain Category = "Blockchain"
	CategoryIoT        Category = "IoT"
	CategoryGameDev    Category = "Game Development"
	CategoryDataSci    Category = "Data Science"
	CategorySecurity   Category = "Cybersecurity"
	CategoryCloud      Category = "Cloud Computing"
	CategoryOther      Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryWeb,
	CategoryMobile,
	CategoryAIML,
	CategoryBlockchain,
	CategoryIoT,
	CategoryGameDev,
	CategoryDataSci,
	CategorySecurity,
	CategoryCloud,
	CategoryOther,
}

// Valid reports whether c is part of the enumeration.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// DefaultMaxParticipants is the capacity of a hackathon created without one.
const DefaultMaxParticipants = 100

// JudgingCriterion is one weighted judging dimension.
// Weightage is a percentage; the weights of a hackathon need not sum to 100.
type JudgingCriterion struct {
	Criterion string  `json:"criterion" validate:"notblank"`
	Weightage float64 `json:"weightage" validate:"min=0,max=100"`
}

// Hackathon represents a timed competitive event with capacity-limited
// registration.
type Hackathon struct {
	// ID is the unique identifier of the hackathon.
	ID string `json:"id"`

	Title       string `json:"title" validate:"notblank,max=100"`
	Description string `json:"description" validate:"notblank,max=2000"`

	// StartDate must precede EndDate, and RegistrationDeadline must
	// precede StartDate.
	StartDate            time.Time `json:"startDate"`
	EndDate              time.Time `json:"endDate"`
	RegistrationDeadline time.Time `json:"registrationDeadline"`

	MaxTeamSize int     `json:"maxTeamSize" validate:"min=1,max=10"`
	PrizePool   float64 `json:"prizePool" validate:"min=0"`

	Categories []Category `json:"categories" validate:"required,min=1,dive,category"`

	// Organizer is the id of the owning user.
	Organizer string `json:"organizer"`

	// Participants holds registered user ids in registration order,
	// without duplicates.
	Participants []string `json:"participants"`

	MaxParticipants int  `json:"maxParticipants" validate:"min=1"`
	IsActive        bool `json:"isActive"`

	// BannerImage is the object storage key of the banner, if any.
	BannerImage string `json:"bannerImage"`

	Rules          []string           `json:"rules"`
	JudgesCriteria []JudgingCriterion `json:"judgesCriteria" validate:"dive"`

	// Status is the last persisted status. Readers should use the derived
	// status, which only differs while the stored value is stale.
	Status Status `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RegistrationCount is the number of registered participants.
func (h Hackathon) RegistrationCount() int {
	return len(h.Participants)
}

// SpotsRemaining is the free capacity left.
func (h Hackathon) SpotsRemaining() int {
	return h.MaxParticipants - len(h.Participants)
}

// IsRegistrationOpen reports whether a new participant could still join at now.
func (h Hackathon) IsRegistrationOpen(now time.Time) bool {
	return now.Before(h.RegistrationDeadline) && len(h.Participants) < h.MaxParticipants
}

// HasParticipant reports whether userID is registered.
func (h Hackathon) HasParticipant(userID string) bool {
	return slices.Contains(h.Participants, userID)
}

// HackathonView is a hackathon with its computed registration fields.
type HackathonView struct {
	Hackathon
	RegistrationCount  int  `json:"registrationCount"`
	SpotsRemaining     int  `json:"spotsRemaining"`
	IsRegistrationOpen bool `json:"isRegistrationOpen"`
}

// View attaches the computed fields evaluated at now.
func (h Hackathon) View(now time.Time) HackathonView {
	return HackathonView{
		Hackathon:          h,
		RegistrationCount:  h.RegistrationCount(),
		SpotsRemaining:     h.SpotsRemaining(),
		IsRegistrationOpen: h.IsRegistrationOpen(now),
	}
}

// HackathonDetail is a hackathon view with the organizer and participants
// resolved to public user summaries.
type HackathonDetail struct {
	HackathonView
	Organizer    *UserSummary  `json:"organizer"`
	Participants []UserSummary `json:"participants"`
}
