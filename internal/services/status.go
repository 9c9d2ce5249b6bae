package services

import (
	"time"

	"github.com/htverse/apiserver/types"
)

// DeriveStatus computes the lifecycle status of h at now. A cancelled
// hackathon stays cancelled; otherwise the status follows the dates, with
// both ends of [StartDate, EndDate] counting as ongoing.
func DeriveStatus(h types.Hackathon, now time.Time) types.Status {
	if h.Status == types.StatusCancelled {
		return types.StatusCancelled
	}
	switch {
	case now.Before(h.StartDate):
		return types.StatusUpcoming
	case now.After(h.EndDate):
		return types.StatusCompleted
	default:
		return types.StatusOngoing
	}
}
