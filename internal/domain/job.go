package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusEnRoute    Status = "en_route"
	StatusOnSite     Status = "on_site"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether the job is assigned and still being worked:
// anything past pending that is not terminal.
func (s Status) IsActive() bool {
	switch s {
	case StatusAccepted, StatusEnRoute, StatusOnSite, StatusInProgress:
		return true
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusEnRoute, StatusOnSite,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

type Job struct {
	ID       string
	Title    string
	Category string
	Status   Status
	// ProfessionalID is empty while the job is unassigned. Once set it never
	// changes to a different value.
	ProfessionalID string
	Price          float64
	Location       *LatLng

	// Stage timestamps, each set at most once when the status is entered.
	AcceptedAt   *time.Time
	EnRouteAt    *time.Time
	OnSiteAt     *time.Time
	InProgressAt *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j Job) OwnedBy(professionalID string) bool {
	return j.ProfessionalID != "" && j.ProfessionalID == professionalID
}

var ErrInvalidTransition = errors.New("invalid job status transition")

// CanTransition is the lifecycle table. pending→accepted is deliberately
// absent: claiming goes through the claim coordinator, not here.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusEnRoute:
		return from == StatusAccepted
	case StatusOnSite:
		return from == StatusEnRoute || from == StatusAccepted
	case StatusInProgress:
		return from == StatusOnSite || from == StatusEnRoute || from == StatusAccepted
	case StatusCompleted:
		return from == StatusInProgress
	case StatusCancelled:
		return !from.IsTerminal()
	default:
		return false
	}
}
