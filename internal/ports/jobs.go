package ports

import (
	"context"
	"time"

	"github.com/serviapp/marketplace/internal/domain"
)

// JobPredicate is the guard of a conditional write. Zero-value fields are
// not part of the WHERE clause.
type JobPredicate struct {
	Status *domain.Status
	// ProfessionalUnset requires professional_id IS NULL.
	ProfessionalUnset bool
	ProfessionalID    *string
}

// JobPatch is what a conditional write sets. The stage timestamp column is
// derived from the new Status and only filled if still empty, so stage
// timestamps are write-once. UpdatedAt is always rewritten to Now.
type JobPatch struct {
	Status         *domain.Status
	ProfessionalID *string
	StageAt        *time.Time
	Now            time.Time
}

type AcceptResult struct {
	Job domain.Job
	// AlreadyAccepted: the requester already owned the job; nothing changed.
	AlreadyAccepted bool
	// RaceResolved: a concurrent duplicate call by the same requester won
	// first and this call was resolved idempotently.
	RaceResolved bool
}

type JobStore interface {
	Get(ctx context.Context, id string) (domain.Job, error)
	Create(ctx context.Context, job domain.Job) (domain.Job, error)
	ListByProfessional(ctx context.Context, professionalID string) ([]domain.Job, error)
	ListPending(ctx context.Context, limit int) ([]domain.Job, error)
	CountActive(ctx context.Context, professionalID string) (int, error)
	// UpdateIf applies patch iff pred still holds at write time. The returned
	// affected-row count is authoritative: 0 means the predicate did not hold.
	UpdateIf(ctx context.Context, id string, pred JobPredicate, patch JobPatch) (int64, error)
	// AcceptAtomic claims a pending job in a single transaction. Returns
	// ErrCapabilityMissing when the store has no atomic primitive,
	// ErrNotFound when the job does not exist, ErrConflict when the job is
	// no longer claimable by this professional.
	AcceptAtomic(ctx context.Context, jobID, professionalID string, now time.Time) (AcceptResult, error)
}

// Notifier is the best-effort notification collaborator. Failures are logged
// by callers, never propagated as claim failures.
type Notifier interface {
	NotifyJobAccepted(ctx context.Context, job domain.Job, professionalID string) error
}

// Bus topics. Stage transitions publish StatusTopic(target).
const (
	TopicJobCreated  = "job.created"
	TopicJobAccepted = "job.accepted"
)

func StatusTopic(s domain.Status) string {
	return "job." + string(s)
}

type EventBus interface {
	Publish(topic string, payload []byte)
	Subscribe() (ch <-chan Event, cancel func())
}

type Event struct {
	Topic   string
	Payload []byte
}

// LocationTracker is the seam to the location collaborator: it supplies the
// last coordinates it sampled for a professional. Sampling itself is out of
// scope here.
type LocationTracker interface {
	Record(ctx context.Context, professionalID string, loc domain.LatLng) error
	LastKnown(ctx context.Context, professionalID string) (domain.LatLng, bool, error)
}
