package asynqnotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/serviapp/marketplace/internal/domain"
)

const (
	TaskJobAccepted = "notification:job_accepted"

	queueName = "notifications"
)

type jobAcceptedPayload struct {
	JobID          string    `json:"jobId"`
	ProfessionalID string    `json:"professionalId"`
	Title          string    `json:"title,omitempty"`
	Category       string    `json:"category,omitempty"`
	Price          float64   `json:"price"`
	AcceptedAt     time.Time `json:"acceptedAt"`
}

// Notifier enqueues claim notifications as asynq tasks. Delivery itself
// (push, email) happens on the worker side and is best-effort by contract.
type Notifier struct {
	client *asynq.Client
	logger zerolog.Logger
}

func New(redis asynq.RedisClientOpt, logger zerolog.Logger) *Notifier {
	return &Notifier{client: asynq.NewClient(redis), logger: logger}
}

func (n *Notifier) Close() error {
	return n.client.Close()
}

func (n *Notifier) NotifyJobAccepted(ctx context.Context, job domain.Job, professionalID string) error {
	payload := jobAcceptedPayload{
		JobID:          job.ID,
		ProfessionalID: professionalID,
		Title:          job.Title,
		Category:       job.Category,
		Price:          job.Price,
	}
	if job.AcceptedAt != nil {
		payload.AcceptedAt = *job.AcceptedAt
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskJobAccepted, b)
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second))
	if err != nil {
		return err
	}
	n.logger.Debug().Str("task_id", info.ID).Str("job_id", job.ID).Msg("job accepted notification enqueued")
	return nil
}
