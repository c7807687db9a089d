package asynqnotify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker drains the notifications queue. Handing the payload to an actual
// push provider is the notification platform's job; this core only proves
// the hand-off.
type Worker struct {
	srv    *asynq.Server
	logger zerolog.Logger
}

func NewWorker(redis asynq.RedisClientOpt, logger zerolog.Logger) *Worker {
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{queueName: 1},
	})
	return &Worker{srv: srv, logger: logger}
}

func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskJobAccepted, w.handleJobAccepted)
	return w.srv.Run(mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

func (w *Worker) handleJobAccepted(ctx context.Context, t *asynq.Task) error {
	var p jobAcceptedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", TaskJobAccepted, err)
	}
	w.logger.Info().
		Str("job_id", p.JobID).
		Str("professional_id", p.ProfessionalID).
		Float64("price", p.Price).
		Msg("job accepted notification delivered")
	return nil
}
