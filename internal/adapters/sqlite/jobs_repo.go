package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/ports"
)

const jobColumns = `id, title, category, status, professional_id, price, lat, lng,
	accepted_at, en_route_at, on_site_at, in_progress_at, completed_at, cancelled_at,
	created_at, updated_at`

type JobsRepository struct {
	db *sql.DB
	// atomicAccept mirrors whether the backend ships the atomic accept
	// primitive. Off, AcceptAtomic reports ErrCapabilityMissing and callers
	// must use the conditional-write fallback.
	atomicAccept bool
}

type Option func(*JobsRepository)

// WithoutAtomicAccept models a backend where the stored accept procedure has
// not been rolled out yet.
func WithoutAtomicAccept() Option {
	return func(r *JobsRepository) { r.atomicAccept = false }
}

func NewJobsRepository(db *sql.DB, opts ...Option) *JobsRepository {
	r := &JobsRepository{db: db, atomicAccept: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *JobsRepository) Create(ctx context.Context, job domain.Job) (domain.Job, error) {
	var lat, lng any
	if job.Location != nil {
		lat, lng = job.Location.Lat, job.Location.Lng
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs(id, title, category, status, professional_id, price, lat, lng, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Title, job.Category, string(job.Status), nullString(job.ProfessionalID), job.Price,
		lat, lng, fmtTime(job.CreatedAt), fmtTime(job.UpdatedAt))
	if err != nil {
		return domain.Job{}, err
	}
	return r.Get(ctx, job.ID)
}

func (r *JobsRepository) Get(ctx context.Context, id string) (domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, ports.ErrNotFound
		}
		return domain.Job{}, err
	}
	return job, nil
}

func (r *JobsRepository) ListByProfessional(ctx context.Context, professionalID string) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE professional_id = ? ORDER BY updated_at DESC
	`, professionalID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *JobsRepository) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC LIMIT ?
	`, string(domain.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *JobsRepository) CountActive(ctx context.Context, professionalID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE professional_id = ? AND status IN (?, ?, ?, ?)
	`, professionalID,
		string(domain.StatusAccepted), string(domain.StatusEnRoute),
		string(domain.StatusOnSite), string(domain.StatusInProgress)).Scan(&n)
	return n, err
}

// UpdateIf re-states the predicate in the WHERE clause of the UPDATE itself,
// so the affected-row count is the only authority on whether the guard held.
func (r *JobsRepository) UpdateIf(ctx context.Context, id string, pred ports.JobPredicate, patch ports.JobPatch) (int64, error) {
	set := []string{"updated_at = ?"}
	args := []any{fmtTime(patch.Now)}

	if patch.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*patch.Status))
		if patch.StageAt != nil {
			if col := stageColumn(*patch.Status); col != "" {
				// Write-once: only filled if still NULL.
				set = append(set, col+" = COALESCE("+col+", ?)")
				args = append(args, fmtTime(*patch.StageAt))
			}
		}
	}
	if patch.ProfessionalID != nil {
		set = append(set, "professional_id = ?")
		args = append(args, *patch.ProfessionalID)
	}

	where := []string{"id = ?"}
	args = append(args, id)
	if pred.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*pred.Status))
	}
	if pred.ProfessionalUnset {
		where = append(where, "professional_id IS NULL")
	}
	if pred.ProfessionalID != nil {
		where = append(where, "professional_id = ?")
		args = append(args, *pred.ProfessionalID)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(set, ", ")+` WHERE `+strings.Join(where, " AND "),
		args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AcceptAtomic is the store's atomic claim primitive: guard and write in one
// transaction. A zero-row update is classified inside the same transaction.
func (r *JobsRepository) AcceptAtomic(ctx context.Context, jobID, professionalID string, now time.Time) (ports.AcceptResult, error) {
	if !r.atomicAccept {
		return ports.AcceptResult{}, ports.ErrCapabilityMissing
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.AcceptResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, professional_id = ?, accepted_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND professional_id IS NULL
	`, string(domain.StatusAccepted), professionalID, fmtTime(now), fmtTime(now),
		jobID, string(domain.StatusPending))
	if err != nil {
		return ports.AcceptResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ports.AcceptResult{}, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.AcceptResult{}, ports.ErrNotFound
		}
		return ports.AcceptResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ports.AcceptResult{}, err
	}

	if n == 1 {
		return ports.AcceptResult{Job: job}, nil
	}
	if job.OwnedBy(professionalID) {
		return ports.AcceptResult{Job: job, AlreadyAccepted: true}, nil
	}
	return ports.AcceptResult{}, fmt.Errorf("job %s not claimable: %w", jobID, ports.ErrConflict)
}

func stageColumn(s domain.Status) string {
	switch s {
	case domain.StatusAccepted:
		return "accepted_at"
	case domain.StatusEnRoute:
		return "en_route_at"
	case domain.StatusOnSite:
		return "on_site_at"
	case domain.StatusInProgress:
		return "in_progress_at"
	case domain.StatusCompleted:
		return "completed_at"
	case domain.StatusCancelled:
		return "cancelled_at"
	}
	return ""
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var j domain.Job
	var status string
	var professional sql.NullString
	var lat, lng sql.NullFloat64
	var acceptedAt, enRouteAt, onSiteAt, inProgressAt, completedAt, cancelledAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Title, &j.Category, &status, &professional, &j.Price, &lat, &lng,
		&acceptedAt, &enRouteAt, &onSiteAt, &inProgressAt, &completedAt, &cancelledAt,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.Job{}, err
	}

	j.Status = domain.Status(status)
	if professional.Valid {
		j.ProfessionalID = professional.String
	}
	if lat.Valid && lng.Valid {
		j.Location = &domain.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	j.AcceptedAt = parseNullTime(acceptedAt)
	j.EnRouteAt = parseNullTime(enRouteAt)
	j.OnSiteAt = parseNullTime(onSiteAt)
	j.InProgressAt = parseNullTime(inProgressAt)
	j.CompletedAt = parseNullTime(completedAt)
	j.CancelledAt = parseNullTime(cancelledAt)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return j, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	defer rows.Close()
	out := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
