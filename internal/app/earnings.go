package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/serviapp/marketplace/internal/domain"
	"github.com/serviapp/marketplace/internal/metrics"
	"github.com/serviapp/marketplace/internal/ports"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), nil
	case "":
		return PeriodWeek, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

type ChartBucket struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	// Height is the 0-100 normalized bar value; nonzero amounts are floored
	// at 5 so small earnings stay visible.
	Height float64 `json:"height"`
}

type BestDay struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type TransactionDTO struct {
	JobID     string        `json:"jobId"`
	Title     string        `json:"title"`
	Subtitle  string        `json:"subtitle"`
	DateLabel string        `json:"dateLabel"`
	Amount    float64       `json:"amount"`
	Status    domain.Status `json:"status"`
}

type EarningsStats struct {
	Period              Period           `json:"period"`
	Total               float64          `json:"total"`
	Completed           float64          `json:"completed"`
	Pending             float64          `json:"pending"`
	PeriodTotal         float64          `json:"periodTotal"`
	PreviousPeriodTotal float64          `json:"previousPeriodTotal"`
	TrendPercentage     float64          `json:"trendPercentage"`
	AverageDaily        float64          `json:"averageDaily"`
	ChartData           []ChartBucket    `json:"chartData"`
	BestDay             BestDay          `json:"bestDay"`
	Transactions        []TransactionDTO `json:"transactions"`
}

// Chart labels and transaction subtitles are product copy, Spanish like the
// rest of the app.
var (
	weekDayLabels = [7]string{"Lun", "Mar", "Mié", "Jue", "Vie", "Sáb", "Dom"}
	monthLabels   = [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

	statusSubtitles = map[domain.Status]string{
		domain.StatusPending:    "Pendiente",
		domain.StatusAccepted:   "Aceptado",
		domain.StatusEnRoute:    "En camino",
		domain.StatusOnSite:     "En sitio",
		domain.StatusInProgress: "En progreso",
		domain.StatusCompleted:  "Completado",
		domain.StatusCancelled:  "Cancelado",
	}
)

// EarningsService is a read-only projection over a professional's job
// ledger: one fetch, then pure calendar arithmetic.
type EarningsService struct {
	logger zerolog.Logger
	store  ports.JobStore
	now    func() time.Time
}

func NewEarningsService(logger zerolog.Logger, store ports.JobStore) *EarningsService {
	return &EarningsService{
		logger: logger,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *EarningsService) GetEarningsData(ctx context.Context, professionalID string, period Period) (EarningsStats, error) {
	metrics.EarningsRequestsTotal.WithLabelValues(string(period)).Inc()

	jobs, err := s.store.ListByProfessional(ctx, professionalID)
	if err != nil {
		return EarningsStats{}, wrapUnexpected("list jobs for earnings", err)
	}

	now := s.now()
	start, end := periodWindow(now, period)
	prevStart, prevEnd := previousWindow(start, period)

	stats := EarningsStats{Period: period}
	buckets := newBuckets(start, end, period)

	var currentJobs []domain.Job
	for _, j := range jobs {
		t := jobTime(j)
		completed := j.Status == domain.StatusCompleted

		if completed {
			stats.Total += j.Price
		}

		switch {
		case inWindow(t, start, end):
			currentJobs = append(currentJobs, j)
			if completed {
				stats.PeriodTotal += j.Price
				idx := bucketIndex(t, start, end, period)
				buckets[idx].Amount += j.Price
			}
			switch j.Status {
			case domain.StatusAccepted, domain.StatusInProgress:
				stats.Pending += j.Price
			}
		case inWindow(t, prevStart, prevEnd):
			if completed {
				stats.PreviousPeriodTotal += j.Price
			}
		}
	}
	stats.Completed = stats.PeriodTotal

	stats.TrendPercentage = trendPercentage(stats.PeriodTotal, stats.PreviousPeriodTotal)
	stats.AverageDaily = stats.PeriodTotal / float64(elapsedDays(start, now))
	normalizeHeights(buckets)
	stats.ChartData = buckets
	stats.BestDay = bestBucket(buckets)
	stats.Transactions = s.transactions(currentJobs, now)

	return stats, nil
}

// periodWindow returns [start, end) for the period containing now: the
// Monday-Sunday week, the calendar month, or the calendar year.
func periodWindow(now time.Time, p Period) (time.Time, time.Time) {
	y, m, d := now.Date()
	switch p {
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	case PeriodYear:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0)
	default: // week
		day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}
}

// previousWindow steps back one period of the same kind. Stepping with
// AddDate, not a fixed day count, so month/year lengths are respected.
func previousWindow(start time.Time, p Period) (time.Time, time.Time) {
	switch p {
	case PeriodMonth:
		return start.AddDate(0, -1, 0), start
	case PeriodYear:
		return start.AddDate(-1, 0, 0), start
	default:
		return start.AddDate(0, 0, -7), start
	}
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// jobTime is the ledger's time axis: creation time when present, otherwise
// the last-write timestamp.
func jobTime(j domain.Job) time.Time {
	if !j.CreatedAt.IsZero() {
		return j.CreatedAt
	}
	return j.UpdatedAt
}

func trendPercentage(current, previous float64) float64 {
	if previous > 0 {
		return (current - previous) / previous * 100
	}
	// No previous activity: 100 signals "new activity", 0 "still nothing".
	if current > 0 {
		return 100
	}
	return 0
}

func elapsedDays(start, now time.Time) int {
	days := int(math.Ceil(now.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func newBuckets(start, end time.Time, p Period) []ChartBucket {
	switch p {
	case PeriodMonth:
		out := make([]ChartBucket, 4)
		for i := range out {
			out[i].Label = fmt.Sprintf("Sem %d", i+1)
		}
		return out
	case PeriodYear:
		out := make([]ChartBucket, 12)
		for i := range out {
			out[i].Label = monthLabels[i]
		}
		return out
	default:
		out := make([]ChartBucket, 7)
		for i := range out {
			out[i].Label = weekDayLabels[i]
		}
		return out
	}
}

func bucketIndex(t, start, end time.Time, p Period) int {
	var idx, max int
	switch p {
	case PeriodMonth:
		// Four equal-width sub-windows of the month.
		span := end.Sub(start) / 4
		idx, max = int(t.Sub(start)/span), 3
	case PeriodYear:
		idx, max = int(t.Month())-1, 11
	default:
		idx, max = int(t.Sub(start)/(24*time.Hour)), 6
	}
	if idx < 0 {
		idx = 0
	}
	if idx > max {
		idx = max
	}
	return idx
}

func normalizeHeights(buckets []ChartBucket) {
	var max float64
	for _, b := range buckets {
		if b.Amount > max {
			max = b.Amount
		}
	}
	if max == 0 {
		return
	}
	for i := range buckets {
		if buckets[i].Amount == 0 {
			continue
		}
		h := buckets[i].Amount / max * 100
		if h < 5 {
			h = 5
		}
		buckets[i].Height = h
	}
}

func bestBucket(buckets []ChartBucket) BestDay {
	best := 0
	for i, b := range buckets {
		// Strict: ties resolve to the earliest bucket.
		if b.Amount > buckets[best].Amount {
			best = i
		}
	}
	if len(buckets) == 0 {
		return BestDay{}
	}
	return BestDay{Label: buckets[best].Label, Amount: buckets[best].Amount}
}

func (s *EarningsService) transactions(jobs []domain.Job, now time.Time) []TransactionDTO {
	sort.Slice(jobs, func(i, k int) bool {
		return jobTime(jobs[i]).After(jobTime(jobs[k]))
	})
	out := make([]TransactionDTO, 0, len(jobs))
	for _, j := range jobs {
		title := j.Title
		if title == "" {
			title = j.Category
		}
		if title == "" {
			title = "Servicio"
		}
		out = append(out, TransactionDTO{
			JobID:     j.ID,
			Title:     title,
			Subtitle:  statusSubtitles[j.Status],
			DateLabel: dateLabel(jobTime(j), now),
			Amount:    transactionAmount(j),
			Status:    j.Status,
		})
	}
	return out
}

// transactionAmount is the signed figure shown in the list: cancelled work
// never earned anything, so it renders as zero instead of as income.
func transactionAmount(j domain.Job) float64 {
	if j.Status == domain.StatusCancelled {
		return 0
	}
	return j.Price
}

func dateLabel(t, now time.Time) string {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return "Hoy"
	}
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if ty == yy && tm == ym && td == yd {
		return "Ayer"
	}
	return fmt.Sprintf("%02d %s", td, monthLabels[int(tm)-1])
}
