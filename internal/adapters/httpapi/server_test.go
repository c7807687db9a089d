package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/serviapp/marketplace/internal/adapters/memlocation"
	"github.com/serviapp/marketplace/internal/adapters/memorybus"
	"github.com/serviapp/marketplace/internal/adapters/sqlite"
	"github.com/serviapp/marketplace/internal/app"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := sqlite.NewJobsRepository(db.SQL)
	bus := memorybus.New()
	locations := memlocation.New()
	logger := zerolog.Nop()

	jobs := app.NewJobService(store, bus)
	claims := app.NewClaimService(logger, store, locations, nil, bus, app.DefaultClaimConfig())
	lifecycle := app.NewLifecycleService(logger, store, bus)
	earnings := app.NewEarningsService(logger, store)

	srv := NewServer(logger, jobs, claims, lifecycle, earnings, locations, bus)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func createJob(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs", map[string]any{
		"title":    "Reparación de nevera",
		"category": "electrodomesticos",
		"price":    350,
		"location": map[string]float64{"lat": 4.60971, "lng": -74.08175},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create job: status %d, body %s", resp.StatusCode, body)
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
		t.Fatalf("create job: bad body %s", body)
	}
	return job.ID
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d, body %s", resp.StatusCode, body)
	}
}

func TestServer_ClaimFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createJob(t, ts)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim",
		map[string]any{"professionalId": "proA"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d, body %s", resp.StatusCode, body)
	}
	var outcome struct {
		Job struct {
			Status         string `json:"status"`
			ProfessionalID string `json:"professionalId"`
		} `json:"job"`
		AlreadyAccepted bool `json:"alreadyAccepted"`
	}
	if err := json.Unmarshal(body, &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Job.Status != "accepted" || outcome.Job.ProfessionalID != "proA" {
		t.Fatalf("unexpected outcome: %s", body)
	}

	// Second professional hits a conflict with the taxonomy code in the body.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim",
		map[string]any{"professionalId": "proB"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("loser claim: status %d, body %s", resp.StatusCode, body)
	}
	var errBody struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil || errBody.Code != "job_already_claimed" {
		t.Fatalf("loser claim body: %s", body)
	}
}

func TestServer_ClaimValidation(t *testing.T) {
	ts := newTestServer(t)
	id := createJob(t, ts)

	// Missing professionalId fails validation before touching the service.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/ghost/claim",
		map[string]any{"professionalId": "proA"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job, got %d: %s", resp.StatusCode, body)
	}
}

func TestServer_DistanceGuard(t *testing.T) {
	ts := newTestServer(t)
	id := createJob(t, ts)

	// Professional reports a position ~80 km from the job site.
	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/v1/professionals/proA/location",
		map[string]float64{"lat": 4.60971 + 80.0/111.195, "lng": -74.08175})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put location: status %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim",
		map[string]any{"professionalId": "proA", "checkDistance": true})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("far claim: status %d, body %s", resp.StatusCode, body)
	}
	var errBody struct {
		Code       string  `json:"code"`
		DistanceKm float64 `json:"distanceKm"`
	}
	if err := json.Unmarshal(body, &errBody); err != nil || errBody.Code != "job_too_far" {
		t.Fatalf("far claim body: %s", body)
	}
	if errBody.DistanceKm < 75 || errBody.DistanceKm > 85 {
		t.Fatalf("distanceKm = %.1f, want ~80", errBody.DistanceKm)
	}
}

func TestServer_TransitionFlow(t *testing.T) {
	ts := newTestServer(t)
	id := createJob(t, ts)

	if resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim",
		map[string]any{"professionalId": "proA"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d, body %s", resp.StatusCode, body)
	}

	// Skipping straight to completed is rejected with the transition named.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/transition",
		map[string]any{"professionalId": "proA", "status": "completed"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid transition: status %d, body %s", resp.StatusCode, body)
	}

	for _, status := range []string{"en_route", "on_site", "in_progress", "completed"} {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/transition",
			map[string]any{"professionalId": "proA", "status": status})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: status %d, body %s", status, resp.StatusCode, body)
		}
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/jobs/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	var job struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completedAt"`
	}
	if err := json.Unmarshal(body, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != "completed" || job.CompletedAt == nil {
		t.Fatalf("unexpected final job: %s", body)
	}
}

func TestServer_Earnings(t *testing.T) {
	ts := newTestServer(t)

	// Run one job through to completion so the period has earnings.
	id := createJob(t, ts)
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/claim", map[string]any{"professionalId": "proA"})
	for _, status := range []string{"in_progress", "completed"} {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/jobs/"+id+"/transition",
			map[string]any{"professionalId": "proA", "status": status})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s: status %d, body %s", status, resp.StatusCode, body)
		}
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/professionals/proA/earnings?period=week", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("earnings: status %d, body %s", resp.StatusCode, body)
	}
	var stats struct {
		Period      string `json:"period"`
		PeriodTotal float64 `json:"periodTotal"`
		ChartData   []struct {
			Label string `json:"label"`
		} `json:"chartData"`
		Transactions []struct {
			DateLabel string `json:"dateLabel"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Period != "week" || len(stats.ChartData) != 7 {
		t.Fatalf("unexpected stats: %s", body)
	}
	if stats.PeriodTotal != 350 {
		t.Fatalf("periodTotal = %v, want 350", stats.PeriodTotal)
	}
	if len(stats.Transactions) != 1 || stats.Transactions[0].DateLabel != "Hoy" {
		t.Fatalf("unexpected transactions: %s", body)
	}

	// Unknown period is rejected.
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/professionals/proA/earnings?period=decade", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad period, got %d", resp.StatusCode)
	}
}

func TestServer_PendingFeedRadius(t *testing.T) {
	ts := newTestServer(t)
	createJob(t, ts)

	url := fmt.Sprintf("%s/api/v1/jobs/pending?lat=%f&lng=%f&radiusKm=10", ts.URL, 4.60971, -74.08175)
	resp, body := doJSON(t, http.MethodGet, url, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending: status %d, body %s", resp.StatusCode, body)
	}
	var jobs []json.RawMessage
	if err := json.Unmarshal(body, &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the nearby job in the feed, got %d", len(jobs))
	}

	// Same feed from far away is empty.
	url = fmt.Sprintf("%s/api/v1/jobs/pending?lat=%f&lng=%f&radiusKm=10", ts.URL, 10.0, -74.08175)
	_, body = doJSON(t, http.MethodGet, url, nil)
	if err := json.Unmarshal(body, &jobs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty feed far away, got %d", len(jobs))
	}
}
