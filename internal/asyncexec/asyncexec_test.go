package asyncexec

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/themis-legal/themis/pkg/models"
)

// blockingExecutor runs until released, counting concurrent callers.
type blockingExecutor struct {
	mu         sync.Mutex
	current    int
	maxSeen    int
	release    chan struct{}
	failPlans  map[string]bool
	totalCalls atomic.Int64
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{release: make(chan struct{}), failPlans: map[string]bool{}}
}

func (e *blockingExecutor) Execute(ctx context.Context, _ models.Matter, planID string) (*models.ExecutionRecord, error) {
	e.totalCalls.Add(1)
	e.mu.Lock()
	e.current++
	if e.current > e.maxSeen {
		e.maxSeen = e.current
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.current--
		e.mu.Unlock()
	}()

	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if e.failPlans[planID] {
		return nil, errors.New("execution failed")
	}
	return &models.ExecutionRecord{PlanID: planID, Status: models.StatusComplete}, nil
}

// instantExecutor completes immediately.
type instantExecutor struct {
	err error
}

func (e *instantExecutor) Execute(ctx context.Context, _ models.Matter, planID string) (*models.ExecutionRecord, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &models.ExecutionRecord{PlanID: planID, Status: models.StatusComplete}, nil
}

func TestJobLifecycleCompleted(t *testing.T) {
	m := NewManager(&instantExecutor{}, 2)
	job := m.StartAsync("plan-1", nil)
	m.Wait()

	got := m.GetJob(job.JobID)
	if got == nil {
		t.Fatal("job not found")
	}
	if got.Status != JobCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if !got.HasResult || got.CompletedAt == nil || got.StartedAt == nil {
		t.Errorf("summary incomplete: %+v", got)
	}

	result := m.GetJobResult(job.JobID)
	if result == nil || result.PlanID != "plan-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestJobLifecycleFailed(t *testing.T) {
	m := NewManager(&instantExecutor{err: errors.New("boom")}, 2)
	job := m.StartAsync("plan-1", nil)
	m.Wait()

	got := m.GetJob(job.JobID)
	if got.Status != JobFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "boom" {
		t.Errorf("error = %q", got.Error)
	}
	if m.GetJobResult(job.JobID) != nil {
		t.Error("failed job should have no result")
	}
}

func TestConcurrencyBoundedBySemaphore(t *testing.T) {
	exec := newBlockingExecutor()
	m := NewManager(exec, 2)

	for i := 0; i < 5; i++ {
		m.StartAsync("plan", nil)
	}

	// Give the first two jobs time to enter the executor.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		exec.mu.Lock()
		current := exec.current
		exec.mu.Unlock()
		if current == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	exec.mu.Lock()
	maxSeen := exec.maxSeen
	exec.mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("max concurrent executions = %d, want <= 2", maxSeen)
	}

	close(exec.release)
	m.Wait()

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if exec.maxSeen > 2 {
		t.Errorf("max concurrent executions = %d after release, want <= 2", exec.maxSeen)
	}
}

func TestCancelRunningJob(t *testing.T) {
	exec := newBlockingExecutor()
	m := NewManager(exec, 2)
	job := m.StartAsync("plan-1", nil)

	// Wait for the job to start running.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := m.GetJob(job.JobID); got != nil && got.Status == JobRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !m.CancelJob(job.JobID) {
		t.Fatal("CancelJob returned false for a running job")
	}
	m.Wait()

	got := m.GetJob(job.JobID)
	if got.Status != JobCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}

	// A terminal job cannot be cancelled again.
	if m.CancelJob(job.JobID) {
		t.Error("cancelling a terminal job should return false")
	}
	if m.CancelJob("unknown") {
		t.Error("cancelling an unknown job should return false")
	}
}

func TestListJobsNewestFirstAndFiltered(t *testing.T) {
	m := NewManager(&instantExecutor{}, 2)
	stamp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		stamp = stamp.Add(time.Second)
		return stamp
	}

	m.StartAsync("plan-a", nil)
	m.StartAsync("plan-b", nil)
	m.StartAsync("plan-c", nil)
	m.Wait()

	jobs := m.ListJobs("", 0)
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].CreatedAt.After(jobs[i-1].CreatedAt) {
			t.Error("jobs not sorted newest first")
		}
	}

	if got := m.ListJobs(JobCompleted, 2); len(got) != 2 {
		t.Errorf("limited list = %d, want 2", len(got))
	}
	if got := m.ListJobs(JobFailed, 0); len(got) != 0 {
		t.Errorf("failed filter = %d, want 0", len(got))
	}
}

func TestCleanupOldJobs(t *testing.T) {
	m := NewManager(&instantExecutor{}, 2)
	job := m.StartAsync("plan-1", nil)
	m.Wait()

	if removed := m.CleanupOldJobs(time.Hour); removed != 0 {
		t.Errorf("fresh job removed: %d", removed)
	}

	// Age the job past the cutoff.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if removed := m.CleanupOldJobs(time.Hour); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if m.GetJob(job.JobID) != nil {
		t.Error("job still present after cleanup")
	}
}

func TestGetStats(t *testing.T) {
	m := NewManager(&instantExecutor{}, 2)
	m.StartAsync("plan-1", nil)
	m.StartAsync("plan-2", nil)
	m.Wait()

	stats := m.GetStats()
	if stats.Total != 2 || stats.Completed != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWebhookDeliveredWithPayload(t *testing.T) {
	var received map[string]any
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(&instantExecutor{}, 2)
	job := m.StartAsync("plan-1", &WebhookConfig{URL: srv.URL})
	m.Wait()

	if calls.Load() != 1 {
		t.Fatalf("webhook calls = %d, want 1", calls.Load())
	}
	if received["event"] != "execution_complete" {
		t.Errorf("event = %v", received["event"])
	}
	if received["job_id"] != job.JobID || received["plan_id"] != "plan-1" {
		t.Errorf("payload ids = %v / %v", received["job_id"], received["plan_id"])
	}
	if received["status"] != string(JobCompleted) {
		t.Errorf("status = %v", received["status"])
	}
	if received["result"] == nil {
		t.Error("completed webhook missing result")
	}
}

func TestWebhookRetriesOnFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(&instantExecutor{}, 2)
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }

	m.StartAsync("plan-1", &WebhookConfig{URL: srv.URL, RetryCount: 3})
	m.Wait()

	if calls.Load() != 3 {
		t.Errorf("webhook calls = %d, want 3", calls.Load())
	}
	// Exponential backoff between attempts: 1s then 2s.
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff sleeps = %v", slept)
	}
}

func TestWebhookSentForJobCancelledWhilePending(t *testing.T) {
	var received map[string]any
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := newBlockingExecutor()
	m := NewManager(exec, 1)

	// Occupy the only slot so the second job stays pending.
	blocker := m.StartAsync("plan-blocker", nil)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := m.GetJob(blocker.JobID); got != nil && got.Status == JobRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	job := m.StartAsync("plan-1", &WebhookConfig{URL: srv.URL})
	if !m.CancelJob(job.JobID) {
		t.Fatal("CancelJob returned false for a pending job")
	}

	close(exec.release)
	m.Wait()

	got := m.GetJob(job.JobID)
	if got.Status != JobCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if calls.Load() != 1 {
		t.Fatalf("webhook calls = %d, want 1", calls.Load())
	}
	if received["status"] != string(JobCancelled) {
		t.Errorf("status = %v", received["status"])
	}
	if received["result"] != nil {
		t.Error("cancelled webhook should carry no result")
	}
}

func TestWebhookSentOnFailureWithoutResult(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(&instantExecutor{err: errors.New("boom")}, 2)
	m.StartAsync("plan-1", &WebhookConfig{URL: srv.URL})
	m.Wait()

	if received["status"] != string(JobFailed) {
		t.Errorf("status = %v", received["status"])
	}
	if received["result"] != nil {
		t.Error("failed webhook should carry no result")
	}
	if received["error"] != "boom" {
		t.Errorf("error = %v", received["error"])
	}
}
