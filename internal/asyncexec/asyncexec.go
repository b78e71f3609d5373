// Package asyncexec runs plan executions in the background with status
// polling and optional webhook callbacks, so long-running workflows do
// not tie up an API request.
package asyncexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/themis-legal/themis/pkg/models"
)

// JobStatus is the lifecycle state of an async job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// WebhookConfig describes the callback POSTed when a job finishes.
type WebhookConfig struct {
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timeout    time.Duration     `json:"-"`
	RetryCount int               `json:"retry_count,omitempty"`
}

// Job is one background execution.
type Job struct {
	JobID       string                  `json:"job_id"`
	PlanID      string                  `json:"plan_id"`
	Status      JobStatus               `json:"status"`
	CreatedAt   time.Time               `json:"created_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Result      *models.ExecutionRecord `json:"-"`
	Error       string                  `json:"error,omitempty"`
	Webhook     *WebhookConfig          `json:"-"`
}

// Summary is the polling-friendly projection of a job.
type Summary struct {
	JobID       string     `json:"job_id"`
	PlanID      string     `json:"plan_id"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	HasResult   bool       `json:"has_result"`
}

func (j *Job) summary() Summary {
	return Summary{
		JobID:       j.JobID,
		PlanID:      j.PlanID,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
		HasResult:   j.Result != nil,
	}
}

// Executor is the execute operation jobs run against.
type Executor interface {
	Execute(ctx context.Context, matter models.Matter, planID string) (*models.ExecutionRecord, error)
}

// Stats counts jobs by status.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// Manager owns the background jobs. Concurrency is bounded by a
// semaphore; jobs past the limit stay pending until a slot frees up.
type Manager struct {
	executor Executor
	client   *http.Client
	sem      chan struct{}

	mu      sync.Mutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	// sleep is swappable for webhook retry tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewManager creates a manager running at most maxConcurrent jobs at
// once. maxConcurrent below 1 defaults to 10.
func NewManager(executor Executor, maxConcurrent int) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 10
	}
	return &Manager{
		executor: executor,
		client:   &http.Client{},
		sem:      make(chan struct{}, maxConcurrent),
		jobs:     make(map[string]*Job),
		cancels:  make(map[string]context.CancelFunc),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// StartAsync queues a background execution of the plan and returns the
// job immediately.
func (m *Manager) StartAsync(planID string, webhook *WebhookConfig) *Summary {
	job := &Job{
		JobID:     uuid.NewString(),
		PlanID:    planID,
		Status:    JobPending,
		CreatedAt: m.now(),
		Webhook:   webhook,
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.jobs[job.JobID] = job
	m.cancels[job.JobID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runJob(ctx, job)

	log.Printf("[asyncexec] started job %s for plan %s", job.JobID, planID)
	s := job.summary()
	return &s
}

func (m *Manager) runJob(ctx context.Context, job *Job) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		m.finishJob(job, JobCancelled, nil, ctx.Err())
		return
	}

	m.mu.Lock()
	if job.Status != JobPending {
		m.mu.Unlock()
		m.finishJob(job, JobCancelled, nil, ctx.Err())
		return
	}
	job.Status = JobRunning
	started := m.now()
	job.StartedAt = &started
	m.mu.Unlock()

	record, err := m.executor.Execute(ctx, nil, job.PlanID)
	switch {
	case ctx.Err() != nil:
		m.finishJob(job, JobCancelled, nil, ctx.Err())
	case err != nil:
		m.finishJob(job, JobFailed, nil, err)
	default:
		m.finishJob(job, JobCompleted, record, nil)
	}
}

// finishJob records the terminal state and fires the webhook. A job a
// caller already cancelled keeps its cancelled status.
func (m *Manager) finishJob(job *Job, status JobStatus, record *models.ExecutionRecord, err error) {
	m.mu.Lock()
	if job.Status == JobCancelled {
		status = JobCancelled
	}
	job.Status = status
	if record != nil {
		job.Result = record
	}
	if err != nil && status != JobCompleted {
		job.Error = err.Error()
	}
	completed := m.now()
	job.CompletedAt = &completed
	delete(m.cancels, job.JobID)
	webhook := job.Webhook
	m.mu.Unlock()

	if status == JobFailed {
		log.Printf("[asyncexec] job %s failed: %v", job.JobID, err)
	} else {
		log.Printf("[asyncexec] job %s %s", job.JobID, status)
	}

	if webhook != nil {
		m.sendWebhook(job, webhook)
	}
}

// sendWebhook POSTs the completion payload, retrying with exponential
// backoff (1s, 2s, 4s, ...) between attempts.
func (m *Manager) sendWebhook(job *Job, webhook *WebhookConfig) {
	m.mu.Lock()
	payload := map[string]any{
		"event":        "execution_complete",
		"job_id":       job.JobID,
		"plan_id":      job.PlanID,
		"status":       string(job.Status),
		"completed_at": job.CompletedAt,
		"error":        job.Error,
	}
	if job.Status == JobCompleted {
		payload["result"] = job.Result
	} else {
		payload["result"] = nil
	}
	m.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[asyncexec] webhook payload for job %s: %v", job.JobID, err)
		return
	}

	retries := webhook.RetryCount
	if retries < 1 {
		retries = 3
	}
	timeout := webhook.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	for attempt := 0; attempt < retries; attempt++ {
		err := m.postWebhook(webhook, body, timeout)
		if err == nil {
			log.Printf("[asyncexec] webhook sent for job %s (attempt %d)", job.JobID, attempt+1)
			return
		}
		log.Printf("[asyncexec] webhook failed for job %s (attempt %d/%d): %v", job.JobID, attempt+1, retries, err)
		if attempt < retries-1 {
			m.sleep(time.Duration(1<<attempt) * time.Second)
		}
	}
	log.Printf("[asyncexec] webhook exhausted retries for job %s", job.JobID)
}

func (m *Manager) postWebhook(webhook *WebhookConfig, body []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range webhook.Headers {
		req.Header.Set(name, value)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// GetJob returns a job summary, or nil if unknown.
func (m *Manager) GetJob(jobID string) *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	s := job.summary()
	return &s
}

// GetJobResult returns the execution record of a completed job, or nil
// when the job is unknown or not yet completed.
func (m *Manager) GetJobResult(jobID string) *models.ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != JobCompleted {
		return nil
	}
	return job.Result
}

// CancelJob cancels a pending or running job. It reports whether the
// job was cancelled.
func (m *Manager) CancelJob(jobID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || (job.Status != JobPending && job.Status != JobRunning) {
		m.mu.Unlock()
		return false
	}
	job.Status = JobCancelled
	completed := m.now()
	job.CompletedAt = &completed
	cancel := m.cancels[jobID]
	delete(m.cancels, jobID)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("[asyncexec] job %s cancelled", jobID)
	return true
}

// ListJobs returns job summaries newest first, optionally filtered by
// status. limit below 1 defaults to 100.
func (m *Manager) ListJobs(status JobStatus, limit int) []Summary {
	if limit < 1 {
		limit = 100
	}
	m.mu.Lock()
	out := make([]Summary, 0, len(m.jobs))
	for _, job := range m.jobs {
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job.summary())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CleanupOldJobs removes terminal jobs whose completion is older than
// maxAge and returns how many were removed.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for jobID, job := range m.jobs {
		switch job.Status {
		case JobCompleted, JobFailed, JobCancelled:
			if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > maxAge {
				delete(m.jobs, jobID)
				removed++
			}
		}
	}
	if removed > 0 {
		log.Printf("[asyncexec] cleaned up %d old jobs", removed)
	}
	return removed
}

// GetStats counts jobs by status.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{Total: len(m.jobs)}
	for _, job := range m.jobs {
		switch job.Status {
		case JobPending:
			stats.Pending++
		case JobRunning:
			stats.Running++
		case JobCompleted:
			stats.Completed++
		case JobFailed:
			stats.Failed++
		case JobCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Wait blocks until every started job has finished. Intended for tests
// and graceful shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}
