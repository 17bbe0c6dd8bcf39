package scan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// ErrTooManyScans is returned by Submit when the concurrent job cap is
// reached.
var ErrTooManyScans = errors.New("maximum concurrent scans reached")

// job is one scan submission. Mutated only by its owning worker
// goroutine; read concurrently by pollers under the mutex.
type job struct {
	mu         sync.RWMutex
	id         string
	status     contracts.JobStatus
	sc         *ScanContext
	result     *contracts.CombinedResult
	err        string
	startedAt  time.Time
	finishedAt *time.Time
}

func (j *job) view() contracts.JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return contracts.JobView{
		ID:         j.id,
		Status:     j.status,
		Progress:   j.sc.Progress.Snapshot(),
		Result:     j.result,
		Error:      j.err,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}

// JobManager runs combined scans as background tasks. Each submission
// gets a job-scoped ScanContext, so progress and cancellation never
// leak between jobs. The result is written exactly once by the worker.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]*job
	running int
	max     int
	orch    *Orchestrator
	logger  *logger.Logger
}

// NewJobManager creates a manager with the given concurrency cap
func NewJobManager(orch *Orchestrator, maxConcurrent int, log *logger.Logger) *JobManager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &JobManager{
		jobs:   make(map[string]*job),
		max:    maxConcurrent,
		orch:   orch,
		logger: log,
	}
}

// Submit starts a new scan job and returns its id. Fails fast when the
// concurrency cap is reached rather than queueing.
func (m *JobManager) Submit(params contracts.ScanParams) (string, error) {
	m.mu.Lock()
	if m.running >= m.max {
		m.mu.Unlock()
		return "", ErrTooManyScans
	}
	j := &job{
		id:        uuid.New().String(),
		status:    contracts.JobPending,
		sc:        NewScanContext(),
		startedAt: time.Now(),
	}
	m.jobs[j.id] = j
	m.running++
	m.mu.Unlock()

	m.logger.WithField("job_id", j.id).Info("Scan job submitted")

	go m.run(j, params)
	return j.id, nil
}

func (m *JobManager) run(j *job, params contracts.ScanParams) {
	j.mu.Lock()
	j.status = contracts.JobRunning
	j.mu.Unlock()

	result, err := m.orch.Run(context.Background(), params, j.sc)

	now := time.Now()
	j.mu.Lock()
	j.finishedAt = &now
	if err != nil {
		j.status = contracts.JobError
		j.err = err.Error()
	} else {
		j.status = contracts.JobDone
		j.result = result
	}
	j.mu.Unlock()

	m.mu.Lock()
	m.running--
	m.mu.Unlock()

	if err != nil {
		m.logger.WithFields(map[string]interface{}{
			"job_id": j.id,
			"error":  err.Error(),
		}).Error("Scan job failed")
		return
	}
	m.logger.WithField("job_id", j.id).Info("Scan job finished")
}

// Poll returns the current view of a job
func (m *JobManager) Poll(id string) (contracts.JobView, bool) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return contracts.JobView{}, false
	}
	return j.view(), true
}

// Cancel fires a job's cancellation token. Idempotent; returns false
// only for unknown ids. The worker finishes in-flight tickers and
// preserves partial results.
func (m *JobManager) Cancel(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	j.sc.Cancel.Cancel()
	m.logger.WithField("job_id", id).Info("Scan job cancelled")
	return true
}

// List returns views of all known jobs, newest first.
func (m *JobManager) List() []contracts.JobView {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	views := make([]contracts.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.view())
	}
	sort.Slice(views, func(i, k int) bool {
		return views[i].StartedAt.After(views[k].StartedAt)
	})
	return views
}
