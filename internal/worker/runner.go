// Package worker contains the background pipeline that generates the
// automatic report when an assessment is closed. It is decoupled from the
// HTTP layer: the api package holds a worker.Enqueuer interface and calls
// Enqueue — it never imports the concrete Runner or Job types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psicoclima/psicoclima-backend/internal/db"
	"github.com/psicoclima/psicoclima-backend/internal/store"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off work
// after an assessment is closed. Keeping it here (not in api/) means api/
// does not need to import worker/.
type Enqueuer interface {
	Enqueue(ctx context.Context, assessmentID uuid.UUID) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. All fields have
// sensible defaults if zero-valued.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 3.
	Workers int

	// PollInterval is how often the fallback poller checks for closed
	// assessments missed by the in-process channel (e.g. after a restart).
	// Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-job context deadline. Default: 5 minutes.
	// Set this longer than your slowest provider's p99 latency.
	JobTimeout time.Duration

	// MaxRetries is the number of times a job is retried before a failed
	// artifact is recorded. Default: 3.
	MaxRetries int
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      3,
		PollInterval: 30 * time.Second,
		JobTimeout:   5 * time.Minute,
		MaxRetries:   3,
	}
}

// Runner manages a pool of worker goroutines. It accepts jobs via an
// in-process channel (fast path, used when an assessment is closed) and also
// polls the database periodically to recover assessments that were in-flight
// when the process last restarted.
type Runner struct {
	job    *Job
	store  *store.Store
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(
	job *Job,
	st *store.Store,
	q db.Querier,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	defaults := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}

	return &Runner{
		job:    job,
		store:  st,
		q:      q,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*2 so Enqueue never blocks under normal load.
		queue: make(chan uuid.UUID, cfg.Workers*2),
	}
}

// Enqueue pushes an assessmentID onto the in-process channel. It satisfies
// the Enqueuer interface. If the channel is full it returns an error rather
// than blocking the HTTP response; the poller will pick the assessment up.
func (r *Runner) Enqueue(_ context.Context, assessmentID uuid.UUID) error {
	select {
	case r.queue <- assessmentID:
		r.logger.Info("worker: enqueued assessment", "assessment_id", assessmentID)
		return nil
	default:
		return errors.New("worker: queue is full, assessment will be picked up by poller")
	}
}

// Start launches the worker pool and the fallback poller. It blocks until
// ctx is cancelled. Call it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker: goroutine stopping")
			return
		case assessmentID := <-r.queue:
			r.runWithRetry(ctx, assessmentID, log)
		}
	}
}

// poll queries the database on PollInterval for closed assessments that were
// not delivered via the channel (e.g. closed before a restart).
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	assessments, err := r.q.ListClosedAssessmentsWithoutReport(ctx)
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return
	}
	for _, a := range assessments {
		select {
		case r.queue <- a.ID:
			r.logger.Debug("worker: poller enqueued assessment", "assessment_id", a.ID)
		default:
			// Queue full — will be picked up next poll cycle.
		}
	}
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it records a failed artifact so the assessment is not picked up
// again.
func (r *Runner) runWithRetry(ctx context.Context, assessmentID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, assessmentID)
		cancel()

		if lastErr == nil {
			log.Info("worker: job completed", "assessment_id", assessmentID, "attempt", attempt)
			return
		}

		log.Warn("worker: job attempt failed",
			"assessment_id", assessmentID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2s, 4s, 8s …
			backoff := time.Duration(1<<attempt) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: job permanently failed", "assessment_id", assessmentID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.store.SaveFailedArtifact(failCtx, assessmentID, db.ArtifactReport, "Relatório", lastErr.Error()); err != nil {
		log.Error("worker: failed to record failed artifact", "assessment_id", assessmentID, "error", err)
	}
}
