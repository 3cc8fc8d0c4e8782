// Package queue implements the durable, database-backed work queue that
// drives asynchronous assignment rendering.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/db"
	"github.com/Nikita3549/SkyHelp-sub000/internal/db/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler processes one job payload. A returned error schedules a retry;
// after MaxAttempts the job is marked FAILED and abandoned.
type Handler func(ctx context.Context, payload []byte) error

type Queue struct {
	db           *gorm.DB
	logger       *zap.Logger
	handler      Handler
	workers      int
	maxAttempts  int
	pollInterval time.Duration
	backoffBase  time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type Config struct {
	Workers      int
	MaxAttempts  int
	PollInterval time.Duration
	// BackoffBase is the first retry delay; each further attempt doubles it.
	BackoffBase time.Duration
}

func New(db *gorm.DB, handler Handler, cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	return &Queue{
		db:           db,
		logger:       logger.With(zap.String("service", "render_queue")),
		handler:      handler,
		workers:      cfg.Workers,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		backoffBase:  cfg.BackoffBase,
	}
}

// Enqueue stores a new PENDING job. The job runs on a worker; the caller
// never sees rendering failures.
func (q *Queue) Enqueue(ctx context.Context, payload []byte) (*models.RenderJob, error) {
	job := &models.RenderJob{
		ID:          uuid.New().String(),
		Status:      models.JobPending,
		Payload:     payload,
		MaxAttempts: q.maxAttempts,
		NextRunAt:   time.Now(),
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	q.logger.Info("Job enqueued", zap.String("job_id", job.ID))
	return job, nil
}

// Start launches the worker pool. Stop blocks until in-flight jobs finish.
func (q *Queue) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	q.cancel = cancel

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(ctx, i)
	}
	q.logger.Info("Queue workers started", zap.Int("workers", q.workers))
}

func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	q.logger.Info("Queue workers stopped")
}

func (q *Queue) runWorker(ctx context.Context, id int) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				processed, err := q.ProcessOne(ctx)
				if err != nil {
					q.logger.Error("worker poll failed", zap.Int("worker", id), zap.Error(err))
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// ProcessOne claims and runs a single due job. It reports whether a job was
// found; handler failures are absorbed into the job's retry state.
func (q *Queue) ProcessOne(ctx context.Context) (bool, error) {
	job, err := q.claimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	runErr := q.handler(ctx, job.Payload)
	if runErr == nil {
		err = q.db.WithContext(ctx).Model(job).
			Updates(map[string]interface{}{"status": models.JobDone, "last_error": ""}).Error
		if err == nil {
			q.logger.Info("Job completed",
				zap.String("job_id", job.ID),
				zap.Duration("duration", time.Since(start)))
		}
		return true, err
	}

	q.logger.Warn("Job attempt failed",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempts),
		zap.Error(runErr))

	updates := map[string]interface{}{"last_error": runErr.Error()}
	if job.Attempts >= job.MaxAttempts {
		// Out of attempts: abandon without surfacing anything to the
		// original caller.
		updates["status"] = models.JobFailed
		q.logger.Error("Job abandoned after max attempts",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts))
	} else {
		updates["status"] = models.JobPending
		updates["next_run_at"] = time.Now().Add(q.backoff(job.Attempts))
	}
	return true, q.db.WithContext(ctx).Model(job).Updates(updates).Error
}

// claimNext atomically picks the oldest due PENDING job and marks it RUNNING.
// On postgres the row is locked with SKIP LOCKED so concurrent workers never
// double-claim.
func (q *Queue) claimNext(ctx context.Context) (*models.RenderJob, error) {
	var job models.RenderJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("status = ? AND next_run_at <= ?", models.JobPending, time.Now()).
			Order("next_run_at ASC")
		if db.SupportsRowLocks(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := query.First(&job).Error; err != nil {
			return err
		}
		job.Attempts++
		return tx.Model(&job).
			Updates(map[string]interface{}{"status": models.JobRunning, "attempts": job.Attempts}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queue) backoff(attempt int) time.Duration {
	d := q.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
