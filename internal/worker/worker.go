// Package worker runs periodic maintenance jobs, such as purging expired
// sign-in sessions.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"todola/backend/internal/clock"
	"todola/backend/internal/monitoring"
)

type JobType string

const JobPurgeSessions JobType = "purge_sessions"

type JobHandler func(ctx context.Context) error

type job struct {
	jobType  JobType
	interval time.Duration
	handler  JobHandler
}

type Worker struct {
	clock   clock.Clock
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	jobs   []job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WorkerConfig struct {
	Clock      clock.Clock
	JobTimeout time.Duration
	Logger     *slog.Logger
}

func NewWorker(config WorkerConfig) *Worker {
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Worker{
		clock:   config.Clock,
		timeout: config.JobTimeout,
		log:     config.Logger.With("component", "worker"),
	}
}

// RegisterHandler runs handler every interval once the worker is started.
func (w *Worker) RegisterHandler(jobType JobType, interval time.Duration, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs = append(w.jobs, job{jobType: jobType, interval: interval, handler: handler})
}

func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info("starting worker", "jobs", len(w.jobs))
	for _, j := range w.jobs {
		ticker := w.clock.NewTicker(j.interval)
		w.wg.Add(1)
		go w.loop(ctx, j, ticker)
	}
}

func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	w.wg.Wait()
	w.log.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context, j job, ticker clock.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			w.execute(ctx, j)
		}
	}
}

func (w *Worker) execute(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := j.handler(ctx); err != nil {
		w.log.Warn("job failed", "job", j.jobType, "error", err)
		monitoring.RecordMutation(string(j.jobType), "error")
		return
	}
	monitoring.RecordMutation(string(j.jobType), "ok")
}
