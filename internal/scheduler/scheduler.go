package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"weather-monitor/internal/models"
	"weather-monitor/internal/repository"
	"weather-monitor/pkg/database"
	"weather-monitor/pkg/logging"
	"weather-monitor/pkg/metrics"
)

var (
	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrShuttingDown is returned when a run is requested during shutdown.
	ErrShuttingDown = errors.New("scheduler shutting down")
	// ErrJobBusy is returned when the job is already executing; the request is dropped.
	ErrJobBusy = errors.New("job already running")
	// ErrUnknownJob is returned for a job name that was never registered.
	ErrUnknownJob = errors.New("unknown job")
)

// Sessions hands every job run its own database session
type Sessions interface {
	WithSession(ctx context.Context, fn func(s *database.Session) error) error
}

// Job is one recurring unit of work
type Job struct {
	Name     string
	Schedule Schedule
	// Run receives a repository bound to a session owned by this run alone.
	Run func(ctx context.Context, repo repository.WeatherRepository) error
}

// JobStatus is a point-in-time view of one job
type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastStatus   string     `json:"last_status,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Runs         int64      `json:"runs"`
	Failures     int64      `json:"failures"`
	Skipped      int64      `json:"skipped"`
}

type jobEntry struct {
	job     Job
	running atomic.Bool
	cronJob *gocron.Job

	mu           sync.Mutex
	lastRun      time.Time
	lastDuration time.Duration
	lastStatus   string
	lastErr      string
	runs         int64
	failures     int64
	skipped      int64
}

type state int

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// Options tunes a Scheduler
type Options struct {
	JobTimeout time.Duration
}

// Scheduler runs registered jobs on their cron schedules. A job never
// overlaps with itself: a tick that arrives while the previous run is still
// going is skipped, not queued. Failures and panics are contained per run.
type Scheduler struct {
	sessions   Sessions
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	jobTimeout time.Duration

	mu         sync.Mutex
	state      state
	cron       *gocron.Scheduler
	jobs       map[string]*jobEntry
	order      []string
	baseCtx    context.Context
	cancelBase context.CancelFunc
	inFlight   sync.WaitGroup
}

// New creates a stopped scheduler
func New(sessions Sessions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts Options) *Scheduler {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sessions:   sessions,
		logger:     logger,
		metrics:    metricsCollector,
		jobTimeout: opts.JobTimeout,
		jobs:       make(map[string]*jobEntry),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Register adds a job. Jobs can only be added while the scheduler is stopped.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name must not be empty")
	}
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}
	if err := job.Schedule.Validate(); err != nil {
		return fmt.Errorf("job %q: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStopped {
		return fmt.Errorf("cannot register job %q on a running scheduler", job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	s.jobs[job.Name] = &jobEntry{job: job}
	s.order = append(s.order, job.Name)
	return nil
}

// Start begins firing triggers. It fails with ErrAlreadyRunning when called twice.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateStopping:
		return ErrShuttingDown
	}

	if s.baseCtx.Err() != nil {
		s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	}

	cron := gocron.NewScheduler(time.UTC)
	cron.TagsUnique()

	for _, name := range s.order {
		entry := s.jobs[name]
		cronJob, err := cron.Cron(entry.job.Schedule.CronExpr()).
			Tag(name).
			WaitForSchedule().
			Do(s.tick, name)
		if err != nil {
			cron.Clear()
			return fmt.Errorf("failed to schedule job %q: %w", name, err)
		}
		entry.cronJob = cronJob
	}

	cron.StartAsync()
	s.cron = cron
	s.state = stateRunning

	s.logger.Info(context.Background(), "[SCHEDULER_START] Scheduler started", logging.Fields{
		"jobs": s.order,
	})

	return nil
}

// Shutdown stops new ticks and waits for in-flight runs until ctx expires.
// Runs still going at that point have their context cancelled. Calling
// Shutdown on a stopped scheduler is a no-op.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = stateStopping
	cron := s.cron
	cancelBase := s.cancelBase
	s.mu.Unlock()

	s.logger.Info(ctx, "[SCHEDULER_STOP] Stopping scheduler", logging.Fields{})

	done := make(chan struct{})
	go func() {
		cron.Stop()
		s.inFlight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		cancelBase()
		err = fmt.Errorf("scheduler shutdown: in-flight jobs cancelled: %w", ctx.Err())
		s.logger.Warn(context.Background(), "[SCHEDULER_STOP_TIMEOUT] Cancelled in-flight jobs", logging.Fields{})
	}

	s.mu.Lock()
	s.state = stateStopped
	s.cron = nil
	for _, entry := range s.jobs {
		entry.cronJob = nil
	}
	s.mu.Unlock()

	s.logger.Info(context.Background(), "[SCHEDULER_STOPPED] Scheduler stopped", logging.Fields{})
	return err
}

// Trigger runs a job now under the same no-overlap and isolation rules as a
// scheduled tick, and returns the run's error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	return s.execute(ctx, entry, "manual")
}

// Running reports whether triggers are active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Status reports every registered job in registration order
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	entries := make([]*jobEntry, 0, len(s.order))
	nextRuns := make([]time.Time, 0, len(s.order))
	for _, name := range s.order {
		e := s.jobs[name]
		entries = append(entries, e)

		var next time.Time
		if s.state == stateRunning && e.cronJob != nil {
			next = e.cronJob.NextRun()
		}
		nextRuns = append(nextRuns, next)
	}
	s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		st := JobStatus{
			Name:       e.job.Name,
			Schedule:   e.job.Schedule.CronExpr(),
			Running:    e.running.Load(),
			LastStatus: e.lastStatus,
			LastError:  e.lastErr,
			Runs:       e.runs,
			Failures:   e.failures,
			Skipped:    e.skipped,
		}
		if !e.lastRun.IsZero() {
			last := e.lastRun
			st.LastRun = &last
			st.LastDuration = e.lastDuration.String()
		}
		if next := nextRuns[i]; !next.IsZero() {
			st.NextRun = &next
		}
		e.mu.Unlock()
		statuses = append(statuses, st)
	}

	return statuses
}

// tick is the gocron entry point
func (s *Scheduler) tick(name string) {
	s.mu.Lock()
	entry, ok := s.jobs[name]
	ctx := s.baseCtx
	s.mu.Unlock()
	if !ok {
		return
	}

	_ = s.execute(ctx, entry, "schedule")
}

func (s *Scheduler) execute(parent context.Context, entry *jobEntry, trigger string) error {
	name := entry.job.Name

	s.mu.Lock()
	if s.state == stateStopping {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	baseCtx := s.baseCtx
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.inFlight.Done()

	if !entry.running.CompareAndSwap(false, true) {
		entry.mu.Lock()
		entry.skipped++
		entry.mu.Unlock()

		s.metrics.RecordJobSkipped(name)
		s.logger.Warn(parent, "[JOB_SKIPPED] Previous run still in progress, skipping", logging.Fields{
			"job":     name,
			"trigger": trigger,
		})
		return ErrJobBusy
	}
	defer entry.running.Store(false)

	s.metrics.SetJobRunning(name, true)
	defer s.metrics.SetJobRunning(name, false)

	runCtx, cancel := context.WithTimeout(parent, s.jobTimeout)
	defer cancel()
	stop := context.AfterFunc(baseCtx, cancel)
	defer stop()

	runID := uuid.NewString()
	runCtx = logging.WithJob(runCtx, name, runID)

	startedAt := time.Now().UTC()
	s.logger.Info(runCtx, "[JOB_START] Job started", logging.Fields{
		"trigger":    trigger,
		"started_at": startedAt.Format(time.RFC3339Nano),
	})

	err := s.runJob(runCtx, entry)
	duration := time.Since(startedAt)

	status := s.report(runCtx, err, duration)
	s.metrics.RecordJobRun(name, status, duration)

	entry.mu.Lock()
	entry.lastRun = startedAt
	entry.lastDuration = duration
	entry.lastStatus = status
	entry.runs++
	entry.lastErr = ""
	if err != nil {
		entry.lastErr = err.Error()
		entry.failures++
	}
	entry.mu.Unlock()

	return err
}

// panicError carries a recovered panic out of a job run
type panicError struct {
	value interface{}
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.value)
}

// runJob executes the job on its own session, turning a panic into an error
func (s *Scheduler) runJob(ctx context.Context, entry *jobEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	return s.sessions.WithSession(ctx, func(session *database.Session) error {
		repo := repository.NewWeatherRepository(session, s.logger, s.metrics)
		return entry.job.Run(ctx, repo)
	})
}

// report logs the outcome of a run at a level matching the error kind and
// returns the status label used for metrics.
func (s *Scheduler) report(ctx context.Context, err error, duration time.Duration) string {
	fields := logging.Fields{
		"duration_ms": duration.Milliseconds(),
		"finished_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	var (
		noData     *models.NoDataError
		provider   *models.ProviderError
		storage    *models.StorageError
		validation *models.ValidationError
		panicked   *panicError
	)

	switch {
	case err == nil:
		s.logger.Info(ctx, "[JOB_COMPLETE] Job completed", fields)
		return "success"
	case errors.As(err, &noData):
		fields["reason"] = noData.Message
		s.logger.Warn(ctx, "[JOB_NO_DATA] No data yet, nothing to do", fields)
		return "no_data"
	case errors.As(err, &panicked):
		fields["panic"] = fmt.Sprintf("%v", panicked.value)
		fields["stack"] = string(panicked.stack)
		s.logger.Error(ctx, "[JOB_PANIC] Job panicked", fields, err)
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Error(ctx, "[JOB_TIMEOUT] Job exceeded its deadline", fields, err)
		return "timeout"
	case errors.Is(err, context.Canceled):
		s.logger.Error(ctx, "[JOB_CANCELLED] Job cancelled", fields, err)
		return "cancelled"
	case errors.As(err, &provider):
		fields["city"] = provider.City
		fields["status_code"] = provider.StatusCode
		s.logger.Error(ctx, "[JOB_PROVIDER_ERROR] Weather provider call failed", fields, err)
		return "provider_error"
	case errors.As(err, &storage):
		fields["operation"] = storage.Op
		s.logger.Error(ctx, "[JOB_STORAGE_ERROR] Datastore operation failed", fields, err)
		return "storage_error"
	case errors.As(err, &validation):
		fields["field"] = validation.Field
		s.logger.Error(ctx, "[JOB_VALIDATION_ERROR] Invalid job input", fields, err)
		return "validation_error"
	default:
		s.logger.Error(ctx, "[JOB_FAILED] Job failed", fields, err)
		return "error"
	}
}
