package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asmahdi08/Theseus-Bot/internal/eventbus"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

// Service is the scheduler. Lifecycle: New -> Start (Uninitialized -> Ready)
// -> Stop. Any Schedule/Cancel call outside Ready fails with ErrUnavailable;
// there is no implicit "has the scheduler been set up yet" probing.
type Service struct {
	mu    sync.Mutex
	state State

	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	store   *jobStore
	handler Handler

	// pending holds armed tasks. A task leaves pending exactly once: either
	// Cancel wins, or the timer fires and hands it to a worker. That single
	// removal is what guarantees at-most-once firing.
	pending map[string]*pendingJob

	queue  chan task
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type pendingJob struct {
	t     task
	timer *time.Timer
}

func New(db *sql.DB, cfg Config, handler Handler, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		log:     log,
		bus:     bus,
		store:   &jobStore{db: db},
		handler: handler,
		pending: map[string]*pendingJob{},
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start creates the scheduler's table if needed, restores persisted tasks and
// launches the worker pool.
//
// Restored tasks whose fire time passed by more than their misfire grace are
// treated as missed: they are removed from the scheduler's storage and NOT
// fired. The grace period is a tolerance for small delays, not a catch-up
// mechanism; catch-up for long outages belongs to the reconciliation pass.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		return nil
	}

	if err := s.store.init(ctx); err != nil {
		return fmt.Errorf("init job table: %w", err)
	}

	tasks, err := s.store.listAll(ctx)
	if err != nil {
		return fmt.Errorf("restore jobs: %w", err)
	}

	now := time.Now()
	restored, missed := 0, 0
	for _, t := range tasks {
		if now.After(t.fireAt.Add(t.grace)) {
			if _, err := s.store.delete(ctx, t.id); err != nil {
				s.log.Warn("failed dropping misfired job", logx.String("job_id", t.id), logx.Err(err))
			}
			s.log.Warn("job missed its misfire grace; left to reconciliation",
				logx.String("job_id", t.id),
				logx.Time("fire_at", t.fireAt),
				logx.Duration("grace", t.grace))
			missed++
			continue
		}
		s.armLocked(t)
		restored++
	}

	s.queue = make(chan task, s.cfg.QueueSize)
	s.stopCh = make(chan struct{})
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}

	s.state = StateReady
	s.log.Info("scheduler started",
		logx.Int("workers", s.cfg.Workers),
		logx.Int("restored", restored),
		logx.Int("missed", missed))
	return nil
}

// Stop stops timers and workers. Persisted tasks stay in storage so they can
// resume on the next Start.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	for _, pj := range s.pending {
		_ = pj.timer.Stop()
	}
	s.pending = map[string]*pendingJob{}
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out waiting for workers")
	}
}

// Schedule persists a task due at fireAt and arms it. The returned job id is
// the handle for Cancel and for correlating the application's reminder record.
// grace <= 0 uses the configured default.
func (s *Service) Schedule(ctx context.Context, fireAt time.Time, p Payload, grace time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return "", fmt.Errorf("%w (state: %s)", ErrUnavailable, s.state)
	}
	if grace <= 0 {
		grace = s.cfg.DefaultGrace
	}

	t := task{
		id:      uuid.NewString(),
		fireAt:  fireAt.UTC(),
		grace:   grace,
		payload: p,
	}
	if err := s.store.insert(ctx, t); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	s.armLocked(t)

	s.log.Debug("job scheduled",
		logx.String("job_id", t.id),
		logx.Time("fire_at", t.fireAt),
		logx.String("user", p.UserID))
	return t.id, nil
}

// Cancel removes a pending task. It fails with ErrJobNotFound when the job
// does not exist or has already begun firing; firing cannot be interrupted.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return fmt.Errorf("%w (state: %s)", ErrUnavailable, s.state)
	}
	pj, ok := s.pending[jobID]
	if ok {
		_ = pj.timer.Stop()
		delete(s.pending, jobID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if _, err := s.store.delete(ctx, jobID); err != nil {
		return fmt.Errorf("remove job %s: %w", jobID, err)
	}
	s.log.Debug("job cancelled", logx.String("job_id", jobID))
	return nil
}

// ListPending returns the ids of all armed, not-yet-fired tasks.
func (s *Service) ListPending() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.pending))
	for id := range s.pending {
		out[id] = struct{}{}
	}
	return out
}

// armLocked arms the runtime timer for t. Call with s.mu held.
func (s *Service) armLocked(t task) {
	delay := time.Until(t.fireAt)
	if delay < 0 {
		delay = 0
	}
	pj := &pendingJob{t: t}
	pj.timer = time.AfterFunc(delay, func() { s.fire(t.id) })
	s.pending[t.id] = pj
}

// fire moves a task from pending to the worker queue. If the task is no longer
// pending (cancelled, or the scheduler stopped), the callback is a no-op.
func (s *Service) fire(jobID string) {
	s.mu.Lock()
	pj, ok := s.pending[jobID]
	if !ok || s.state != StateReady {
		s.mu.Unlock()
		return
	}
	delete(s.pending, jobID)
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()

	select {
	case queue <- pj.t:
	case <-stopCh:
	}
}
