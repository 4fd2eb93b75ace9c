// Package remind ties the pieces of the reminder lifecycle together: time
// resolution, the reminder store, the job scheduler and the delivery
// dispatcher.
package remind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asmahdi08/Theseus-Bot/internal/delivery"
	"github.com/asmahdi08/Theseus-Bot/internal/eventbus"
	"github.com/asmahdi08/Theseus-Bot/internal/jobs"
	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/internal/timeparse"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

// ErrNoTimezone reports a reminder attempt by a user who never set a zone.
var ErrNoTimezone = errors.New("timezone not set")

type Config struct {
	// MisfireGrace is passed through to the scheduler per job.
	MisfireGrace time.Duration
	// BatchSize and BatchPause rate-limit the reconciliation pass: after every
	// BatchSize deliveries the pass sleeps for BatchPause.
	BatchSize  int
	BatchPause time.Duration
}

func (c Config) withDefaults() Config {
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchPause <= 0 {
		c.BatchPause = time.Second
	}
	return c
}

type Service struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store *store.Store
	sched *jobs.Service
	disp  *delivery.Dispatcher
}

func New(cfg Config, st *store.Store, sched *jobs.Service, disp *delivery.Dispatcher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		log:   log,
		bus:   bus,
		store: st,
		sched: sched,
		disp:  disp,
	}
}

// HandleJob is the scheduler's firing handler: it hands the payload to the
// delivery dispatcher and blocks until delivered or failed. The reminder
// record is NOT touched here; record removal is driven by the job.executed
// event so the scheduler's event, not this return value, stays authoritative.
func (s *Service) HandleJob(ctx context.Context, jobID string, p jobs.Payload) error {
	return s.disp.Deliver(ctx, p.UserID, p.Title, p.Body, false)
}

// SetTimezone validates and saves the user's IANA zone (upsert).
func (s *Service) SetTimezone(ctx context.Context, userID, tz string) error {
	if err := timeparse.ValidateZone(tz); err != nil {
		return err
	}
	return s.store.SetTimezone(ctx, userID, tz)
}

// Timezone returns the user's saved zone name, or ErrNoTimezone.
func (s *Service) Timezone(ctx context.Context, userID string) (string, error) {
	tz, ok, err := s.store.GetTimezone(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoTimezone
	}
	return tz, nil
}

// Create resolves the user's local date/time against their saved zone,
// schedules the job, and persists the application-level record. The two writes
// share no transaction; if the record write fails the just-scheduled job is
// cancelled best-effort.
func (s *Service) Create(ctx context.Context, userID, title, body, dateStr, timeStr string) (store.Reminder, error) {
	tz, err := s.Timezone(ctx, userID)
	if err != nil {
		return store.Reminder{}, err
	}

	dueAt, err := timeparse.Resolve(dateStr, timeStr, tz, time.Now())
	if err != nil {
		return store.Reminder{}, err
	}

	jobID, err := s.sched.Schedule(ctx, dueAt, jobs.Payload{
		UserID: userID,
		Title:  title,
		Body:   body,
	}, s.cfg.MisfireGrace)
	if err != nil {
		return store.Reminder{}, err
	}

	rec := store.Reminder{
		JobID: jobID,
		UserID: userID,
		Title:  title,
		Body:   body,
		DueAt:  dueAt,
	}
	if err := s.store.CreateReminder(ctx, rec); err != nil {
		if cerr := s.sched.Cancel(ctx, jobID); cerr != nil {
			s.log.Warn("failed cancelling job after record write failure",
				logx.String("job_id", jobID), logx.Err(cerr))
		}
		return store.Reminder{}, err
	}

	s.log.Info("reminder created",
		logx.String("job_id", jobID),
		logx.String("user", userID),
		logx.Time("due_at", dueAt))
	return rec, nil
}

// List returns the user's reminders, soonest first.
func (s *Service) List(ctx context.Context, userID string) ([]store.Reminder, error) {
	return s.store.ListRemindersByUser(ctx, userID)
}

// Cancel removes a reminder owned by userID. A second cancel of the same id
// (or an id belonging to someone else) reports store.ErrNotFound so the caller
// can tell the user instead of crashing.
func (s *Service) Cancel(ctx context.Context, userID, jobID string) error {
	rec, err := s.store.GetReminder(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.UserID != userID {
		return fmt.Errorf("%w: reminder %s", store.ErrNotFound, jobID)
	}

	if err := s.sched.Cancel(ctx, jobID); err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
		return err
	}
	removed, err := s.store.RemoveReminder(ctx, jobID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: reminder %s", store.ErrNotFound, jobID)
	}
	s.log.Info("reminder cancelled", logx.String("job_id", jobID), logx.String("user", userID))
	return nil
}

// ConsumeEvents watches the bus and removes reminder records once their job
// reports successful execution. On job.error the record is deliberately left
// in place: it stays visible to the user and eligible for reconciliation.
func (s *Service) ConsumeEvents(ctx context.Context) {
	events, unsub := s.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev, isJob := e.Data.(jobs.Event)
			if !isJob {
				continue
			}
			switch e.Type {
			case eventbus.TypeJobExecuted:
				removed, err := s.store.RemoveReminder(ctx, ev.JobID)
				if err != nil {
					s.log.Warn("failed removing delivered reminder", logx.String("job_id", ev.JobID), logx.Err(err))
					continue
				}
				if !removed {
					// Cancelled between firing and cleanup; nothing to do.
					continue
				}
				s.log.Debug("reminder record removed after delivery", logx.String("job_id", ev.JobID))
			case eventbus.TypeJobError:
				s.log.Warn("reminder delivery failed; keeping record for reconciliation",
					logx.String("job_id", ev.JobID),
					logx.String("user", ev.Payload.UserID),
					logx.String("err", ev.Error))
			}
		}
	}
}
