package remind

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

// Reconcile catches reminders whose due time passed while no process was
// running to fire them. It runs once at startup (after the scheduler is live)
// and again on every sweep tick.
//
// A record is considered missed when it is overdue AND its job id is absent
// from the scheduler's pending set: an overdue-but-pending job is merely
// seconds from firing on its own and must be left alone.
//
// Missed reminders are delivered immediately, flagged as delayed, then
// removed. Per-item failures are logged and skipped; the record stays for the
// next sweep. The pass pauses after every batch to avoid bursting the
// delivery channel.
func (s *Service) Reconcile(ctx context.Context) (delivered int, failed int, err error) {
	overdue, err := s.store.ListOverdueReminders(ctx, time.Now())
	if err != nil {
		return 0, 0, err
	}
	if len(overdue) == 0 {
		return 0, 0, nil
	}

	pending := s.sched.ListPending()

	for _, rec := range overdue {
		if _, stillScheduled := pending[rec.JobID]; stillScheduled {
			continue
		}
		if ctx.Err() != nil {
			return delivered, failed, ctx.Err()
		}

		if derr := s.disp.Deliver(ctx, rec.UserID, rec.Title, rec.Body, true); derr != nil {
			failed++
			s.log.Warn("missed reminder delivery failed; will retry next sweep",
				logx.String("job_id", rec.JobID),
				logx.String("user", rec.UserID),
				logx.Err(derr))
			continue
		}
		if _, rerr := s.store.RemoveReminder(ctx, rec.JobID); rerr != nil {
			s.log.Warn("failed removing reconciled reminder", logx.String("job_id", rec.JobID), logx.Err(rerr))
		}
		delivered++

		if delivered%s.cfg.BatchSize == 0 {
			if !sleepCtx(ctx, s.cfg.BatchPause) {
				return delivered, failed, ctx.Err()
			}
		}
	}

	if delivered > 0 || failed > 0 {
		s.log.Info("reconciliation pass finished",
			logx.Int("delivered", delivered),
			logx.Int("failed", failed),
			logx.Int("overdue", len(overdue)))
	}
	return delivered, failed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Sweeper re-runs Reconcile on a cron spec so reminders whose delivery failed
// at startup are retried without waiting for a restart.
type Sweeper struct {
	mu  sync.Mutex
	c   *cron.Cron
	log logx.Logger
}

// StartSweep schedules periodic reconciliation. An empty spec disables the
// sweep and returns a nil Sweeper (safe to Stop).
func (s *Service) StartSweep(ctx context.Context, spec string) (*Sweeper, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, _, rerr := s.Reconcile(ctx); rerr != nil {
			s.log.Warn("reconciliation sweep failed", logx.Err(rerr))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.log.Info("reconciliation sweep scheduled", logx.String("spec", spec))
	return &Sweeper{c: c, log: s.log}, nil
}

// Stop halts the sweep, waiting briefly for an in-flight run.
func (w *Sweeper) Stop(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	c := w.c
	w.c = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
