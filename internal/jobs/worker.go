package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/asmahdi08/Theseus-Bot/internal/eventbus"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

func (s *Service) worker(ctx context.Context) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case t := <-s.queue:
			s.execOne(ctx, t)
		}
	}
}

// execOne runs the handler for a fired task, removes the task from the
// scheduler's storage (success or failure alike) and publishes the result on
// the bus. Handler panics are converted to errors so one bad task can't crash
// the process or kill a worker.
func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	s.log.Debug("job firing", logx.String("job_id", t.id), logx.Time("fire_at", t.fireAt))

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("job handler panic",
					logx.String("job_id", t.id),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		err = s.handler(ctx, t.id, t.payload)
	}()

	took := time.Since(start)

	// The task fired; whatever the outcome, it must not fire again. The
	// application-level reminder record is a separate concern handled by the
	// job.executed subscriber.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if _, derr := s.store.delete(cleanupCtx, t.id); derr != nil {
		s.log.Warn("failed removing fired job from storage", logx.String("job_id", t.id), logx.Err(derr))
	}
	cancel()

	ev := Event{JobID: t.id, Payload: t.payload, FiredAt: start, Took: took}
	if err != nil {
		ev.Error = err.Error()
		s.log.Warn("job errored", logx.String("job_id", t.id), logx.Err(err), logx.Duration("took", took))
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeJobError, Data: ev})
		}
		return
	}

	s.log.Info("job executed", logx.String("job_id", t.id), logx.Duration("took", took))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeJobExecuted, Data: ev})
	}
}
