// Package delivery decouples scheduler workers from the chat session. Workers
// post a delivery request onto a channel and block on a per-request reply
// future; a single dispatcher loop that owns the session resolves it. This
// keeps all platform sends on one flow and gives the scheduler a synchronous
// success/failure answer for its at-most-once bookkeeping.
package delivery

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

// ErrStopped reports a delivery attempted after the dispatcher loop exited.
var ErrStopped = errors.New("delivery dispatcher stopped")

// Sender is the external collaborator that actually reaches the user. The
// Discord adapter implements it; tests substitute fakes.
type Sender interface {
	SendDM(ctx context.Context, userID, title, body string, delayed bool) error
}

type request struct {
	userID  string
	title   string
	body    string
	delayed bool
	reply   chan error
}

type Dispatcher struct {
	sender   Sender
	log      logx.Logger
	limiter  *rate.Limiter
	requests chan request
	done     chan struct{}
}

// Config bounds the dispatcher. RatePerSec <= 0 disables pacing.
type Config struct {
	QueueSize  int
	RatePerSec int
}

func New(sender Sender, cfg Config, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return &Dispatcher{
		sender:   sender,
		log:      log,
		limiter:  limiter,
		requests: make(chan request, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// Run is the delivery loop. It owns all calls into the Sender and exits when
// ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.requests:
			if d.limiter != nil {
				if err := d.limiter.Wait(ctx); err != nil {
					req.reply <- ErrStopped
					return nil
				}
			}
			err := d.sender.SendDM(ctx, req.userID, req.title, req.body, req.delayed)
			if err != nil {
				d.log.Warn("delivery failed", logx.String("user", req.userID), logx.Err(err))
			}
			// reply is buffered; the waiter may already have given up.
			req.reply <- err
		}
	}
}

// Deliver posts a delivery request and blocks until the loop resolves it (or
// ctx is cancelled). This is the only way scheduler workers and the
// reconciliation pass reach the user.
func (d *Dispatcher) Deliver(ctx context.Context, userID, title, body string, delayed bool) error {
	req := request{
		userID:  userID,
		title:   title,
		body:    body,
		delayed: delayed,
		reply:   make(chan error, 1),
	}
	select {
	case d.requests <- req:
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
