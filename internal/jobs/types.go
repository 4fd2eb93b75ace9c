// Package jobs implements a durable one-shot task scheduler. Tasks are
// persisted in the scheduler's own SQLite table (opaque to the rest of the
// application), survive process restarts, and fire at most once at or after
// their due instant. Firing results are published on the event bus as
// job.executed / job.error events; the event, not the handler's return value,
// is the authoritative signal consumers act on.
package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrJobNotFound reports a cancel for a job that does not exist or has
	// already begun firing.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnavailable reports a scheduling call before Start() (or after Stop()).
	ErrUnavailable = errors.New("scheduler not ready")
)

// State is the scheduler's explicit lifecycle state, checked before any
// scheduling call.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Payload is what a task carries to its handler when it fires.
type Payload struct {
	UserID string
	Title  string
	Body   string
}

// Handler delivers a fired task. It runs on a scheduler worker and blocks that
// worker until it completes; the worker pool bounds concurrency.
type Handler func(ctx context.Context, jobID string, p Payload) error

// Event is the payload of job.executed / job.error bus events.
type Event struct {
	JobID   string
	Payload Payload
	FiredAt time.Time
	Took    time.Duration
	Error   string // empty on success
}

type Config struct {
	Workers   int
	QueueSize int
	// DefaultGrace applies when Schedule is called with grace <= 0.
	DefaultGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.DefaultGrace <= 0 {
		c.DefaultGrace = time.Minute
	}
	return c
}

// task is the persisted unit: a job id, a due instant, the payload, and the
// misfire tolerance.
type task struct {
	id      string
	fireAt  time.Time
	grace   time.Duration
	payload Payload
}
