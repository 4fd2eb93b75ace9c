package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Reminder is the application-level shadow of a scheduled job: what the user
// thinks is still pending. Records are never updated in place; they are created
// once and deleted on delivery, cancellation or reconciliation.
type Reminder struct {
	JobID     string
	UserID    string
	Title     string
	Body      string
	DueAt     time.Time // always UTC
	CreatedAt time.Time
}

// CreateReminder inserts a new reminder record. Job ids are scheduler-assigned
// and expected unique; a duplicate reports ErrDuplicateJobID.
func (s *Store) CreateReminder(ctx context.Context, r Reminder) error {
	if r.JobID == "" {
		return errors.New("job id is required")
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (job_id, user_id, title, body, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.JobID, r.UserID, r.Title, r.Body, r.DueAt.UTC().Unix(), created.UTC().Unix(),
	)
	if err != nil {
		var n int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM reminders WHERE job_id = ?`, r.JobID)
		if scanErr := row.Scan(&n); scanErr == nil && n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateJobID, r.JobID)
		}
		return err
	}
	return nil
}

// RemoveReminder deletes the record for jobID. It is idempotent; the returned
// bool reports whether a record existed, so a double-cancel can be surfaced
// upstream as "not found".
func (s *Store) RemoveReminder(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE job_id = ?`, jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetReminder returns the record for jobID or ErrNotFound.
func (s *Store) GetReminder(ctx context.Context, jobID string) (Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, user_id, title, body, due_at, created_at
		FROM reminders
		WHERE job_id = ?`, jobID)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, fmt.Errorf("%w: reminder %s", ErrNotFound, jobID)
	}
	return r, err
}

// ListRemindersByUser returns the user's reminders ordered soonest first.
func (s *Store) ListRemindersByUser(ctx context.Context, userID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, user_id, title, body, due_at, created_at
		FROM reminders
		WHERE user_id = ?
		ORDER BY due_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListOverdueReminders returns all records with due_at strictly before now.
// Used only by the reconciliation pass.
func (s *Store) ListOverdueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, user_id, title, body, due_at, created_at
		FROM reminders
		WHERE due_at < ?
		ORDER BY due_at ASC`, now.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (Reminder, error) {
	var (
		r       Reminder
		due     int64
		created int64
	)
	if err := row.Scan(&r.JobID, &r.UserID, &r.Title, &r.Body, &due, &created); err != nil {
		return Reminder{}, err
	}
	r.DueAt = time.Unix(due, 0).UTC()
	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}

func collectReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
