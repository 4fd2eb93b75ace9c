package jobs

import (
	"context"
	"database/sql"
	"time"
)

// The scheduler owns this table exclusively. It shares the database file with
// the application store but nothing outside this package touches the schema.
const schema = `
CREATE TABLE IF NOT EXISTS scheduler_jobs (
    job_id     TEXT PRIMARY KEY,
    fire_at    INTEGER NOT NULL, -- unix seconds, UTC
    grace_sec  INTEGER NOT NULL,
    user_id    TEXT NOT NULL,
    title      TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS scheduler_jobs_fire_idx ON scheduler_jobs(fire_at);
`

type jobStore struct {
	db *sql.DB
}

func (js *jobStore) init(ctx context.Context) error {
	_, err := js.db.ExecContext(ctx, schema)
	return err
}

func (js *jobStore) insert(ctx context.Context, t task) error {
	_, err := js.db.ExecContext(ctx, `
		INSERT INTO scheduler_jobs (job_id, fire_at, grace_sec, user_id, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.id, t.fireAt.UTC().Unix(), int64(t.grace.Seconds()),
		t.payload.UserID, t.payload.Title, t.payload.Body,
		time.Now().UTC().Unix(),
	)
	return err
}

func (js *jobStore) delete(ctx context.Context, jobID string) (bool, error) {
	res, err := js.db.ExecContext(ctx, `DELETE FROM scheduler_jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (js *jobStore) listAll(ctx context.Context) ([]task, error) {
	rows, err := js.db.QueryContext(ctx, `
		SELECT job_id, fire_at, grace_sec, user_id, title, body
		FROM scheduler_jobs
		ORDER BY fire_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task
	for rows.Next() {
		var (
			t        task
			fireAt   int64
			graceSec int64
		)
		if err := rows.Scan(&t.id, &fireAt, &graceSec, &t.payload.UserID, &t.payload.Title, &t.payload.Body); err != nil {
			return nil, err
		}
		t.fireAt = time.Unix(fireAt, 0).UTC()
		t.grace = time.Duration(graceSec) * time.Second
		out = append(out, t)
	}
	return out, rows.Err()
}
