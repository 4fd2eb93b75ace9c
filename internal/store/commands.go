package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CustomCommand is a user-defined keyed text reply.
type CustomCommand struct {
	Name      string
	Reply     string
	CreatedAt time.Time
}

// CreateCommand adds a new custom command; a name collision reports
// ErrCommandExists so the caller can tell the user to pick another name.
func (s *Store) CreateCommand(ctx context.Context, name, reply string) error {
	if name == "" {
		return errors.New("command name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_commands (name, reply, created_at) VALUES (?, ?, ?)`,
		name, reply, time.Now().UTC().Unix(),
	)
	if err != nil {
		var n int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM custom_commands WHERE name = ?`, name)
		if scanErr := row.Scan(&n); scanErr == nil && n > 0 {
			return fmt.Errorf("%w: %s", ErrCommandExists, name)
		}
		return err
	}
	return nil
}

// RemoveCommand deletes a command; reports whether it existed.
func (s *Store) RemoveCommand(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_commands WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetCommand looks up a command's reply text; ok is false when it does not
// exist.
func (s *Store) GetCommand(ctx context.Context, name string) (reply string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT reply FROM custom_commands WHERE name = ?`, name)
	err = row.Scan(&reply)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return reply, true, nil
}

// ListCommands returns all commands ordered by name.
func (s *Store) ListCommands(ctx context.Context) ([]CustomCommand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, reply, created_at FROM custom_commands ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomCommand
	for rows.Next() {
		var (
			c       CustomCommand
			created int64
		)
		if err := rows.Scan(&c.Name, &c.Reply, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
