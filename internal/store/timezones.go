package store

import (
	"context"
	"database/sql"
	"errors"
)

// SetTimezone stores the user's IANA zone name, overwriting any previous value.
func (s *Store) SetTimezone(ctx context.Context, userID, tz string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timezones (user_id, tz) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET tz = excluded.tz`,
		userID, tz,
	)
	return err
}

// GetTimezone returns the user's saved zone name; ok is false when the user has
// never set one.
func (s *Store) GetTimezone(ctx context.Context, userID string) (tz string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT tz FROM timezones WHERE user_id = ?`, userID)
	err = row.Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tz, true, nil
}
