package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Poll holds a question, its options and the votes per option. Votes map the
// option index to the user ids that picked it; a user appears under at most one
// option.
type Poll struct {
	ID        string
	MessageID string
	ChannelID string
	CreatorID string
	Question  string
	Options   []string
	Votes     map[int][]string
	CreatedAt time.Time
}

// VoteCount returns the number of votes for the given option index.
func (p *Poll) VoteCount(option int) int { return len(p.Votes[option]) }

func (s *Store) CreatePoll(ctx context.Context, p Poll) error {
	if p.ID == "" || p.MessageID == "" {
		return errors.New("poll id and message id are required")
	}
	if p.Votes == nil {
		p.Votes = map[int][]string{}
	}
	opts, err := json.Marshal(p.Options)
	if err != nil {
		return err
	}
	votes, err := marshalVotes(p.Votes)
	if err != nil {
		return err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polls (id, message_id, channel_id, creator_id, question, options, votes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MessageID, p.ChannelID, p.CreatorID, p.Question, string(opts), string(votes), created.UTC().Unix(),
	)
	return err
}

// GetPollByMessage looks a poll up by the chat message that renders it.
func (s *Store) GetPollByMessage(ctx context.Context, messageID string) (Poll, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, channel_id, creator_id, question, options, votes, created_at
		FROM polls WHERE message_id = ?`, messageID)
	p, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Poll{}, fmt.Errorf("%w: poll for message %s", ErrNotFound, messageID)
	}
	return p, err
}

func (s *Store) ListPolls(ctx context.Context) ([]Poll, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, channel_id, creator_id, question, options, votes, created_at
		FROM polls ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetPollVote records userID's vote for option, moving any previous vote. The
// read-modify-write runs in a transaction so concurrent votes cannot clobber
// each other. The updated poll is returned for rendering.
func (s *Store) SetPollVote(ctx context.Context, messageID, userID string, option int) (Poll, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Poll{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, message_id, channel_id, creator_id, question, options, votes, created_at
		FROM polls WHERE message_id = ?`, messageID)
	p, err := scanPoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Poll{}, fmt.Errorf("%w: poll for message %s", ErrNotFound, messageID)
	}
	if err != nil {
		return Poll{}, err
	}
	if option < 0 || option >= len(p.Options) {
		return Poll{}, fmt.Errorf("option %d out of range", option)
	}

	// One vote per user: drop the user from every option before adding.
	for i, users := range p.Votes {
		n := 0
		for _, u := range users {
			if u != userID {
				users[n] = u
				n++
			}
		}
		p.Votes[i] = users[:n]
	}
	p.Votes[option] = append(p.Votes[option], userID)

	votes, err := marshalVotes(p.Votes)
	if err != nil {
		return Poll{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE polls SET votes = ? WHERE id = ?`, string(votes), p.ID); err != nil {
		return Poll{}, err
	}
	if err := tx.Commit(); err != nil {
		return Poll{}, err
	}
	return p, nil
}

// RemovePoll deletes a poll by message id; reports whether it existed.
func (s *Store) RemovePoll(ctx context.Context, messageID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE message_id = ?`, messageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanPoll(row rowScanner) (Poll, error) {
	var (
		p       Poll
		opts    string
		votes   string
		created int64
	)
	if err := row.Scan(&p.ID, &p.MessageID, &p.ChannelID, &p.CreatorID, &p.Question, &opts, &votes, &created); err != nil {
		return Poll{}, err
	}
	if err := json.Unmarshal([]byte(opts), &p.Options); err != nil {
		return Poll{}, fmt.Errorf("poll %s: bad options json: %w", p.ID, err)
	}
	var raw map[string][]string
	if err := json.Unmarshal([]byte(votes), &raw); err != nil {
		return Poll{}, fmt.Errorf("poll %s: bad votes json: %w", p.ID, err)
	}
	p.Votes = make(map[int][]string, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil {
			return Poll{}, fmt.Errorf("poll %s: bad vote key %q", p.ID, k)
		}
		p.Votes[i] = v
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

func marshalVotes(votes map[int][]string) ([]byte, error) {
	raw := make(map[string][]string, len(votes))
	for i, users := range votes {
		if users == nil {
			users = []string{}
		}
		raw[strconv.Itoa(i)] = users
	}
	return json.Marshal(raw)
}
