// Package polls implements poll creation and button voting.
package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

const (
	minOptions = 2
	maxOptions = 10
)

var (
	ErrTooFewOptions  = fmt.Errorf("a poll needs at least %d options", minOptions)
	ErrTooManyOptions = fmt.Errorf("a poll allows at most %d options", maxOptions)
	// ErrNotCreator reports a close attempt by someone other than the poll's
	// creator.
	ErrNotCreator = errors.New("only the poll creator can close it")
)

type Service struct {
	store *store.Store
	log   logx.Logger
}

func New(st *store.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: st, log: log}
}

// ParseOptions splits a comma-separated option string, dropping empties.
func ParseOptions(raw string) ([]string, error) {
	var opts []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	if len(opts) < minOptions {
		return nil, ErrTooFewOptions
	}
	if len(opts) > maxOptions {
		return nil, ErrTooManyOptions
	}
	return opts, nil
}

// Create persists a new poll bound to the chat message that renders it.
func (s *Service) Create(ctx context.Context, creatorID, channelID, messageID, question string, options []string) (store.Poll, error) {
	if len(options) < minOptions {
		return store.Poll{}, ErrTooFewOptions
	}
	if len(options) > maxOptions {
		return store.Poll{}, ErrTooManyOptions
	}
	p := store.Poll{
		ID:        uuid.NewString(),
		MessageID: messageID,
		ChannelID: channelID,
		CreatorID: creatorID,
		Question:  question,
		Options:   options,
		Votes:     map[int][]string{},
	}
	if err := s.store.CreatePoll(ctx, p); err != nil {
		return store.Poll{}, err
	}
	s.log.Info("poll created",
		logx.String("poll_id", p.ID),
		logx.String("creator", creatorID),
		logx.Int("options", len(options)))
	return p, nil
}

// Vote records a user's vote; a revote moves the vote to the new option. The
// updated poll is returned for re-rendering.
func (s *Service) Vote(ctx context.Context, messageID, userID string, option int) (store.Poll, error) {
	p, err := s.store.SetPollVote(ctx, messageID, userID, option)
	if err != nil {
		return store.Poll{}, err
	}
	s.log.Debug("vote recorded",
		logx.String("poll_id", p.ID),
		logx.String("user", userID),
		logx.Int("option", option))
	return p, nil
}

// List returns all active polls, oldest first.
func (s *Service) List(ctx context.Context) ([]store.Poll, error) {
	return s.store.ListPolls(ctx)
}

// Close removes a poll; only its creator may do so. The final tallies are
// returned for the closing message.
func (s *Service) Close(ctx context.Context, messageID, requesterID string) (store.Poll, error) {
	p, err := s.store.GetPollByMessage(ctx, messageID)
	if err != nil {
		return store.Poll{}, err
	}
	if p.CreatorID != requesterID {
		return store.Poll{}, ErrNotCreator
	}
	if _, err := s.store.RemovePoll(ctx, messageID); err != nil {
		return store.Poll{}, err
	}
	s.log.Info("poll closed", logx.String("poll_id", p.ID))
	return p, nil
}
