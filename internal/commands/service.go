// Package commands implements user-defined text-reply commands: a keyed lookup
// from a command name to a canned reply.
package commands

import (
	"context"
	"strings"

	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
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

// Set adds a new command. Names are case-insensitive; a collision reports
// store.ErrCommandExists.
func (s *Service) Set(ctx context.Context, name, reply string) error {
	name = normalize(name)
	if err := s.store.CreateCommand(ctx, name, reply); err != nil {
		return err
	}
	s.log.Info("custom command added", logx.String("name", name))
	return nil
}

// Remove deletes a command; reports whether it existed.
func (s *Service) Remove(ctx context.Context, name string) (bool, error) {
	removed, err := s.store.RemoveCommand(ctx, normalize(name))
	if err == nil && removed {
		s.log.Info("custom command removed", logx.String("name", name))
	}
	return removed, err
}

// Lookup returns the reply for a command name, if defined.
func (s *Service) Lookup(ctx context.Context, name string) (string, bool, error) {
	return s.store.GetCommand(ctx, normalize(name))
}

// List returns all defined commands, sorted by name.
func (s *Service) List(ctx context.Context) ([]store.CustomCommand, error) {
	return s.store.ListCommands(ctx)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
