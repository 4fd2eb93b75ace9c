package polls

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{
		Path: filepath.Join(t.TempDir(), "polls.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, logx.Nop())
}

func TestParseOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr error
	}{
		{name: "simple", raw: "tea,coffee", want: []string{"tea", "coffee"}},
		{name: "trims and drops empties", raw: " tea , , coffee ,", want: []string{"tea", "coffee"}},
		{name: "too few", raw: "tea", wantErr: ErrTooFewOptions},
		{name: "empty", raw: " , ,", wantErr: ErrTooFewOptions},
		{name: "too many", raw: "a,b,c,d,e,f,g,h,i,j,k", wantErr: ErrTooManyOptions},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseOptions error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseOptions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateVoteClose(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "creator", "chan-1", "msg-1", "tea or coffee?", []string{"tea", "coffee"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" {
		t.Fatal("poll id not assigned")
	}

	if _, err := s.Vote(ctx, "msg-1", "alice", 0); err != nil {
		t.Fatalf("vote: %v", err)
	}
	got, err := s.Vote(ctx, "msg-1", "alice", 1)
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if got.VoteCount(0) != 0 || got.VoteCount(1) != 1 {
		t.Fatalf("revote tallies = %v, want vote moved", got.Votes)
	}

	if _, err := s.Close(ctx, "msg-1", "stranger"); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("foreign Close error = %v, want ErrNotCreator", err)
	}

	closed, err := s.Close(ctx, "msg-1", "creator")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.VoteCount(1) != 1 {
		t.Fatalf("final tallies = %v", closed.Votes)
	}

	if _, err := s.Vote(ctx, "msg-1", "bob", 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("vote on closed poll error = %v, want ErrNotFound", err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List after close = (%v, %v), want empty", list, err)
	}
}

func TestCreateValidatesOptionCount(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "c", "ch", "m", "q", []string{"only"}); !errors.Is(err, ErrTooFewOptions) {
		t.Fatalf("Create error = %v, want ErrTooFewOptions", err)
	}
	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "opt"
	}
	if _, err := s.Create(ctx, "c", "ch", "m", "q", eleven); !errors.Is(err, ErrTooManyOptions) {
		t.Fatalf("Create error = %v, want ErrTooManyOptions", err)
	}
}
