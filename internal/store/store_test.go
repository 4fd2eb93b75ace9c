package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "bot.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReminderDuplicateJobID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	r := Reminder{JobID: "job-1", UserID: "u1", Title: "t", Body: "b", DueAt: time.Now().Add(time.Hour)}
	if err := s.CreateReminder(ctx, r); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	err := s.CreateReminder(ctx, r)
	if !errors.Is(err, ErrDuplicateJobID) {
		t.Fatalf("second CreateReminder error = %v, want ErrDuplicateJobID", err)
	}
}

func TestReminderRemoveIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	r := Reminder{JobID: "job-2", UserID: "u1", Title: "t", Body: "b", DueAt: time.Now().Add(time.Hour)}
	if err := s.CreateReminder(ctx, r); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	removed, err := s.RemoveReminder(ctx, "job-2")
	if err != nil || !removed {
		t.Fatalf("first RemoveReminder = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = s.RemoveReminder(ctx, "job-2")
	if err != nil || removed {
		t.Fatalf("second RemoveReminder = (%v, %v), want (false, nil)", removed, err)
	}

	if _, err := s.GetReminder(ctx, "job-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReminder after remove = %v, want ErrNotFound", err)
	}
}

func TestListRemindersByUserOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, due := range []time.Time{base.Add(3 * time.Hour), base, base.Add(time.Hour)} {
		r := Reminder{JobID: string(rune('a' + i)), UserID: "u1", Title: "t", DueAt: due}
		if err := s.CreateReminder(ctx, r); err != nil {
			t.Fatalf("CreateReminder %d: %v", i, err)
		}
	}
	// Another user's reminder must not leak in.
	if err := s.CreateReminder(ctx, Reminder{JobID: "other", UserID: "u2", DueAt: base}); err != nil {
		t.Fatalf("CreateReminder other: %v", err)
	}

	got, err := s.ListRemindersByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRemindersByUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reminders, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].DueAt.Before(got[i-1].DueAt) {
			t.Fatalf("reminders not in ascending due order: %v", got)
		}
	}
}

func TestListOverdueReminders(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		jobID   string
		dueAt   time.Time
		overdue bool
	}{
		{"past", now.Add(-time.Hour), true},
		{"exact", now, false},
		{"future", now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		if err := s.CreateReminder(ctx, Reminder{JobID: tt.jobID, UserID: "u1", DueAt: tt.dueAt}); err != nil {
			t.Fatalf("CreateReminder %s: %v", tt.jobID, err)
		}
	}

	got, err := s.ListOverdueReminders(ctx, now)
	if err != nil {
		t.Fatalf("ListOverdueReminders: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "past" {
		t.Fatalf("ListOverdueReminders = %+v, want only 'past'", got)
	}
}

func TestTimezoneUpsert(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetTimezone(ctx, "u1"); err != nil || ok {
		t.Fatalf("GetTimezone before set = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
	if err := s.SetTimezone(ctx, "u1", "UTC"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	if err := s.SetTimezone(ctx, "u1", "Asia/Kolkata"); err != nil {
		t.Fatalf("SetTimezone overwrite: %v", err)
	}
	tz, ok, err := s.GetTimezone(ctx, "u1")
	if err != nil || !ok || tz != "Asia/Kolkata" {
		t.Fatalf("GetTimezone = (%q, %v, %v), want (Asia/Kolkata, true, nil)", tz, ok, err)
	}
}

func TestPollVoteMoves(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := Poll{
		ID:        "p1",
		MessageID: "m1",
		ChannelID: "c1",
		CreatorID: "u1",
		Question:  "tea or coffee?",
		Options:   []string{"tea", "coffee"},
	}
	if err := s.CreatePoll(ctx, p); err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}

	if _, err := s.SetPollVote(ctx, "m1", "voter", 0); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	got, err := s.SetPollVote(ctx, "m1", "voter", 1)
	if err != nil {
		t.Fatalf("revote: %v", err)
	}
	if got.VoteCount(0) != 0 || got.VoteCount(1) != 1 {
		t.Fatalf("votes after revote = %v, want moved to option 1", got.Votes)
	}

	// Round-trip through storage, not just the returned copy.
	stored, err := s.GetPollByMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetPollByMessage: %v", err)
	}
	if stored.VoteCount(0) != 0 || stored.VoteCount(1) != 1 {
		t.Fatalf("stored votes = %v, want moved to option 1", stored.Votes)
	}

	if _, err := s.SetPollVote(ctx, "m1", "voter", 5); err == nil {
		t.Fatal("expected error for out-of-range option")
	}
}

func TestPollRemove(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := Poll{ID: "p1", MessageID: "m1", CreatorID: "u1", Question: "q", Options: []string{"a", "b"}}
	if err := s.CreatePoll(ctx, p); err != nil {
		t.Fatalf("CreatePoll: %v", err)
	}
	removed, err := s.RemovePoll(ctx, "m1")
	if err != nil || !removed {
		t.Fatalf("RemovePoll = (%v, %v), want (true, nil)", removed, err)
	}
	if _, err := s.GetPollByMessage(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPollByMessage after remove = %v, want ErrNotFound", err)
	}
}

func TestCustomCommandLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateCommand(ctx, "greet", "hello there"); err != nil {
		t.Fatalf("CreateCommand: %v", err)
	}
	if err := s.CreateCommand(ctx, "greet", "again"); !errors.Is(err, ErrCommandExists) {
		t.Fatalf("duplicate CreateCommand error = %v, want ErrCommandExists", err)
	}

	reply, ok, err := s.GetCommand(ctx, "greet")
	if err != nil || !ok || reply != "hello there" {
		t.Fatalf("GetCommand = (%q, %v, %v)", reply, ok, err)
	}

	removed, err := s.RemoveCommand(ctx, "greet")
	if err != nil || !removed {
		t.Fatalf("RemoveCommand = (%v, %v), want (true, nil)", removed, err)
	}
	if _, ok, _ := s.GetCommand(ctx, "greet"); ok {
		t.Fatal("command still present after remove")
	}
}
