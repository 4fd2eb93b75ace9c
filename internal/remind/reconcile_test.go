package remind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asmahdi08/Theseus-Bot/internal/jobs"
	"github.com/asmahdi08/Theseus-Bot/internal/store"
)

func TestReconcileDeliversMissedAsDelayed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	ctx := context.Background()

	// A record whose job no longer exists: the bot was down when it came due.
	missed := store.Reminder{
		JobID: "orphan-1", UserID: "u1", Title: "missed", Body: "b",
		DueAt: time.Now().Add(-time.Hour),
	}
	if err := f.store.CreateReminder(ctx, missed); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	delivered, failed, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if delivered != 1 || failed != 0 {
		t.Fatalf("Reconcile = (%d, %d), want (1, 0)", delivered, failed)
	}

	sent := f.sender.all()
	if len(sent) != 1 || !sent[0].delayed {
		t.Fatalf("sent = %+v, want one delayed DM", sent)
	}
	if _, err := f.store.GetReminder(ctx, "orphan-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record after reconcile = %v, want ErrNotFound", err)
	}

	// A second pass finds nothing; no duplicate delivery.
	delivered, failed, err = f.svc.Reconcile(ctx)
	if err != nil || delivered != 0 || failed != 0 {
		t.Fatalf("second Reconcile = (%d, %d, %v), want (0, 0, nil)", delivered, failed, err)
	}
	if len(f.sender.all()) != 1 {
		t.Fatalf("duplicate delivery: %d DMs", len(f.sender.all()))
	}
}

func TestReconcileSkipsStillPendingJobs(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	ctx := context.Background()

	// Overdue on paper but the job is armed and about to fire on its own:
	// reconciliation must leave it alone.
	jobID, err := f.sched.Schedule(ctx, time.Now().Add(time.Hour), jobs.Payload{UserID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := f.store.CreateReminder(ctx, store.Reminder{
		JobID: jobID, UserID: "u1", Title: "t", DueAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	delivered, failed, err := f.svc.Reconcile(ctx)
	if err != nil || delivered != 0 || failed != 0 {
		t.Fatalf("Reconcile = (%d, %d, %v), want (0, 0, nil)", delivered, failed, err)
	}
	if len(f.sender.all()) != 0 {
		t.Fatalf("pending job was delivered by reconciliation: %+v", f.sender.all())
	}
	if _, gerr := f.store.GetReminder(ctx, jobID); gerr != nil {
		t.Fatalf("record removed for still-pending job: %v", gerr)
	}
}

func TestReconcileKeepsRecordOnFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.sender.setFail(errors.New("dms closed"))
	if err := f.store.CreateReminder(ctx, store.Reminder{
		JobID: "orphan-2", UserID: "u1", Title: "t", DueAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	delivered, failed, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if delivered != 0 || failed != 1 {
		t.Fatalf("Reconcile = (%d, %d), want (0, 1)", delivered, failed)
	}
	if _, err := f.store.GetReminder(ctx, "orphan-2"); err != nil {
		t.Fatalf("record gone after failed reconcile delivery: %v", err)
	}

	// Next sweep picks it up once delivery works again.
	f.sender.setFail(nil)
	delivered, failed, err = f.svc.Reconcile(ctx)
	if err != nil || delivered != 1 || failed != 0 {
		t.Fatalf("retry Reconcile = (%d, %d, %v), want (1, 0, nil)", delivered, failed, err)
	}
}

func TestReconcileBatchPause(t *testing.T) {
	t.Parallel()
	pause := 80 * time.Millisecond
	f := newFixture(t, Config{BatchSize: 2, BatchPause: pause})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := f.store.CreateReminder(ctx, store.Reminder{
			JobID: id, UserID: "u1", Title: id, DueAt: time.Now().Add(-time.Hour),
		}); err != nil {
			t.Fatalf("CreateReminder %s: %v", id, err)
		}
	}

	start := time.Now()
	delivered, _, err := f.svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if delivered != 4 {
		t.Fatalf("delivered = %d, want 4", delivered)
	}
	// Four deliveries in batches of two pause at least twice.
	if took := time.Since(start); took < 2*pause {
		t.Fatalf("Reconcile took %v, want at least %v of batch pauses", took, 2*pause)
	}
}

func TestStartSweepEmptySpec(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})

	sweep, err := f.svc.StartSweep(context.Background(), "  ")
	if err != nil {
		t.Fatalf("StartSweep: %v", err)
	}
	if sweep != nil {
		t.Fatal("empty spec should disable the sweep")
	}
	sweep.Stop(context.Background()) // nil-safe
}

func TestStartSweepInvalidSpec(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	if _, err := f.svc.StartSweep(context.Background(), "not a cron spec"); err == nil {
		t.Fatal("expected error for invalid sweep spec")
	}
}

func TestStartSweepRuns(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.store.CreateReminder(ctx, store.Reminder{
		JobID: "orphan-3", UserID: "u1", Title: "t", DueAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	sweep, err := f.svc.StartSweep(ctx, "@every 100ms")
	if err != nil {
		t.Fatalf("StartSweep: %v", err)
	}
	defer sweep.Stop(ctx)

	waitFor(t, "sweep delivery", func() bool { return len(f.sender.all()) == 1 })
}
