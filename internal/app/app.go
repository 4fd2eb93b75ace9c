// Package app wires the bot together: config, logging, storage, scheduler,
// delivery and the Discord adapter, with a supervised lifecycle around them.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/asmahdi08/Theseus-Bot/internal/commands"
	"github.com/asmahdi08/Theseus-Bot/internal/config"
	"github.com/asmahdi08/Theseus-Bot/internal/delivery"
	"github.com/asmahdi08/Theseus-Bot/internal/eventbus"
	"github.com/asmahdi08/Theseus-Bot/internal/jobs"
	"github.com/asmahdi08/Theseus-Bot/internal/polls"
	"github.com/asmahdi08/Theseus-Bot/internal/remind"
	"github.com/asmahdi08/Theseus-Bot/internal/runtime/supervisor"
	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/internal/transport/discord"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   *store.Store
	sched   *jobs.Service
	disp    *delivery.Dispatcher
	remind  *remind.Service
	polls   *polls.Service
	cmds    *commands.Service
	adapter *discord.Adapter
	sweep   *remind.Sweeper
}

// dmSender defers the Sender binding: the dispatcher is built before the
// Discord adapter (which itself needs the services the dispatcher feeds).
type dmSender struct {
	adapter *discord.Adapter
}

func (s *dmSender) SendDM(ctx context.Context, userID, title, body string, delayed bool) error {
	if s.adapter == nil {
		return fmt.Errorf("discord adapter not wired")
	}
	return s.adapter.SendDM(ctx, userID, title, body, delayed)
}

// New builds the full object graph without starting anything. The Discord
// token comes from the environment, not the config file.
func New(cfgPath, token string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	busyTimeout, err := config.ParseDurationOrDefault("database.busy_timeout", cfg.Database.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(context.Background(), store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	misfireGrace, err := config.ParseDurationOrDefault("scheduler.misfire_grace", cfg.Scheduler.MisfireGrace, time.Minute)
	if err != nil {
		return nil, err
	}
	batchPause, err := config.ParseDurationOrDefault("reconcile.batch_pause", cfg.Reconcile.BatchPause, time.Second)
	if err != nil {
		return nil, err
	}

	sender := &dmSender{}
	disp := delivery.New(sender, delivery.Config{
		QueueSize:  cfg.Delivery.QueueSize,
		RatePerSec: cfg.Delivery.RatePerSec,
	}, log.With(logx.String("comp", "delivery")))

	// The scheduler handler calls into the reminder service, which in turn
	// needs the scheduler; the closure resolves the cycle.
	var remindSvc *remind.Service
	sched := jobs.New(st.DB(), jobs.Config{
		Workers:      cfg.Scheduler.Workers,
		QueueSize:    cfg.Scheduler.QueueSize,
		DefaultGrace: misfireGrace,
	}, func(ctx context.Context, jobID string, p jobs.Payload) error {
		return remindSvc.HandleJob(ctx, jobID, p)
	}, log.With(logx.String("comp", "scheduler")), bus)

	remindSvc = remind.New(remind.Config{
		MisfireGrace: misfireGrace,
		BatchSize:    cfg.Reconcile.BatchSize,
		BatchPause:   batchPause,
	}, st, sched, disp, log.With(logx.String("comp", "remind")), bus)

	pollsSvc := polls.New(st, log.With(logx.String("comp", "polls")))
	cmdsSvc := commands.New(st, log.With(logx.String("comp", "commands")))

	adapter, err := discord.New(discord.Config{
		Token:   token,
		GuildID: cfg.Discord.GuildID,
	}, remindSvc, pollsSvc, cmdsSvc, log.With(logx.String("comp", "discord")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	sender.adapter = adapter

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   st,
		sched:   sched,
		disp:    disp,
		remind:  remindSvc,
		polls:   pollsSvc,
		cmds:    cmdsSvc,
		adapter: adapter,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or
// Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// Restore persisted jobs before the gateway opens so nothing fires into a
	// half-built app.
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := a.adapter.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("delivery.dispatch", a.disp.Run)

	a.sup.Go0("remind.events", func(c context.Context) {
		a.remind.ConsumeEvents(c)
	})

	// One reconciliation pass now; overdue reminders accumulated while the bot
	// was down go out as delayed deliveries.
	a.sup.Go0("remind.reconcile", func(c context.Context) {
		if _, _, err := a.remind.Reconcile(c); err != nil {
			a.log.Warn("startup reconciliation failed", logx.Err(err))
		}
	})

	cfg := a.cfgm.Get()
	sweep, err := a.remind.StartSweep(a.sup.Context(), cfg.Reconcile.SweepSpec)
	if err != nil {
		return fmt.Errorf("start reconcile sweep: %w", err)
	}
	a.sweep = sweep

	// Hot reload: only logging changes apply live; everything else needs a
	// restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})
				if newCfg.Database.Path != cfg.Database.Path ||
					newCfg.Scheduler != cfg.Scheduler ||
					newCfg.Discord != cfg.Discord {
					a.log.Warn("database/scheduler/discord config changed; restart required")
				}
				cfg = newCfg
				a.log.Info("config reloaded")
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("sweep", 2*time.Second, func(c context.Context) error { a.sweep.Stop(c); return nil })
	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("store", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
