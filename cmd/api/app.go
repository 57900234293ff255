package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/troublesprouter/freight-crm/internal/config"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"github.com/troublesprouter/freight-crm/internal/infra/database"
	"github.com/troublesprouter/freight-crm/internal/infra/http/handlers"
	"github.com/troublesprouter/freight-crm/internal/infra/mail"
	"github.com/troublesprouter/freight-crm/internal/infra/memory"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/infra/worker"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
	"gorm.io/gorm"
)

// storage is whichever backend database.driver selects.
type storage struct {
	leads entity.LeadRepository
	orgs  entity.OrganizationRepository
	reps  entity.RepRepository
	tasks entity.TaskRepository
	ping  handlers.Pinger

	db   *sql.DB
	gorm *gorm.DB
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Database.Driver == "" {
		logs.Logger.Warn("⚠️ database.driver is empty, using the in-memory store")
		s := memory.NewStore()
		if cfg.Database.SeedFile != "" {
			fixture, err := memory.LoadFixture(cfg.Database.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := s.Load(fixture, time.Now()); err != nil {
				return nil, err
			}
			logs.Logger.WithField("file", cfg.Database.SeedFile).
				Infof("🌱 seeded %d organizations into the in-memory store", len(fixture.Organizations))
		}
		return &storage{
			leads: s.Leads(),
			orgs:  s.Organizations(),
			reps:  s.Reps(),
			tasks: s.Tasks(),
			ping:  s,
		}, nil
	}

	db, err := database.NewDBConnection(ctx, cfg.Database.DSN, database.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	gdb, err := database.OpenGorm(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	return &storage{
		leads: database.NewLeadRepository(db),
		orgs:  database.NewOrganizationRepository(gdb),
		reps:  database.NewRepRepository(gdb),
		tasks: database.NewTaskRepository(gdb),
		ping:  db,
		db:    db,
		gorm:  gdb,
	}, nil
}

func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// App owns every long-lived dependency of the service.
type App struct {
	cfg *config.Config

	store    *storage
	broker   *queue.RabbitMQ
	producer *queue.RabbitMQProducer
	runner   *worker.InactivityRunner
	limiter  *handlers.RateLimiter

	Router     http.Handler
	httpServer *http.Server
}

// Initialize connects storage and the broker and builds the router.
func (a *App) Initialize(ctx context.Context, cfg *config.Config) error {
	a.cfg = cfg

	// 1. Storage
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	a.store = store

	// 2. Broker (optional)
	var events queue.EventPublisher = queue.NopPublisher{}
	var brokerConn handlers.BrokerConn
	if cfg.RabbitMQ.Enabled {
		a.broker, err = queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			a.Close()
			return err
		}
		a.producer = queue.NewProducer(a.broker.Ch)
		events = a.producer
		brokerConn = a.broker.Conn
	}

	// 3. Task notifications (optional)
	var notifier usecase.TaskNotifier
	if cfg.Mail.Enabled {
		notifier = mail.NewEmailSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	}

	// 4. Use cases
	claim := usecase.NewClaimLeadUseCase(store.leads, store.reps, store.orgs, nil, nil)
	release := usecase.NewReleaseLeadUseCase(store.leads, nil)
	swap := usecase.NewSwapLeadUseCase(release, claim)
	create := usecase.NewCreateLeadUseCase(store.leads, store.reps, store.orgs, nil, nil)
	pool := usecase.NewListPoolUseCase(store.leads, store.orgs, nil)
	owned := usecase.NewListOwnedUseCase(store.leads, store.reps)
	capacity := usecase.NewCapacityStatusUseCase(store.leads, store.reps, store.orgs, nil)
	sweep := usecase.NewInactivitySweepUseCase(store.orgs, store.leads, store.tasks, store.reps, notifier)

	a.runner = worker.NewInactivityRunner(sweep, events)
	a.limiter = handlers.NewRateLimiter(cfg.Claims.RateLimit, cfg.Claims.RateWindow)

	// 5. Router
	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Leads:       handlers.NewLeadHandler(claim, release, swap, create, events, a.limiter),
		Pool:        handlers.NewPoolHandler(pool, owned, capacity),
		Sweep:       handlers.NewSweepHandler(a.runner, cfg.Sweep.CronSecret),
		Health:      handlers.NewHealthHandler(store.ping, brokerConn),
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	return nil
}

// Run serves HTTP and the background triggers until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.Router == nil || a.cfg == nil {
		return errors.New("server not initialized")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Sweep.Enabled {
		go worker.NewInactivityWorker(a.runner, a.cfg.Sweep.Interval).Start(ctx)
	}

	if a.broker != nil {
		consumer := queue.NewSweepConsumer(a.broker.Ch, a.runner)
		go func() {
			if err := consumer.Start(ctx, queue.SweepQueue); err != nil {
				logs.Logger.WithError(err).Error("sweep consumer stopped")
			}
		}()
	}

	go a.limiter.Cleanup(time.Minute, ctx.Done())

	a.httpServer = &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logs.Logger.Infof("🚚 freight-crm listening on %s", a.cfg.Addr())
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer done()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	logs.Logger.Info("server stopped")
	return nil
}

func (a *App) Close() {
	if a.broker != nil {
		a.broker.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logs.Logger.WithError(err).Warn("db close")
		}
	}
}
