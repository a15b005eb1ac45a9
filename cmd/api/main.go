package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/app"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/clock"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/config"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/storage/postgres"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/storage/sqlite"
	syncengine "github.com/jacknaylordunn/NightGuard-sub000/internal/sync"
	transporthttp "github.com/jacknaylordunn/NightGuard-sub000/internal/transport/http"
	"github.com/jacknaylordunn/NightGuard-sub000/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	venue := cfg.Venue.Venue()
	if !venue.Ready() {
		// Without a company/venue identity there is no session document to
		// subscribe to; refusing to start beats writing into the void.
		logger.Fatal("venue config incomplete: company_id and venue_id are required")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	cache, err := sqlite.Open(cfg.CachePath)
	if err != nil {
		logger.Fatal("open snapshot cache", zap.Error(err))
	}
	defer cache.Close()

	clk := clock.NewSystem()
	seed := func(shiftDate string) *domain.Session {
		return domain.NewSession(shiftDate, venue.Name, venue.MaxCapacity,
			cfg.Venue.Checklists.PreEvent, cfg.Venue.Checklists.PostEvent)
	}

	sessionStore := postgres.NewSessionStore(pool)
	engine, err := syncengine.NewEngine(sessionStore, cache, clk, seed, venue, logger)
	if err != nil {
		logger.Fatal("create sync engine", zap.Error(err))
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := engine.Start(runCtx); err != nil {
		logger.Fatal("start sync engine", zap.Error(err))
	}
	defer engine.Close()

	lifecycle := app.NewLifecycle(engine, sessionStore, clk, app.SeedFunc(seed), venue, logger,
		app.WithRolloverInterval(cfg.Venue.RolloverInterval()),
		app.WithHistoryLimit(cfg.Venue.HistoryLimit),
		app.WithInactivity(cfg.Venue.InactivityTimeout(), stopRun),
	)
	go lifecycle.Run(runCtx)

	alertSvc := app.NewAlertService(postgres.NewAlertStore(pool), clk, venue, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/metrics", transporthttp.MetricsHandler())
	mux.Handle("/session", transporthttp.HandleGetSession(engine))
	mux.Handle("/session/increment", transporthttp.HandleClicker(engine, domain.DirectionIn))
	mux.Handle("/session/decrement", transporthttp.HandleClicker(engine, domain.DirectionOut))
	mux.Handle("/session/capacity", transporthttp.HandleSetCapacity(engine))
	mux.Handle("/session/sync", transporthttp.HandleBulkSync(engine))
	mux.Handle("/session/periodic", transporthttp.HandlePeriodicCheck(engine))
	mux.Handle("/session/periodic/", transporthttp.HandlePeriodicCheck(engine))
	mux.Handle("/session/reset", transporthttp.HandleResetClickers(engine))
	mux.Handle("/session/checklist", transporthttp.HandleToggleChecklist(engine))
	mux.Handle("/session/ejections", transporthttp.HandleEjections(engine))
	mux.Handle("/session/ejections/", transporthttp.HandleEjections(engine))
	mux.Handle("/session/rejections", transporthttp.HandleRejections(engine))
	mux.Handle("/session/patrols", transporthttp.HandlePatrols(engine))
	mux.Handle("/session/briefing", transporthttp.HandleBriefing(engine, clk.Now))
	mux.Handle("/session/max-capacity", transporthttp.HandleMaxCapacity(engine))
	mux.Handle("/shift/end", transporthttp.HandleEndShift(lifecycle))
	mux.Handle("/history", transporthttp.HandleHistory(lifecycle))
	mux.Handle("/alerts", transporthttp.HandleAlerts(alertSvc))
	mux.Handle("/alerts/", transporthttp.HandleDismissAlert(alertSvc))
	mux.Handle("/live", transporthttp.HandleLiveFeed(engine, logger))
	mux.HandleFunc("/", transporthttp.NotFound)

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("api listening", zap.String("port", cfg.Port), zap.String("venue", venue.VenueID))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	case <-runCtx.Done():
		logger.Info("session torn down, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
