// Package control wires the application together and manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/regfetch/internal/core/config"
	"github.com/vietddude/regfetch/internal/core/ratelimit"
	"github.com/vietddude/regfetch/internal/infra/health"
	redisclient "github.com/vietddude/regfetch/internal/infra/redis"
	"github.com/vietddude/regfetch/internal/infra/session"
	"github.com/vietddude/regfetch/internal/infra/storage/postgres"
	"github.com/vietddude/regfetch/internal/infra/upstream/ceidg"
	"github.com/vietddude/regfetch/internal/infra/upstream/courtreg"
	"github.com/vietddude/regfetch/internal/infra/upstream/statoffice"
	"github.com/vietddude/regfetch/internal/mapping"
	"github.com/vietddude/regfetch/internal/orchestrate"
)

// Aggregator is the main application struct that manages the service lifecycle.
type Aggregator struct {
	cfg          *config.AppConfig
	orchestrator *orchestrate.Orchestrator
	sessions     *session.Manager
	gate         *ratelimit.Gate
	server       *Server
	healthMon    *health.Monitor
	db           *postgres.DB
	audit        *postgres.AuditRepo
	sessionStore *redisclient.SessionStore
	log          *slog.Logger
}

// NewAggregator creates an Aggregator with all dependencies initialized.
func NewAggregator(cfg *config.AppConfig) (*Aggregator, error) {
	// 1. Upstream clients
	statClient := statoffice.NewClient(cfg.Sources.StatOffice.Config)
	courtClient := courtreg.NewClient(cfg.Sources.CourtReg.Config)
	firmClient := ceidg.NewClient(cfg.Sources.EntrepReg.Config)

	// 2. Optional Redis session cache. The service runs without it; only
	// cross-restart session reuse is lost.
	var sessionStore *redisclient.SessionStore
	var store session.Store
	if cfg.Redis.URL != "" {
		var err error
		sessionStore, err = redisclient.NewSessionStore(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, session cache disabled", "error", err)
		} else {
			store = sessionStore
			slog.Info("Using Redis session cache")
		}
	}

	sessions := session.NewManager(statClient, store, cfg.Sources.StatOffice.RefreshBuffer)
	gate := ratelimit.NewGate(cfg.Sources.StatOffice.RatePerSecond)

	// 3. Optional audit storage
	var db *postgres.DB
	var audit *postgres.AuditRepo
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the direct *sql.DB which sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		audit = postgres.NewAuditRepo(db)
		slog.Info("Using PostgreSQL audit storage")
	}

	// 4. Orchestrator
	orch := orchestrate.New(
		orchestrate.Config{
			Deadline:   cfg.Lookup.Deadline,
			StatOffice: cfg.Sources.StatOffice.Retry,
			CourtReg:   cfg.Sources.CourtReg.Retry,
			EntrepReg:  cfg.Sources.EntrepReg.Retry,
		},
		statClient,
		courtClient,
		firmClient,
		sessions,
		gate,
		mapping.New(),
	)

	// 5. Health monitor. Probes go straight to the upstreams, bypassing the
	// gate and the retry executor.
	probers := map[string]health.Prober{
		"stat-office":           health.ProberFunc(statClient.Probe),
		"court-registry":        health.ProberFunc(courtClient.Probe),
		"entrepreneur-registry": health.ProberFunc(firmClient.Probe),
	}
	if db != nil {
		probers["database"] = health.ProberFunc(db.Health)
	}
	healthMon := health.NewMonitor(probers)

	server := NewServer(orch, healthMon, audit, cfg.Server.Port)

	return &Aggregator{
		cfg:          cfg,
		orchestrator: orch,
		sessions:     sessions,
		gate:         gate,
		server:       server,
		healthMon:    healthMon,
		db:           db,
		audit:        audit,
		sessionStore: sessionStore,
		log:          slog.Default(),
	}, nil
}

// Start starts the HTTP server and background collectors.
func (a *Aggregator) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.log.Info("Aggregator started", "port", a.cfg.Server.Port)
	return nil
}

// Stop shuts the service down in dependency order: stop accepting requests,
// drain in-flight stat-office work, release the session, close stores.
func (a *Aggregator) Stop(ctx context.Context) error {
	a.log.Info("Stopping Aggregator...")

	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("HTTP server shutdown failed", "error", err)
	}

	if err := a.gate.Close(ctx); err != nil {
		a.log.Warn("Gate drain interrupted", "error", err)
	}

	a.sessions.Logout(ctx)

	if a.sessionStore != nil {
		if err := a.sessionStore.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	return nil
}
