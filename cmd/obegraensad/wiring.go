package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/coordinator"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
	"github.com/nerrad567/gray-logic-obegraensad/internal/flow"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/logging"
	_ "github.com/nerrad567/gray-logic-obegraensad/migrations" // registers embedded SQL
)

// openRegistry opens and migrates the database and loads the entry registry.
// The caller must close the returned database.
func openRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, *entry.Registry, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Debug("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already returning the migration error
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	registry := entry.NewRegistry(entry.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if err := registry.RefreshCache(ctx); err != nil {
		db.Close() //nolint:errcheck // Already returning the load error
		return nil, nil, fmt.Errorf("loading entry registry: %w", err)
	}

	return db, registry, nil
}

// coordinatorOptions maps device config onto coordinator options.
func coordinatorOptions(cfg config.DeviceConfig, log *logging.Logger) coordinator.Options {
	return coordinator.Options{
		Port:        cfg.Port,
		Path:        cfg.WSPath,
		DialTimeout: cfg.DialTimeout,
		Logger:      log,
	}
}

// pairingDeps are the pieces a pairing flow needs.
type pairingDeps struct {
	registry *entry.Registry
	recorder flow.ProbeRecorder    // optional
	metrics  prometheus.Registerer // optional
	audit    *audit.Recorder       // optional
	onCreate []func(entry.Entry)
	log      *logging.Logger
}

// newFlowHandler builds the pairing handler over a real device prober.
// Created entries are audited and then passed to every onCreate hook.
func newFlowHandler(ctx context.Context, cfg *config.Config, deps pairingDeps) *flow.Handler {
	metrics := flow.NewMetrics(deps.metrics)

	prober := flow.NewDeviceProber(
		flow.NewCoordinatorFactory(coordinatorOptions(cfg.Device, deps.log)),
		cfg.Device.SettleDelay,
	)
	prober.SetLogger(deps.log)
	prober.SetMetrics(metrics)
	if deps.recorder != nil {
		prober.SetRecorder(deps.recorder)
	}

	handler := flow.NewHandler(deps.registry, prober, flow.HandlerConfig{
		SuggestedHost: cfg.Device.DefaultHost,
		ProbeTimeout:  cfg.Device.ProbeTimeout,
	})
	handler.SetLogger(deps.log)
	handler.SetMetrics(metrics)
	handler.OnEntryCreated(func(e entry.Entry) {
		deps.audit.Record(ctx, audit.ActionEntryCreated, e.ID, map[string]any{"host": e.Data.Host})
		for _, fn := range deps.onCreate {
			fn(e)
		}
	})
	return handler
}
