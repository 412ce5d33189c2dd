package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-obegraensad/internal/api"
	"github.com/nerrad567/gray-logic-obegraensad/internal/audit"
	"github.com/nerrad567/gray-logic-obegraensad/internal/bridge"
	"github.com/nerrad567/gray-logic-obegraensad/internal/entry"
	"github.com/nerrad567/gray-logic-obegraensad/internal/flow"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-obegraensad/internal/infrastructure/mqtt"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the integration service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
// Components are started in dependency order and closed in reverse by the
// defer chain once ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic OBEGRÄNSAD",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, registry, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("entry registry initialised", "entries", registry.Count())

	checks := map[string]api.HealthChecker{"database": db}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditRecorder := audit.NewRecorder(auditRepo, audit.SourceAPI)
	auditRecorder.SetLogger(log)

	deps := pairingDeps{registry: registry, metrics: metricsRegistry, audit: auditRecorder, log: log}
	if influxClient != nil {
		deps.recorder = influxClient
	}

	// Start display bridge (if enabled)
	var displayBridge *bridge.Bridge
	if cfg.Bridge.Enabled {
		displayBridge, err = startBridge(ctx, cfg, registry, mqttClient, influxClient, log)
		if err != nil {
			return fmt.Errorf("starting display bridge: %w", err)
		}
		defer func() {
			log.Info("stopping display bridge")
			if stopErr := displayBridge.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				log.Error("error stopping display bridge", "error", stopErr)
			}
		}()
		deps.onCreate = append(deps.onCreate, displayBridge.AddEntry)
	} else {
		log.Info("display bridge disabled")
	}

	handler := newFlowHandler(ctx, cfg, deps)
	manager, err := flow.NewManager(handler, cfg.Flows.MaxPending)
	if err != nil {
		return fmt.Errorf("creating flow manager: %w", err)
	}
	manager.SetLogger(log)

	apiDeps := api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Flows:    manager,
		Entries:  registry,
		Audit:    auditRecorder,
		AuditLog: auditRepo,
		Gatherer: metricsRegistry,
		Checks:   checks,
		Version:  version,
	}
	if displayBridge != nil {
		apiDeps.Bridge = displayBridge
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API server, display bridge, InfluxDB, MQTT, database.

	log.Info("Gray Logic OBEGRÄNSAD stopped")
	return nil
}

// startBridge creates the display bridge and connects every paired entry.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	registry *entry.Registry,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	var pub bridge.Publisher
	if mqttClient != nil {
		pub = mqttClient
	}

	b := bridge.New(pub, bridge.NewDisplayFactory(coordinatorOptions(cfg.Device, log)), bridge.Config{
		PollInterval:   cfg.Bridge.PollInterval,
		HealthInterval: cfg.Bridge.HealthInterval,
	})
	b.SetLogger(log)
	if influxClient != nil {
		b.SetTelemetry(influxClient)
	}

	entries, err := registry.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	if err := b.Start(ctx, entries); err != nil {
		return nil, err
	}
	return b, nil
}
