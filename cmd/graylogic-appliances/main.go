// Gray Logic Appliances - cloud appliance bridge
//
// This is the main entry point for Gray Logic Appliances. The service polls
// the appliance vendor's cloud, projects each appliance into binary sensors,
// fans and lights, and exposes them to the home-automation host over MQTT
// discovery. Commands from the host or the REST API are queued back to the
// cloud as actions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-appliances/migrations"

	"github.com/nerrad567/gray-logic-appliances/internal/api"
	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
	"github.com/nerrad567/gray-logic-appliances/internal/audit"
	"github.com/nerrad567/gray-logic-appliances/internal/cloud"
	"github.com/nerrad567/gray-logic-appliances/internal/entity"
	"github.com/nerrad567/gray-logic-appliances/internal/host"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled. Deferred
// closes run in reverse start order.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Appliances",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "cloud", cfg.Cloud.String())

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
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
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cloud side: one cache, one writer (the poller), one action queue.
	cache := appliance.NewCache()
	cloudClient := cloud.NewClient(cfg.Cloud, nil)
	defer cloudClient.Close()

	poller := cloud.NewPoller(cloudClient, cache, pollerConfig(cfg))
	poller.SetLogger(log)

	dispatcher := cloud.NewDispatcher(cloudClient, cfg.Cloud.ActionQueueSize, cfg.GetCloudTimeout())
	dispatcher.SetLogger(log)
	dispatcher.SetOnDelivered(func(string) { poller.Trigger() })

	// Host side.
	registry := entity.NewRegistry()
	registry.SetLogger(log)
	registry.SetConcurrency(cfg.Platforms.UpdateConcurrency)
	defer registry.Clear()

	commandLog := audit.NewSQLiteRepository(db.DB)

	hostOpts := host.Options{
		MQTT:            mqttClient,
		Store:           host.NewStore(db.DB),
		Registry:        registry,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		QoS:             byte(cfg.MQTT.QoS),
		Version:         version,
		Logger:          log,
		Audit:           commandLog,
	}
	if influxClient != nil {
		hostOpts.Metrics = influxClient
	}
	entityHost, err := host.New(hostOpts)
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}
	if startErr := entityHost.Start(ctx); startErr != nil {
		return fmt.Errorf("starting host: %w", startErr)
	}
	defer func() {
		if stopErr := entityHost.Stop(); stopErr != nil {
			log.Warn("error stopping host", "error", stopErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, republishing entities")
		go entityHost.Republish(ctx)
	})

	poller.SetOnRefresh(func(ctx context.Context) {
		if pushErr := registry.PushAll(ctx, entityHost); pushErr != nil {
			log.Debug("state push interrupted", "error", pushErr)
		}
	})

	// Discovery runs once against the first successful poll.
	if pollErr := poller.PollUntilReady(ctx); pollErr != nil {
		return fmt.Errorf("initial appliance poll: %w", pollErr)
	}
	discoverer := entity.NewDiscoverer(registry, entityHost, entity.Deps{
		Source:     cache,
		Dispatcher: dispatcher,
		Logger:     log,
	}, discoveryConfig(cfg.Platforms))
	created, err := discoverer.Discover(ctx, cache.Snapshot())
	if err != nil {
		return fmt.Errorf("discovering entities: %w", err)
	}
	log.Info("entities discovered", "entities", created, "appliances", cache.Len())

	go dispatcher.Run(ctx)
	go poller.Run(ctx)
	go registry.RunUpdates(ctx, entityHost, cfg.GetUpdateInterval())

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log,
			Registry:   registry,
			Host:       entityHost,
			Cache:      cache,
			Poller:     poller,
			Dispatcher: dispatcher,
			Commands:   commandLog,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func pollerConfig(cfg *config.Config) cloud.PollerConfig {
	minDelay, maxDelay := cfg.GetBackoff()
	return cloud.PollerConfig{
		Interval:   cfg.GetPollInterval(),
		MinBackoff: minDelay,
		MaxBackoff: maxDelay,
		Multiplier: cfg.Cloud.Backoff.Multiplier,
	}
}

// discoveryConfig maps the platforms section onto discovery settings.
// Empty type lists keep the built-in defaults.
func discoveryConfig(p config.PlatformsConfig) entity.DiscoveryConfig {
	dc := entity.DefaultDiscoveryConfig()
	dc.BinarySensor = p.BinarySensor.Enabled
	dc.Fan = p.Fan.Enabled
	dc.Light = p.Light.Enabled
	if len(p.Fan.SupportedTypes) > 0 {
		dc.FanTypes = p.Fan.SupportedTypes
	}
	if len(p.Light.SupportedTypes) > 0 {
		dc.LightTypes = p.Light.SupportedTypes
	}
	return dc
}

// healthCheck verifies the infrastructure connections. influxClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
