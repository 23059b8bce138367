// Storefront Auth - authentication service for the storefront platform.
//
// This is the main entry point. It serves registration, email verification,
// login and session refresh for four principal kinds (super-admin, admin,
// retailer, customer) over a JSON HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/storefront-auth/internal/api"
	"github.com/nerrad567/storefront-auth/internal/audit"
	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/config"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/database"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/influxdb"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/metrics"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/mqtt"
	"github.com/nerrad567/storefront-auth/internal/mail"
	"github.com/nerrad567/storefront-auth/internal/telemetry"
	"github.com/nerrad567/storefront-auth/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting storefront-auth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.App.Environment,
	)

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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	health := map[string]api.HealthChecker{"database": db}

	// MQTT carries the verification mail relay and the auth event feed.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := metrics.NewRegistry()
	prom := metrics.NewMetrics(registry)

	// Event fan-out: Prometheus always, the rest when configured.
	recorders := []auth.EventRecorder{telemetry.NewMetricsRecorder(prom)}

	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		auditRepo = audit.NewSQLiteRepository(db.DB)
		recorder := audit.NewRecorder(auditRepo, cfg.Audit.BufferSize, log,
			audit.WithDropHook(prom.AuditEntryDropped))

		auditCtx, stopAudit := context.WithCancel(context.Background())
		recorder.Start(auditCtx)
		defer func() {
			stopAudit()
			recorder.Close()
		}()
		recorders = append(recorders, recorder)
	}
	if influxClient != nil {
		recorders = append(recorders, telemetry.NewInfluxRecorder(influxClient))
	}
	if mqttClient != nil {
		recorders = append(recorders, telemetry.NewEventPublisher(mqttClient, log))
	}

	hasher, err := auth.NewHasher(auth.HasherConfig{
		Time:      cfg.Security.Password.Time,
		MemoryKiB: cfg.Security.Password.MemoryKiB,
		Threads:   cfg.Security.Password.Threads,
	})
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	svc, err := newAuthService(cfg, db, hasher, mqttClient, auth.Recorders(recorders...), log)
	if err != nil {
		return err
	}
	// Deferred after the audit recorder so in-flight mail events are still
	// recorded before the drain stops.
	defer svc.Wait()

	if err := seedSuperAdmin(ctx, cfg, db, hasher, log); err != nil {
		return err
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		App:        cfg.App,
		APIKey:     cfg.Security.APIKey,
		Metrics:    cfg.Metrics,
		Logger:     log,
		Auth:       svc,
		AuditRepo:  auditRepo,
		Health:     health,
		Prometheus: prom,
		Gatherer:   registry,
		Version:    version,
	})
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

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, pending mail,
	// audit drain, InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STOREFRONT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// newAuthService wires the token issuer, OTP generator and mail transport
// into the auth service.
func newAuthService(cfg *config.Config, db *database.DB, hasher *auth.Hasher, mqttClient *mqtt.Client, events auth.EventRecorder, log *logging.Logger) (*auth.Service, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Security.JWT.Secret, auth.TokenTTLs{
		Access:  cfg.Security.JWT.AccessTokenTTL,
		Refresh: cfg.Security.JWT.RefreshTokenTTL,
		PreAuth: cfg.Security.JWT.PreAuthTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}

	// A nil *mqtt.Client must not reach mail.New as a non-nil interface.
	var publisher mail.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	mailer, err := mail.New(cfg.Mail, publisher, log)
	if err != nil {
		if errors.Is(err, mail.ErrNoPublisher) {
			return nil, fmt.Errorf("mail transport %q needs mqtt.enabled: %w", cfg.Mail.Transport, err)
		}
		return nil, fmt.Errorf("creating mailer: %w", err)
	}
	log.Info("mail transport selected", "transport", cfg.Mail.Transport)

	svc, err := auth.NewService(auth.Deps{
		Directory: auth.NewDirectory(db.DB),
		Hasher:    hasher,
		Tokens:    tokens,
		OTPs:      auth.NewOTPGenerator(cfg.OTP.TTL),
		Mailer:    mailer,
		Events:    events,
		Logger:    log,
	}, auth.WithMailTimeout(cfg.Mail.Timeout))
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	return svc, nil
}

// seedSuperAdmin creates the first super-admin when configured and none exists.
func seedSuperAdmin(ctx context.Context, cfg *config.Config, db *database.DB, hasher *auth.Hasher, log *logging.Logger) error {
	account := cfg.Seed.SuperAdmin
	if account.Email == "" {
		return nil
	}

	store, err := auth.NewDirectory(db.DB).Store(auth.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("resolving super-admin store: %w", err)
	}
	if _, err := auth.SeedSuperAdmin(ctx, store, hasher, auth.SeedAccount{
		Email:     auth.NormalizeEmail(account.Email),
		FirstName: account.FirstName,
		LastName:  account.LastName,
	}, log); err != nil {
		return fmt.Errorf("seeding super-admin: %w", err)
	}
	return nil
}

// healthCheck verifies every registered dependency is reachable.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, hc := range checks {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
