// HireHub Core - session, auth-state and route-guard service.
//
// This is the main entry point. It owns the process lifecycle: config,
// logging, the SQLite database, the session manager, the optional MQTT
// session-event bridge and the HTTP API that serves the guarded web shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hirehub/hirehub-core/migrations"

	"github.com/hirehub/hirehub-core/internal/api"
	"github.com/hirehub/hirehub-core/internal/audit"
	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/category"
	"github.com/hirehub/hirehub-core/internal/events"
	"github.com/hirehub/hirehub-core/internal/guard"
	"github.com/hirehub/hirehub-core/internal/infrastructure/config"
	"github.com/hirehub/hirehub-core/internal/infrastructure/database"
	"github.com/hirehub/hirehub-core/internal/infrastructure/logging"
	"github.com/hirehub/hirehub-core/internal/infrastructure/mqtt"
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

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,funlen // startup sequence reads top to bottom
	log := logging.Default()
	log.Info("starting HireHub Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "app", cfg.App.Name)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db.DB)
	authn, err := newAuthenticator(ctx, cfg, users, log)
	if err != nil {
		return err
	}

	routeList, err := guard.RoutesFromConfig(cfg.Routes)
	if err != nil {
		return fmt.Errorf("loading routes: %w", err)
	}
	routes, err := guard.NewTable(routeList)
	if err != nil {
		return fmt.Errorf("validating routes: %w", err)
	}
	guardMode, err := guard.ParseMode(cfg.Security.Guard.Mode)
	if err != nil {
		return fmt.Errorf("guard mode: %w", err)
	}
	if guardMode == guard.ModePermissive {
		log.Warn("route guard is permissive: protected pages render while a redirect is pending")
	}

	managerOpts := auth.ManagerOptions{
		Stores:        auth.SQLiteTokenStores(db.DB, nil, log.With("component", "token_store").Logger),
		Authenticator: authn,
		Logger:        log.Logger,
	}

	// Optional session-event bridge
	var mqttClient *mqtt.Client
	var bridge *events.Bridge
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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge = events.NewBridge(mqttClient, nil, log.Logger)
		managerOpts.Observer = bridge.Observe
	} else {
		log.Info("MQTT disabled")
	}

	sessions := auth.NewSessionManager(managerOpts)
	defer sessions.Close()

	if bridge != nil {
		bridgeCtx, stopBridge := context.WithCancel(ctx)
		bridgeDone := make(chan struct{})
		go func() {
			defer close(bridgeDone)
			bridge.Run(bridgeCtx)
		}()
		defer func() {
			stopBridge()
			<-bridgeDone
		}()

		if listenErr := bridge.ListenCommands(ctx, sessions); listenErr != nil {
			return fmt.Errorf("subscribing to session commands: %w", listenErr)
		}
		defer func() {
			if stopErr := bridge.StopCommands(); stopErr != nil {
				log.Warn("error unsubscribing session commands", "error", stopErr)
			}
		}()
	}

	deps := api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log.With("component", "api"),
		DB:            db.DB,
		Sessions:      sessions,
		Authenticator: authn,
		Users:         users,
		Categories:    category.NewSQLiteRepository(db.DB),
		Audit:         audit.NewSQLiteRepository(db.DB),
		Routes:        routes,
		GuardMode:     guardMode,
		WebDir:        cfg.App.WebDir,
		Version:       version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"routes", len(routes.Routes()),
		"guard_mode", guardMode,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred calls run in reverse: API server, MQTT bridge, sessions,
	// MQTT client, database.
	log.Info("HireHub Core stopped")
	return nil
}

// newAuthenticator selects the configured provider. The password provider
// seeds the first admin account on an empty database.
func newAuthenticator(ctx context.Context, cfg *config.Config, users auth.UserRepository, log *logging.Logger) (auth.Authenticator, error) {
	switch cfg.Security.Auth.Provider {
	case config.AuthProviderStatic:
		return auth.NewStaticAuthenticator(cfg.TokenTTL(), auth.RoleUser, log.Logger), nil
	default:
		if _, err := auth.SeedAdmin(ctx, users, "", log.With("component", "seed").Logger); err != nil {
			return nil, fmt.Errorf("seeding admin: %w", err)
		}
		return auth.NewPasswordAuthenticator(users,
			cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, cfg.TokenTTL(), nil), nil
	}
}

// getConfigPath returns the configuration file path.
// Uses HIREHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HIREHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. mqttClient may be
// nil when MQTT is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}
