package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"example.com/mci/services/delivery/api"
	"example.com/mci/services/delivery/config"
	"example.com/mci/services/delivery/internal/cache"
	"example.com/mci/services/delivery/internal/db"
	"example.com/mci/services/delivery/internal/messagebus"
	"example.com/mci/services/delivery/internal/repository"
	"example.com/mci/services/delivery/internal/search"
	syncpkg "example.com/mci/services/delivery/internal/sync"
	"example.com/mci/services/delivery/internal/telemetry"
)

var (
	// Serve command flags
	disableNewRelic bool
	serverPort      int
	gracefulTimeout int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the delivery service API server that handles delivery booking,
status tracking, batch imports and the customer directory.

The server will gracefully shut down on receiving SIGINT or SIGTERM signals.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&disableNewRelic, "disable-newrelic", false, "Disable New Relic monitoring")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port (overrides environment)")
	serveCmd.Flags().IntVar(&gracefulTimeout, "graceful-timeout", 30, "Graceful shutdown timeout in seconds")
}

// startServer initializes and starts the API server
func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if serverPort > 0 {
		cfg.Server.Port = serverPort
	}
	if disableNewRelic {
		cfg.NewRelic.Enabled = false
	}

	log.WithFields(logrus.Fields{
		"port":             cfg.Server.Port,
		"redis_enabled":    cfg.Redis.Enabled,
		"newrelic_enabled": cfg.NewRelic.Enabled,
	}).Info("Initializing service components...")

	// Connect to the database with retry; the remote store may still be
	// coming up when the service starts.
	var database = connectWithRetry(cfg)

	log.Info("Running database migrations...")
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	log.Info("Connecting to Redis...")
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warnf("Failed to connect to Redis, backup cache disabled: %v", err)
		redisClient = cache.NewDisabledClient()
	}

	nrApp, err := telemetry.Init(cfg.NewRelic, log)
	if err != nil {
		log.Warnf("Failed to initialize New Relic: %v", err)
	}

	searchClient, err := search.NewElasticClient(&cfg.Elasticsearch, log)
	if err != nil {
		log.Fatalf("Failed to initialize Elasticsearch client: %v", err)
	}

	deliveryRepo := repository.NewDeliveryRepository(database)
	customerRepo := repository.NewCustomerRepository(database)
	queue := syncpkg.NewRetryQueue(cfg.Sync.MaxAttempts)

	orchestrator := syncpkg.NewOrchestrator(
		deliveryRepo,
		customerRepo,
		redisClient,
		queue,
		searchClient,
		log,
		cfg.Sync.RemoteTimeout,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator.StartReplayLoop(ctx, cfg.Sync.ReplayInterval)

	// Consume the remote change feed when configured
	if cfg.ServiceBus.Enabled {
		log.Info("Connecting to message broker...")
		sbClient, err := messagebus.NewClient(&cfg.ServiceBus)
		if err != nil {
			log.Fatalf("Failed to connect to message broker: %v", err)
		}
		defer sbClient.Close(ctx)

		processor := messagebus.NewProcessor(sbClient, orchestrator, cfg.ServiceBus.QueueName, log)
		go func() {
			if err := processor.Run(ctx); err != nil && err != context.Canceled {
				log.WithError(err).Error("Change-feed processor stopped")
			}
		}()
	}

	server := api.NewServer(cfg, log, nrApp, orchestrator, searchClient)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Starting server...")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-stop
	log.Infof("Received signal %s, shutting down gracefully...", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(gracefulTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown error: %v", err)
	}

	log.Info("Server shutdown complete")
}

// connectWithRetry connects to the database with exponential backoff
func connectWithRetry(cfg *config.Config) *gorm.DB {
	var database *gorm.DB
	var err error

	maxRetries := 5
	retryInterval := time.Second

	for i := 0; i < maxRetries; i++ {
		log.WithField("attempt", i+1).Info("Connecting to database...")
		database, err = db.Connect(&cfg.Database)
		if err == nil {
			return database
		}

		log.WithFields(logrus.Fields{
			"error":         err.Error(),
			"retry_attempt": i + 1,
			"max_retries":   maxRetries,
		}).Error("Failed to connect to database, retrying...")

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2
		}
	}

	log.Fatalf("Failed to connect to database after %d attempts: %v", maxRetries, err)
	return nil
}
