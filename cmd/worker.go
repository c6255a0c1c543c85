package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"example.com/mci/services/delivery/config"
	"example.com/mci/services/delivery/internal/cache"
	"example.com/mci/services/delivery/internal/db"
	"example.com/mci/services/delivery/internal/messagebus"
	"example.com/mci/services/delivery/internal/repository"
	syncpkg "example.com/mci/services/delivery/internal/sync"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the change-feed worker",
	Long: `Runs the standalone change-feed worker: consumes row-change events
from the message bus and replays queued writes, without serving HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		runWorker()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker starts the change-feed processor until interrupted
func runWorker() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if !cfg.ServiceBus.Enabled {
		log.Fatal("Service bus is not enabled; the worker has nothing to consume")
	}

	database, err := db.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warnf("Failed to connect to Redis, backup cache disabled: %v", err)
		redisClient = cache.NewDisabledClient()
	}

	deliveryRepo := repository.NewDeliveryRepository(database)
	customerRepo := repository.NewCustomerRepository(database)
	queue := syncpkg.NewRetryQueue(cfg.Sync.MaxAttempts)

	orchestrator := syncpkg.NewOrchestrator(
		deliveryRepo,
		customerRepo,
		redisClient,
		queue,
		nil,
		log,
		cfg.Sync.RemoteTimeout,
	)

	sbClient, err := messagebus.NewClient(&cfg.ServiceBus)
	if err != nil {
		log.Fatalf("Failed to connect to message broker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orchestrator.StartReplayLoop(ctx, cfg.Sync.ReplayInterval)

	processor := messagebus.NewProcessor(sbClient, orchestrator, cfg.ServiceBus.QueueName, log)
	go func() {
		if err := processor.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("Change-feed processor stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Infof("Received signal %s, shutting down...", sig.String())
	cancel()

	if err := sbClient.Close(context.Background()); err != nil {
		log.Warnf("Error closing message bus client: %v", err)
	}
}
