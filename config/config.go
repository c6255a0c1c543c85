package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	ServiceBus    ServiceBusConfig
	NewRelic      NewRelicConfig
	Elasticsearch ElasticsearchConfig
	Sync          SyncConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port int
	Mode string // debug, release, test
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Debug    bool
	MaxConn  int
	MaxIdle  int
	MaxLife  time.Duration
}

// RedisConfig holds the Redis configuration for the local backup cache
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	BackupTTL time.Duration // 0 keeps backups until overwritten
}

// ServiceBusConfig holds the Azure Service Bus configuration used for the
// realtime change feed
type ServiceBusConfig struct {
	Enabled          bool
	ConnectionString string
	QueueName        string
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// ElasticsearchConfig holds the Elasticsearch configuration for history search
type ElasticsearchConfig struct {
	Enabled  bool
	URLs     []string
	Username string
	Password string
	Index    string
}

// SyncConfig holds the synchronization tuning knobs
type SyncConfig struct {
	RemoteTimeout  time.Duration // per remote call; timeout is treated as remote failure
	ReplayInterval time.Duration // how often queued writes are retried
	MaxAttempts    int           // per queued operation before it is dropped
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Server
	port, _ := strconv.Atoi(getEnv("PORT", "8087"))
	mode := getEnv("GIN_MODE", "debug")

	// Database
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	dbDebug, _ := strconv.ParseBool(getEnv("DB_DEBUG", "false"))
	dbMaxConn, _ := strconv.Atoi(getEnv("DB_MAX_CONN", "20"))
	dbMaxIdle, _ := strconv.Atoi(getEnv("DB_MAX_IDLE", "5"))
	dbMaxLife, _ := time.ParseDuration(getEnv("DB_MAX_LIFE", "30m"))

	// Redis
	redisEnabled, _ := strconv.ParseBool(getEnv("REDIS_ENABLED", "true"))
	redisPort, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	backupTTL, _ := time.ParseDuration(getEnv("REDIS_BACKUP_TTL", "0"))

	// Service Bus
	sbEnabled, _ := strconv.ParseBool(getEnv("SERVICEBUS_ENABLED", "false"))

	// New Relic
	nrEnabled, _ := strconv.ParseBool(getEnv("NEW_RELIC_ENABLED", "false"))

	// Elasticsearch
	esEnabled, _ := strconv.ParseBool(getEnv("ES_ENABLED", "false"))
	esURLs := []string{getEnv("ES_URL", "http://localhost:9200")}

	// Sync
	remoteTimeout, _ := time.ParseDuration(getEnv("SYNC_REMOTE_TIMEOUT", "10s"))
	replayInterval, _ := time.ParseDuration(getEnv("SYNC_REPLAY_INTERVAL", "30s"))
	maxAttempts, _ := strconv.Atoi(getEnv("SYNC_MAX_ATTEMPTS", "5"))

	return &Config{
		Server: ServerConfig{
			Port: port,
			Mode: mode,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "delivery_db"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			Debug:    dbDebug,
			MaxConn:  dbMaxConn,
			MaxIdle:  dbMaxIdle,
			MaxLife:  dbMaxLife,
		},
		Redis: RedisConfig{
			Enabled:   redisEnabled,
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      redisPort,
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        redisDB,
			BackupTTL: backupTTL,
		},
		ServiceBus: ServiceBusConfig{
			Enabled:          sbEnabled,
			ConnectionString: getEnv("SERVICEBUS_CONNECTION_STRING", ""),
			QueueName:        getEnv("SERVICEBUS_QUEUE_NAME", "delivery-changes"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "MCI Delivery Tracker"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    nrEnabled,
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  esEnabled,
			URLs:     esURLs,
			Username: getEnv("ES_USERNAME", ""),
			Password: getEnv("ES_PASSWORD", ""),
			Index:    getEnv("ES_INDEX", "delivery-history"),
		},
		Sync: SyncConfig{
			RemoteTimeout:  remoteTimeout,
			ReplayInterval: replayInterval,
			MaxAttempts:    maxAttempts,
		},
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
