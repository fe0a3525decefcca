package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/expense-sync/constants"
)

// Remote store modes.
const (
	RemoteModePostgres = "postgres"
	RemoteModeMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Local    LocalConfig
	Database DatabaseConfig
	Network  NetworkConfig
	Sync     SyncConfig
	Server   ServerConfig
}

// LocalConfig holds on-device cache configuration
type LocalConfig struct {
	Path string
}

// DatabaseConfig holds remote database configuration
type DatabaseConfig struct {
	Mode             string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// NetworkConfig holds reachability probing configuration
type NetworkConfig struct {
	ProbeAddr     string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	Debounce      time.Duration
}

// SyncConfig holds sync engine configuration
type SyncConfig struct {
	Interval      time.Duration
	RemoteTimeout time.Duration
	UserID        string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Local: LocalConfig{
			Path: getEnv("LOCAL_DB_PATH", constants.DefaultLocalDBFile),
		},
		Database: DatabaseConfig{
			Mode:             strings.ToLower(getEnv("REMOTE_MODE", RemoteModePostgres)),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 4),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 0),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Network: NetworkConfig{
			ProbeAddr:     getEnv("PROBE_ADDR", ""),
			ProbeInterval: getEnvAsDuration("PROBE_INTERVAL", 5*time.Second),
			ProbeTimeout:  getEnvAsDuration("PROBE_TIMEOUT", 2*time.Second),
			Debounce:      getEnvAsDuration("PROBE_DEBOUNCE", 2*time.Second),
		},
		Sync: SyncConfig{
			Interval:      getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
			RemoteTimeout: getEnvAsDuration("REMOTE_TIMEOUT", 15*time.Second),
			UserID:        getEnv("SYNC_USER_ID", ""),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Local.Path == "" {
		return NewAppError("CONFIG_ERROR", "LOCAL_DB_PATH is required", ErrInvalidInput)
	}
	switch c.Database.Mode {
	case RemoteModePostgres:
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
		}
	case RemoteModeMemory:
	default:
		return NewAppError("CONFIG_ERROR", "REMOTE_MODE must be postgres or memory", ErrInvalidInput)
	}
	if c.Network.ProbeInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "PROBE_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Sync.RemoteTimeout <= 0 {
		return NewAppError("CONFIG_ERROR", "REMOTE_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
