package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ticketbay/tb-projector/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration for the admin surface
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// LedgerConfig holds the on-chain ledger configuration
type LedgerConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	WebSocketURL       string        `mapstructure:"websocket_url"`
	ChainID            domain.Chain  `mapstructure:"chain_id"`
	MarketplaceAddress string        `mapstructure:"marketplace_address"`
	NFTAddress         string        `mapstructure:"nft_address"`
	SignerKey          string        `mapstructure:"signer_key"` // hex private key; empty disables mutations
	StartBlock         uint64        `mapstructure:"start_block"`
	ReceiptPollMax     time.Duration `mapstructure:"receipt_poll_max"`
}

// URIConfig holds URI resolver configuration
type URIConfig struct {
	IPFSGateways []string `mapstructure:"ipfs_gateways"`
}

// PinningConfig holds the pinning gateway configuration
type PinningConfig struct {
	APIURL string `mapstructure:"api_url"`
	JWT    string `mapstructure:"jwt"`
}

// MetadataConfig holds the metadata fetch contract
type MetadataConfig struct {
	MaxDocumentBytes int64         `mapstructure:"max_document_bytes"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
}

// WorkerConfig holds read fan-out worker pool configuration
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// APIConfig holds configuration for the api server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Ledger     LedgerConfig   `mapstructure:"ledger"`
	URI        URIConfig      `mapstructure:"uri"`
	Pinning    PinningConfig  `mapstructure:"pinning"`
	Metadata   MetadataConfig `mapstructure:"metadata"`
	Worker     WorkerConfig   `mapstructure:"worker"`
}

// EmitterConfig holds configuration for the market-event-emitter
type EmitterConfig struct {
	BaseConfig `mapstructure:",squash"`
	Ledger     LedgerConfig `mapstructure:"ledger"`
	NATS       NATSConfig   `mapstructure:"nats"`
}

// LoadAPIConfig loads configuration for the api server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("ledger.chain_id", "eip155:97")
	v.SetDefault("ledger.receipt_poll_max", "3m")
	v.SetDefault("uri.ipfs_gateways", []string{"https://ipfs.io", "https://gateway.pinata.cloud"})
	v.SetDefault("pinning.api_url", "https://api.pinata.cloud")
	v.SetDefault("metadata.max_document_bytes", 1<<20)
	v.SetDefault("metadata.http_timeout", "15s")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_size", 256)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateLedger(config.Ledger); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadEmitterConfig loads configuration for the market-event-emitter
func LoadEmitterConfig(configFile string, envPath string) (*EmitterConfig, error) {
	v := configureViper("market-event-emitter", configFile, envPath)

	// Set defaults
	v.SetDefault("ledger.chain_id", "eip155:97")
	v.SetDefault("nats.stream_name", "MARKET_EVENTS")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "market-event-emitter")

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var config EmitterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateLedger(config.Ledger); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateLedger(cfg LedgerConfig) error {
	if !domain.IsValidChain(cfg.ChainID) {
		return fmt.Errorf("invalid ledger.chain_id %q", cfg.ChainID)
	}
	if cfg.MarketplaceAddress != "" && !domain.IsValidAddress(cfg.MarketplaceAddress) {
		return fmt.Errorf("invalid ledger.marketplace_address %q", cfg.MarketplaceAddress)
	}
	if cfg.NFTAddress != "" && !domain.IsValidAddress(cfg.NFTAddress) {
		return fmt.Errorf("invalid ledger.nft_address %q", cfg.NFTAddress)
	}
	return nil
}

func readInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when env vars carry the settings
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("TB_PROJECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Ledger
		"ledger.rpc_url",
		"ledger.websocket_url",
		"ledger.chain_id",
		"ledger.marketplace_address",
		"ledger.nft_address",
		"ledger.signer_key",
		"ledger.start_block",
		"ledger.receipt_poll_max",
		// URI
		"uri.ipfs_gateways",
		// Pinning
		"pinning.api_url",
		"pinning.jwt",
		// Metadata
		"metadata.max_document_bytes",
		"metadata.http_timeout",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}
