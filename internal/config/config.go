package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Trading    TradingConfig    `yaml:"trading"`
	Withdraw   WithdrawConfig   `yaml:"withdraw"`
	Detector   DetectorConfig   `yaml:"detector"`
	Auth       AuthConfig       `yaml:"auth"`
	Admin      AdminConfig      `yaml:"admin"`
	CORS       CORSConfig       `yaml:"cors"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	StreamName    string `yaml:"stream_name"`
}

// NetworkFamily selects the adapter implementation for a network.
type NetworkFamily string

const (
	FamilyEVM     NetworkFamily = "evm"
	FamilySolana  NetworkFamily = "solana"
	FamilyBitcoin NetworkFamily = "bitcoin"
)

// BlockchainConfig blockchain configuration
type BlockchainConfig struct {
	Networks map[string]NetworkConfig `yaml:"networks"`
}

// NetworkConfig per-network configuration
type NetworkConfig struct {
	Family                NetworkFamily `yaml:"family"`
	ChainID               int           `yaml:"chainId"`
	Name                  string        `yaml:"name"`
	Symbol                string        `yaml:"symbol"`
	Decimals              int32         `yaml:"decimals"`
	RequiredConfirmations int64         `yaml:"requiredConfirmations"`
	RPCEndpoints          []string      `yaml:"rpcEndpoints"`
	RPCUser               string        `yaml:"rpcUser"`
	RPCPassword           string        `yaml:"rpcPassword"`
	PollIntervalSeconds   int           `yaml:"pollIntervalSeconds"`
	MinWithdrawal         string        `yaml:"minWithdrawal"`
	MaxWithdrawal         string        `yaml:"maxWithdrawal"`
	WithdrawalFee         string        `yaml:"withdrawalFee"`
	HotWalletAddress      string        `yaml:"hotWalletAddress"`
	HotWalletSecret       string        `yaml:"hotWalletSecret"`
	Explorer              string        `yaml:"explorer"`
	Enabled               bool          `yaml:"enabled"`
}

// WrappedSymbol returns the platform symbol for the network's native asset.
func (n *NetworkConfig) WrappedSymbol() string {
	return "r" + n.Symbol
}

// PollInterval returns the address polling interval with a 30s default.
func (n *NetworkConfig) PollInterval() time.Duration {
	if n.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(n.PollIntervalSeconds) * time.Second
}

// TradingConfig trading engine collaborator configuration
type TradingConfig struct {
	BaseURL string `yaml:"baseUrl"`
	Timeout int    `yaml:"timeout"`
}

// WithdrawConfig withdrawal pipeline configuration
type WithdrawConfig struct {
	HourlyLimit      string `yaml:"hourlyLimit"`
	SendRetries      int    `yaml:"sendRetries"`
	ProcessIntervalS int    `yaml:"processInterval"`
	MaxBatch         int    `yaml:"maxBatch"`
}

// DetectorConfig deposit detector configuration
type DetectorConfig struct {
	ConfirmIntervalS int `yaml:"confirmInterval"`
	DedupWindowS     int `yaml:"dedupWindow"`
	ReviewAfterHours int `yaml:"reviewAfterHours"`
}

// ConfirmInterval returns the confirmation scan interval with a 30s default.
func (d *DetectorConfig) ConfirmInterval() time.Duration {
	if d.ConfirmIntervalS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.ConfirmIntervalS) * time.Second
}

// DedupWindow returns the balance-delta dedup window with a 5m default.
func (d *DetectorConfig) DedupWindow() time.Duration {
	if d.DedupWindowS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(d.DedupWindowS) * time.Second
}

// ReviewAfter returns how long a deposit may stay pending before it is
// flagged for manual review. Default 24h.
func (d *DetectorConfig) ReviewAfter() time.Duration {
	if d.ReviewAfterHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(d.ReviewAfterHours) * time.Hour
}

// AuthConfig JWT and secret-material configuration
type AuthConfig struct {
	JWTSecret        string `yaml:"jwtSecret"`
	ExpiryHours      int    `yaml:"expiryHours"`
	SecretPassphrase string `yaml:"secretPassphrase"`
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
	TOTPSecret string   `yaml:"totpSecret"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

var AppConfig *Config

// LoadConfig loads the configuration file and applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if len(config.Blockchain.Networks) == 0 {
		return fmt.Errorf("no networks configured in %s", configPath)
	}

	AppConfig = &config
	return nil
}

// overrideFromEnv applies environment variable overrides on top of the file.
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if tradingURL := os.Getenv("TRADING_BASE_URL"); tradingURL != "" {
		config.Trading.BaseURL = tradingURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		config.Auth.JWTSecret = jwtSecret
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Admin.TOTPSecret = totpSecret
	}
	if passphrase := os.Getenv("SECRET_PASSPHRASE"); passphrase != "" {
		config.Auth.SecretPassphrase = passphrase
	}

	// Per-network overrides, e.g. ETHEREUM_RPC_ENDPOINTS, BITCOIN_RPC_USER.
	// Hyphenated network names map to underscores (POLYGON_ZKEVM_RPC_ENDPOINTS).
	for networkName, networkConfig := range config.Blockchain.Networks {
		envKey := strings.ToUpper(strings.ReplaceAll(networkName, "-", "_"))

		if rpcEndpoints := os.Getenv(envKey + "_RPC_ENDPOINTS"); rpcEndpoints != "" {
			networkConfig.RPCEndpoints = strings.Split(rpcEndpoints, ",")
		}
		if rpcUser := os.Getenv(envKey + "_RPC_USER"); rpcUser != "" {
			networkConfig.RPCUser = rpcUser
		}
		if rpcPassword := os.Getenv(envKey + "_RPC_PASSWORD"); rpcPassword != "" {
			networkConfig.RPCPassword = rpcPassword
		}
		if hotWalletSecret := os.Getenv(envKey + "_HOT_WALLET_SECRET"); hotWalletSecret != "" {
			networkConfig.HotWalletSecret = hotWalletSecret
		}

		config.Blockchain.Networks[networkName] = networkConfig
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetNetworkConfig returns the configuration for an enabled network.
func GetNetworkConfig(networkName string) (*NetworkConfig, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	network, exists := AppConfig.Blockchain.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not found in config", networkName)
	}

	if !network.Enabled {
		return nil, fmt.Errorf("network %s is disabled", networkName)
	}

	return &network, nil
}

// EnabledNetworks returns the names of all enabled networks.
func EnabledNetworks() []string {
	if AppConfig == nil {
		return nil
	}
	names := make([]string, 0, len(AppConfig.Blockchain.Networks))
	for name, network := range AppConfig.Blockchain.Networks {
		if network.Enabled {
			names = append(names, name)
		}
	}
	return names
}
