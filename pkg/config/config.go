package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRPCURL is the default Solana RPC endpoint.
const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

// Default verified-creator allow-list for bonus eligibility. A wallet
// qualifies only when one of its assets carries exactly this creator set.
var defaultCreatorAllowList = []string{
	"DeHqKTVEx7g9rMcVgmtzV1kBpZhyGJ5d3yuTKnBVtb1T",
	"Eut6aQvJW9VADs6JHKuB8P1d9b64YzEBLVvy7TE6E1Ab",
}

// Config holds all configuration for the faucet bot.
type Config struct {
	// Slack
	SlackBotToken     string
	SlackAppToken     string
	FaucetChannelID   string
	AnnounceChannelID string

	// Ledger
	RPCURL            string
	DASURL            string // DAS-enabled endpoint; defaults to RPCURL
	TreasurySecretKey string // base58-encoded signing key, treated as opaque here
	TokenMint         string
	CreatorAllowList  []string
	ScaleConstant     float64

	// Store
	Postgres PostgresConfig

	// Server
	MetricsAddr    string
	StatusInterval time.Duration

	Verbose bool
}

// PostgresConfig holds the PostgreSQL connection configuration.
type PostgresConfig struct {
	Host          string
	Port          string
	Database      string
	Username      string
	Password      string
	SSLMode       string
	RunMigrations bool
}

// ConnStr returns the postgres connection string.
func (p PostgresConfig) ConnStr() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.Username, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// LoadFromEnv loads configuration from environment variables and flags.
func LoadFromEnv(metricsAddrFlag string, verbose bool) (*Config, error) {
	cfg := &Config{
		MetricsAddr:    metricsAddrFlag,
		StatusInterval: time.Minute,
		Verbose:        verbose,
	}

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")
	if cfg.SlackBotToken == "" {
		return nil, fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	cfg.SlackAppToken = os.Getenv("SLACK_APP_TOKEN")
	if cfg.SlackAppToken == "" {
		return nil, fmt.Errorf("SLACK_APP_TOKEN is required")
	}
	cfg.FaucetChannelID = os.Getenv("FAUCET_CHANNEL_ID")
	if cfg.FaucetChannelID == "" {
		return nil, fmt.Errorf("FAUCET_CHANNEL_ID is required")
	}
	cfg.AnnounceChannelID = os.Getenv("ANNOUNCE_CHANNEL_ID")
	if cfg.AnnounceChannelID == "" {
		return nil, fmt.Errorf("ANNOUNCE_CHANNEL_ID is required")
	}

	cfg.RPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	cfg.DASURL = os.Getenv("SOLANA_DAS_URL")
	if cfg.DASURL == "" {
		cfg.DASURL = cfg.RPCURL
	}

	cfg.TreasurySecretKey = os.Getenv("TREASURY_SECRET_KEY")
	if cfg.TreasurySecretKey == "" {
		return nil, fmt.Errorf("TREASURY_SECRET_KEY is required")
	}
	cfg.TokenMint = os.Getenv("TOKEN_MINT")
	if cfg.TokenMint == "" {
		return nil, fmt.Errorf("TOKEN_MINT is required")
	}

	cfg.CreatorAllowList = defaultCreatorAllowList
	if v := os.Getenv("CREATOR_ALLOW_LIST"); v != "" {
		parts := strings.Split(v, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("CREATOR_ALLOW_LIST must contain at least one address")
		}
		cfg.CreatorAllowList = list
	}

	cfg.ScaleConstant = 1000
	if v := os.Getenv("FAUCET_SCALE"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale <= 0 {
			return nil, fmt.Errorf("FAUCET_SCALE must be a positive number, got %q", v)
		}
		cfg.ScaleConstant = scale
	}

	if v := os.Getenv("STATUS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("STATUS_INTERVAL must be a positive duration, got %q", v)
		}
		cfg.StatusInterval = d
	}

	pg, err := loadPostgresFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Postgres = pg

	return cfg, nil
}

func loadPostgresFromEnv() (PostgresConfig, error) {
	pg := PostgresConfig{
		Host:    os.Getenv("POSTGRES_HOST"),
		Port:    os.Getenv("POSTGRES_PORT"),
		SSLMode: os.Getenv("POSTGRES_SSLMODE"),
	}
	if pg.Host == "" {
		pg.Host = "localhost"
	}
	if pg.Port == "" {
		pg.Port = "5432"
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}

	pg.Database = os.Getenv("POSTGRES_DB")
	if pg.Database == "" {
		return pg, fmt.Errorf("POSTGRES_DB is required")
	}
	pg.Username = os.Getenv("POSTGRES_USER")
	if pg.Username == "" {
		return pg, fmt.Errorf("POSTGRES_USER is required")
	}
	pg.Password = os.Getenv("POSTGRES_PASSWORD")
	if pg.Password == "" {
		return pg, fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	pg.RunMigrations = os.Getenv("POSTGRES_RUN_MIGRATIONS") == "true"
	return pg, nil
}
