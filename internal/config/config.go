package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Log             LogConfig             `yaml:"log"`
	Database        DatabaseConfig        `yaml:"database"`
	JWT             JWTConfig             `yaml:"jwt"`
	RefreshToken    RefreshTokenConfig    `yaml:"refresh_token"`
	PasswordHashing PasswordHashingConfig `yaml:"password_hashing"`
	Users           UsersConfig           `yaml:"users"`
	Accounts        AccountsConfig        `yaml:"accounts"`
	Deposits        DepositsConfig        `yaml:"deposits"`
	RateLimit       RateLimitConfig       `yaml:"rate_limit"`
	Maintenance     MaintenanceConfig     `yaml:"maintenance"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// JWTConfig configures access tokens. SigningKey is base64 encoded.
type JWTConfig struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	Expiration time.Duration `yaml:"expiration"`
}

// SigningKeyBytes decodes SigningKey.
func (c *JWTConfig) SigningKeyBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.SigningKey)
}

// RefreshTokenConfig controls refresh token lifetime. A token can be redeemed
// until ValidityPeriod elapses and its row is kept until StoragePeriod elapses.
type RefreshTokenConfig struct {
	ValidityPeriod time.Duration `yaml:"validity_period"`
	StoragePeriod  time.Duration `yaml:"storage_period"`
	LengthBytes    int           `yaml:"length_bytes"`
	CookieName     string        `yaml:"cookie_name"`
	CookiePath     string        `yaml:"cookie_path"`
}

// PasswordHashingConfig holds argon2id cost parameters. MemoryKiB is in kibibytes.
type PasswordHashingConfig struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

type UsersConfig struct {
	AdministratorEmail string `yaml:"administrator_email"`
}

type AccountsConfig struct {
	MaxAccountsPerUser int      `yaml:"max_accounts_per_user"`
	Currencies         []string `yaml:"currencies"`
}

type DepositsConfig struct {
	CurrencyCode string `yaml:"currency_code"`
	Network      string `yaml:"network"` // mainnet, testnet3, regtest, signet
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MaintenanceConfig struct {
	Schedule         string        `yaml:"schedule"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	LogRetentionDays int           `yaml:"log_retention_days"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Missing keys keep their defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			Mode:           "debug",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "cryptobank.db?_txlock=immediate",
		},
		JWT: JWTConfig{
			SigningKey: "Y3J5cHRvYmFuay1kZXZlbG9wbWVudC1zaWduaW5nLWtleS1jaGFuZ2UtbWU=",
			Issuer:     "cryptobank",
			Audience:   "cryptobank",
			Expiration: 5 * time.Minute,
		},
		RefreshToken: RefreshTokenConfig{
			ValidityPeriod: 24 * time.Hour,
			StoragePeriod:  7 * 24 * time.Hour,
			LengthBytes:    64,
			CookieName:     "refreshToken",
			CookiePath:     "/auth/get-new-tokens",
		},
		PasswordHashing: PasswordHashingConfig{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Users: UsersConfig{
			AdministratorEmail: "admin@cryptobank.local",
		},
		Accounts: AccountsConfig{
			MaxAccountsPerUser: 5,
			Currencies:         []string{"BTC"},
		},
		Deposits: DepositsConfig{
			CurrencyCode: "BTC",
			Network:      "testnet3",
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
		Maintenance: MaintenanceConfig{
			Schedule:         "@every 1h",
			LockTTL:          10 * time.Minute,
			LogRetentionDays: 30,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if key := os.Getenv("JWT_SIGNING_KEY"); key != "" {
		c.JWT.SigningKey = key
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		c.JWT.Issuer = issuer
	}
	if audience := os.Getenv("JWT_AUDIENCE"); audience != "" {
		c.JWT.Audience = audience
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Users.AdministratorEmail = email
	}
}

// MaxRefreshTokenChars is the width of the refresh_tokens.token column.
const MaxRefreshTokenChars = 255

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}

	key, err := c.JWT.SigningKeyBytes()
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("jwt.signing_key: not valid base64: %w", err))
	case len(key) < 32:
		errs = append(errs, errors.New("jwt.signing_key: must decode to at least 32 bytes"))
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		errs = append(errs, errors.New("jwt: issuer and audience are required"))
	}
	if c.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("jwt.expiration: must be positive"))
	}

	rt := c.RefreshToken
	if rt.ValidityPeriod <= 0 {
		errs = append(errs, errors.New("refresh_token.validity_period: must be positive"))
	}
	if rt.StoragePeriod <= rt.ValidityPeriod {
		errs = append(errs, errors.New("refresh_token.storage_period: must be greater than validity_period"))
	}
	if rt.LengthBytes < 16 {
		errs = append(errs, errors.New("refresh_token.length_bytes: must be at least 16"))
	}
	if n := base64.StdEncoding.EncodedLen(rt.LengthBytes); n > MaxRefreshTokenChars {
		errs = append(errs, fmt.Errorf("refresh_token.length_bytes: %d bytes encode to %d characters, more than %d", rt.LengthBytes, n, MaxRefreshTokenChars))
	}
	if rt.CookieName == "" {
		errs = append(errs, errors.New("refresh_token.cookie_name: required"))
	}

	ph := c.PasswordHashing
	if ph.MemoryKiB == 0 || ph.Iterations == 0 || ph.Parallelism == 0 {
		errs = append(errs, errors.New("password_hashing: memory_kib, iterations and parallelism must be positive"))
	}
	if ph.SaltLength < 8 || ph.KeyLength < 16 {
		errs = append(errs, errors.New("password_hashing: salt_length must be >= 8 and key_length >= 16"))
	}

	if c.Accounts.MaxAccountsPerUser <= 0 {
		errs = append(errs, errors.New("accounts.max_accounts_per_user: must be positive"))
	}
	if len(c.Accounts.Currencies) == 0 {
		errs = append(errs, errors.New("accounts.currencies: at least one currency is required"))
	}

	switch c.Deposits.Network {
	case "mainnet", "testnet3", "regtest", "signet":
	default:
		errs = append(errs, fmt.Errorf("deposits.network: unknown network %q", c.Deposits.Network))
	}
	if len(c.Deposits.CurrencyCode) < 3 {
		errs = append(errs, errors.New("deposits.currency_code: must be at least 3 characters"))
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit: rps and burst must be positive"))
	}

	if c.Maintenance.Schedule == "" {
		errs = append(errs, errors.New("maintenance.schedule: required"))
	}
	if c.Maintenance.LockTTL <= 0 {
		errs = append(errs, errors.New("maintenance.lock_ttl: must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}
