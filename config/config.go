package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/logging"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string                   `mapstructure:"environment"`
	Network     string                   `mapstructure:"network" validate:"required"`
	Networks    map[string]NetworkConfig `mapstructure:"networks" validate:"dive"`
	Server      ServerConfig             `mapstructure:"server"`
	Redis       RedisConfig              `mapstructure:"redis"`
	Kafka       KafkaConfig              `mapstructure:"kafka"`
	JWT         JWTConfig                `mapstructure:"jwt"`
	Logging     logging.Config           `mapstructure:"logging"`
	Game        GameConfig               `mapstructure:"game"`
	History     HistoryConfig            `mapstructure:"history"`
	Frame       FrameConfig              `mapstructure:"frame"`
	Signer      SignerConfig             `mapstructure:"signer"`
	Notify      NotifyConfig             `mapstructure:"notify"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	Brokers       []string          `mapstructure:"brokers" validate:"required_if=Enabled true"`
	ConsumerGroup string            `mapstructure:"consumer_group"`
	Topics        map[string]string `mapstructure:"topics"`
}

// Topic returns the configured topic for key, or key itself.
func (k KafkaConfig) Topic(key string) string {
	if t, ok := k.Topics[key]; ok && t != "" {
		return t
	}
	return key
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// GameConfig holds the spin and polling parameters.
type GameConfig struct {
	SpinPrice           decimal.Decimal  `mapstructure:"spin_price"`
	ReceiptTimeout      time.Duration    `mapstructure:"receipt_timeout"`
	ReceiptPollInterval time.Duration    `mapstructure:"receipt_poll_interval"`
	JackpotPollInterval time.Duration    `mapstructure:"jackpot_poll_interval"`
	EventSignatures     []string         `mapstructure:"event_signatures"`
	Payouts             game.PayoutTable `mapstructure:"payouts"`
	ReceiptCacheSize    int              `mapstructure:"receipt_cache_size"`
}

// HistoryConfig controls win-history reconstruction.
type HistoryConfig struct {
	Source     string        `mapstructure:"source" validate:"omitempty,oneof=explorer rpc"`
	PageSize   int           `mapstructure:"page_size" validate:"gte=0"`
	BlockRange uint64        `mapstructure:"block_range"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// FrameConfig is the static mini-app manifest served at
// /.well-known/farcaster.json.
type FrameConfig struct {
	AccountAssociation AccountAssociation `mapstructure:"account_association" json:"accountAssociation"`
	Frame              FrameDetails       `mapstructure:"frame" json:"frame"`
}

// AccountAssociation proves domain ownership for the manifest.
type AccountAssociation struct {
	Header    string `mapstructure:"header" json:"header"`
	Payload   string `mapstructure:"payload" json:"payload"`
	Signature string `mapstructure:"signature" json:"signature"`
}

// FrameDetails describes how the mini-app is launched.
type FrameDetails struct {
	Version               string `mapstructure:"version" json:"version"`
	Name                  string `mapstructure:"name" json:"name"`
	IconURL               string `mapstructure:"icon_url" json:"iconUrl"`
	HomeURL               string `mapstructure:"home_url" json:"homeUrl"`
	ImageURL              string `mapstructure:"image_url" json:"imageUrl,omitempty"`
	ButtonTitle           string `mapstructure:"button_title" json:"buttonTitle"`
	SplashImageURL        string `mapstructure:"splash_image_url" json:"splashImageUrl,omitempty"`
	SplashBackgroundColor string `mapstructure:"splash_background_color" json:"splashBackgroundColor"`
	WebhookURL            string `mapstructure:"webhook_url" json:"webhookUrl,omitempty"`
}

// NotifyConfig points at an optional webhook that receives win notifications.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SignerConfig holds the key used by the CLI to sign spins and withdrawals.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
}

// Load loads configuration from YAML file using Viper
func Load(filename string) (*Config, error) {
	config, _, err := LoadWithViper(filename)
	return config, err
}

// LoadByEnv loads config-<env>.yaml from configDir, env taken from ENV or APP_ENV
func LoadByEnv(configDir string) (*Config, error) {
	v := newViper()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	env := v.GetString("ENV")
	if env == "" {
		env = v.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config-%s", env))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

// LoadWithViper loads configuration and returns the viper instance for custom usage
func LoadWithViper(filename string) (*Config, *viper.Viper, error) {
	v := newViper()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return config, v, nil
}

// Default returns a configuration built only from defaults and the
// environment, for running without a config file.
func Default() (*Config, error) {
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Enable environment variable substitution
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Keys must be known to viper for AutomaticEnv to apply to Unmarshal.
	v.SetDefault("environment", "development")
	v.SetDefault("network", NetworkBaseSepolia)
	v.SetDefault("signer.private_key", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("history.source", "explorer")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(game.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "minibet"
	}
	if c.JWT.Expiration == 0 {
		c.JWT.Expiration = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Game.SpinPrice.IsZero() {
		c.Game.SpinPrice = decimal.RequireFromString(DefaultSpinPrice)
	}
	if c.Game.ReceiptTimeout == 0 {
		c.Game.ReceiptTimeout = 60 * time.Second
	}
	if c.Game.ReceiptPollInterval == 0 {
		c.Game.ReceiptPollInterval = 2 * time.Second
	}
	if c.Game.JackpotPollInterval == 0 {
		c.Game.JackpotPollInterval = 10 * time.Second
	}
	if len(c.Game.EventSignatures) == 0 {
		c.Game.EventSignatures = append([]string(nil), KnownEventSignatures...)
	}
	if len(c.Game.Payouts.Rules) == 0 {
		c.Game.Payouts = game.DefaultPayoutTable()
	}
	if c.Game.ReceiptCacheSize == 0 {
		c.Game.ReceiptCacheSize = 256
	}

	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 5 * time.Second
	}

	if c.History.Source == "" {
		c.History.Source = "explorer"
	}
	if c.History.PageSize == 0 {
		c.History.PageSize = 1000
	}
	if c.History.BlockRange == 0 {
		c.History.BlockRange = 50000
	}
	if c.History.CacheTTL == 0 {
		c.History.CacheTTL = 30 * time.Second
	}

	c.Frame.setDefaults()
	c.Networks = mergePresets(c.Networks)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.ActiveNetwork(); err != nil {
		return err
	}
	if err := c.Game.Payouts.Validate(); err != nil {
		return fmt.Errorf("invalid payout table: %w", err)
	}
	if !c.Game.SpinPrice.IsPositive() {
		return fmt.Errorf("invalid config: spin_price must be positive")
	}
	for _, sig := range c.Game.EventSignatures {
		if !isHash(sig) {
			return fmt.Errorf("invalid config: event signature %q is not a 32-byte hex hash", sig)
		}
	}
	return nil
}

// ActiveNetwork returns the profile selected by Network.
func (c *Config) ActiveNetwork() (NetworkConfig, error) {
	n, ok := c.Networks[c.Network]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("invalid config: unknown network %q", c.Network)
	}
	if n.ContractAddress == (common.Address{}) {
		return NetworkConfig{}, fmt.Errorf("invalid config: network %q has no contract address", c.Network)
	}
	return n, nil
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return c.Addr
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func isHash(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
