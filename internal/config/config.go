package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every recognized configuration option, loaded from env vars
// (with an optional .env file in development) and validated once at startup.
type Config struct {
	Environment string         `mapstructure:"environment" validate:"oneof=development staging production"`
	LogLevel    string         `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	MACD        MACDConfig     `mapstructure:"macd"`
	Pen         PenConfig      `mapstructure:"pen"`
	Segment     SegmentConfig  `mapstructure:"segment"`
	Divergence  DivergenceCfg  `mapstructure:"divergence"`
	BSP         BSPConfig      `mapstructure:"bsp"`
	Health      HealthConfig   `mapstructure:"health"`
}

type ServerConfig struct {
	HTTPPort     int    `mapstructure:"http_port" validate:"min=1024,max=65535"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout" validate:"min=1"`
	WriteTimeout int    `mapstructure:"write_timeout" validate:"min=1"`
	EnableCORS   bool   `mapstructure:"enable_cors"`
}

// DatabaseConfig is optional persistence for confirmed records; Enabled
// gates whether cmd/server wires a connection pool at all.
type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxConnections  int    `mapstructure:"max_connections" validate:"min=1,max=100"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" validate:"min=60"`
}

type MACDConfig struct {
	Fast   int `mapstructure:"fast" validate:"min=1"`
	Slow   int `mapstructure:"slow" validate:"min=1"`
	Signal int `mapstructure:"signal" validate:"min=1"`
}

type PenConfig struct {
	UseNewDefinition       bool `mapstructure:"use_new_definition"`
	StrictValidation       bool `mapstructure:"strict_validation"`
	MinCandlesBetweenTurns int  `mapstructure:"min_candles_between_turns" validate:"min=1"`
}

type SegmentConfig struct {
	UseFeatureSequence bool    `mapstructure:"use_feature_sequence"`
	HandleInclusion    bool    `mapstructure:"handle_inclusion"`
	MinFeatures        int     `mapstructure:"min_features" validate:"min=3"`
	GapThreshold       float64 `mapstructure:"gap_threshold"`
}

type DivergenceCfg struct {
	MinPriceChangePct float64 `mapstructure:"min_price_change_pct" validate:"min=0"`
	MinMacdChange     float64 `mapstructure:"min_macd_change" validate:"min=0"`
	EnableSegment     bool    `mapstructure:"enable_segment"`
}

type BSPConfig struct {
	MinConfidence     float64 `mapstructure:"min_confidence" validate:"min=0,max=1"`
	PullbackThreshold float64 `mapstructure:"pullback_threshold" validate:"min=0,max=1"`
	Enable1           bool    `mapstructure:"enable1"`
	Enable2           bool    `mapstructure:"enable2"`
	Enable3           bool    `mapstructure:"enable3"`
}

type HealthConfig struct {
	CheckIntervalMs int  `mapstructure:"check_interval_ms" validate:"min=1"`
	MaxFailures     int  `mapstructure:"max_failures" validate:"min=1"`
	FailoverEnabled bool `mapstructure:"failover_enabled"`
}

// Load reads configuration from environment variables, optionally seeded by
// a .env file in development, applies defaults for every recognized option,
// and validates the result before returning it.
func Load() (*Config, error) {
	if err := godotenv.Load("config/.env"); err != nil {
		if os.Getenv("ENVIRONMENT") == "" {
			fmt.Printf("Warning: No .env file found, using environment variables only\n")
		}
	}

	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnv()
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func bindEnv() {
	viper.BindEnv("server.http_port", "SERVER_HTTP_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.enabled", "DATABASE_ENABLED")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.max_connections", "DATABASE_MAX_CONNECTIONS")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")

	viper.BindEnv("macd.fast", "MACD_FAST")
	viper.BindEnv("macd.slow", "MACD_SLOW")
	viper.BindEnv("macd.signal", "MACD_SIGNAL")

	viper.BindEnv("pen.use_new_definition", "PEN_USE_NEW_DEFINITION")
	viper.BindEnv("pen.strict_validation", "PEN_STRICT_VALIDATION")
	viper.BindEnv("pen.min_candles_between_turns", "PEN_MIN_CANDLES_BETWEEN_TURNS")

	viper.BindEnv("segment.use_feature_sequence", "SEGMENT_USE_FEATURE_SEQUENCE")
	viper.BindEnv("segment.handle_inclusion", "SEGMENT_HANDLE_INCLUSION")
	viper.BindEnv("segment.min_features", "SEGMENT_MIN_FEATURES")
	viper.BindEnv("segment.gap_threshold", "SEGMENT_GAP_THRESHOLD")

	viper.BindEnv("divergence.min_price_change_pct", "DIVERGENCE_MIN_PRICE_CHANGE_PCT")
	viper.BindEnv("divergence.min_macd_change", "DIVERGENCE_MIN_MACD_CHANGE")
	viper.BindEnv("divergence.enable_segment", "DIVERGENCE_ENABLE_SEGMENT")

	viper.BindEnv("bsp.min_confidence", "BSP_MIN_CONFIDENCE")
	viper.BindEnv("bsp.pullback_threshold", "BSP_PULLBACK_THRESHOLD")
	viper.BindEnv("bsp.enable1", "BSP_ENABLE1")
	viper.BindEnv("bsp.enable2", "BSP_ENABLE2")
	viper.BindEnv("bsp.enable3", "BSP_ENABLE3")

	viper.BindEnv("health.check_interval_ms", "HEALTH_CHECK_INTERVAL_MS")
	viper.BindEnv("health.max_failures", "HEALTH_MAX_FAILURES")
	viper.BindEnv("health.failover_enabled", "HEALTH_FAILOVER_ENABLED")
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("server.enable_cors", true)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.name", "chanlun")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("macd.fast", 12)
	viper.SetDefault("macd.slow", 26)
	viper.SetDefault("macd.signal", 9)

	viper.SetDefault("pen.use_new_definition", true)
	viper.SetDefault("pen.strict_validation", true)
	viper.SetDefault("pen.min_candles_between_turns", 3)

	viper.SetDefault("segment.use_feature_sequence", true)
	viper.SetDefault("segment.handle_inclusion", true)
	viper.SetDefault("segment.min_features", 3)
	viper.SetDefault("segment.gap_threshold", 0)

	viper.SetDefault("divergence.min_price_change_pct", 0.5)
	viper.SetDefault("divergence.min_macd_change", 0.01)
	viper.SetDefault("divergence.enable_segment", true)

	viper.SetDefault("bsp.min_confidence", 0.6)
	viper.SetDefault("bsp.pullback_threshold", 0.382)
	viper.SetDefault("bsp.enable1", true)
	viper.SetDefault("bsp.enable2", true)
	viper.SetDefault("bsp.enable3", true)

	viper.SetDefault("health.check_interval_ms", 1000)
	viper.SetDefault("health.max_failures", 3)
	viper.SetDefault("health.failover_enabled", true)
}

// Validate enforces the options that have no meaningful zero value.
func (c *Config) Validate() error {
	if c.Server.HTTPPort == 0 {
		return errors.New("server http port is required")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return errors.New("database host is required when database.enabled is set")
		}
		if c.Database.Port == 0 {
			return errors.New("database port is required when database.enabled is set")
		}
	}
	if c.MACD.Fast <= 0 || c.MACD.Slow <= 0 || c.MACD.Signal <= 0 {
		return errors.New("macd periods must be positive")
	}
	if c.MACD.Fast >= c.MACD.Slow {
		return errors.New("macd.fast must be smaller than macd.slow")
	}
	if c.Segment.MinFeatures < 3 {
		return errors.New("segment.min_features must be at least 3")
	}
	if c.BSP.MinConfidence < 0 || c.BSP.MinConfidence > 1 {
		return errors.New("bsp.min_confidence must fall within [0,1]")
	}
	return nil
}

// String masks the database password so it never lands in logs.
func (c *Config) String() string {
	masked := *c
	masked.Database.Password = "***"
	return fmt.Sprintf("%+v", masked)
}
