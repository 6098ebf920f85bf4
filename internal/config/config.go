package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Affiliate AffiliateConfig `yaml:"affiliate" mapstructure:"affiliate"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Name     string `yaml:"name" mapstructure:"name"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// DSN returns URL when set, otherwise a connection string built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	// RequestsPerMinute caps messages across all lanes. Zero disables it.
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// CrawlConfig configures fetching, extraction and reconciliation.
type CrawlConfig struct {
	RequestDelay         time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
	Timeout              time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent            string        `yaml:"user_agent" mapstructure:"user_agent"`
	MinConfidence        float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxContentChars      int           `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	FuzzyThreshold       float64       `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	HotelEventLimit      int           `yaml:"hotel_event_limit" mapstructure:"hotel_event_limit"`
	MaxHotelsPerProvider int           `yaml:"max_hotels_per_provider" mapstructure:"max_hotels_per_provider"`
}

// AffiliateConfig holds per-provider tracking identifiers.
type AffiliateConfig struct {
	Amazon     AmazonConfig     `yaml:"amazon" mapstructure:"amazon"`
	Coupang    CoupangConfig    `yaml:"coupang" mapstructure:"coupang"`
	AliExpress AliExpressConfig `yaml:"aliexpress" mapstructure:"aliexpress"`
	Booking    BookingConfig    `yaml:"booking" mapstructure:"booking"`
	Agoda      AgodaConfig      `yaml:"agoda" mapstructure:"agoda"`
}

// AmazonConfig configures Amazon Associates links.
type AmazonConfig struct {
	AssociateTag string `yaml:"associate_tag" mapstructure:"associate_tag"`
	Marketplace  string `yaml:"marketplace" mapstructure:"marketplace"`
}

// CoupangConfig configures Coupang Partners links.
type CoupangConfig struct {
	PartnerID string `yaml:"partner_id" mapstructure:"partner_id"`
	SubID     string `yaml:"sub_id" mapstructure:"sub_id"`
}

// AliExpressConfig configures AliExpress portal links.
type AliExpressConfig struct {
	TrackingID string `yaml:"tracking_id" mapstructure:"tracking_id"`
}

// BookingConfig configures Booking.com affiliate links.
type BookingConfig struct {
	AID string `yaml:"aid" mapstructure:"aid"`
}

// AgodaConfig configures Agoda affiliate links.
type AgodaConfig struct {
	CID string `yaml:"cid" mapstructure:"cid"`
}

// ScheduleConfig sets lane intervals for the schedule command.
type ScheduleConfig struct {
	Events    time.Duration `yaml:"events" mapstructure:"events"`
	Products  time.Duration `yaml:"products" mapstructure:"products"`
	Hotels    time.Duration `yaml:"hotels" mapstructure:"hotels"`
	Stagger   time.Duration `yaml:"stagger" mapstructure:"stagger"`
	Dashboard time.Duration `yaml:"dashboard" mapstructure:"dashboard"`
}

// RegistryConfig configures where product sources come from.
type RegistryConfig struct {
	ProductsFile string `yaml:"products_file" mapstructure:"products_file"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	ExecPath string `yaml:"exec_path" mapstructure:"exec_path"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
}

// MetricsConfig configures the metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can see it on Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5433)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "tango_community")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("crawl.request_delay", 2*time.Second)
	v.SetDefault("crawl.timeout", 30*time.Second)
	v.SetDefault("crawl.user_agent", "TangoCommunityBot/1.0 (+https://tangocommunity.app/bot)")
	v.SetDefault("crawl.min_confidence", 0.5)
	v.SetDefault("crawl.max_content_chars", 100000)
	v.SetDefault("crawl.fuzzy_threshold", 0.6)
	v.SetDefault("crawl.hotel_event_limit", 50)
	v.SetDefault("crawl.max_hotels_per_provider", 5)
	v.SetDefault("affiliate.amazon.associate_tag", "tango-community-20")
	v.SetDefault("affiliate.amazon.marketplace", "US")
	v.SetDefault("affiliate.coupang.partner_id", "")
	v.SetDefault("affiliate.coupang.sub_id", "tango")
	v.SetDefault("affiliate.aliexpress.tracking_id", "")
	v.SetDefault("affiliate.booking.aid", "123456")
	v.SetDefault("affiliate.agoda.cid", "1234567")
	v.SetDefault("schedule.events", 6*time.Hour)
	v.SetDefault("schedule.products", 12*time.Hour)
	v.SetDefault("schedule.hotels", 24*time.Hour)
	v.SetDefault("schedule.stagger", 10*time.Second)
	v.SetDefault("schedule.dashboard", 30*time.Minute)
	v.SetDefault("registry.products_file", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is "crawl" for
// commands that extract with the AI model, "sources" for registry listing.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, "database.url or database.host and database.name are required")
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, "database.max_conns must be >= 1")
	}

	switch mode {
	case "sources":
	case "crawl":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.MaxTokens < 1 {
			errs = append(errs, "anthropic.max_tokens must be >= 1")
		}
		if c.Anthropic.RequestsPerMinute < 0 {
			errs = append(errs, "anthropic.requests_per_minute must be >= 0")
		}
		if c.Crawl.MinConfidence < 0 || c.Crawl.MinConfidence > 1 {
			errs = append(errs, "crawl.min_confidence must be between 0 and 1")
		}
		if c.Crawl.FuzzyThreshold < 0 || c.Crawl.FuzzyThreshold > 1 {
			errs = append(errs, "crawl.fuzzy_threshold must be between 0 and 1")
		}
		if c.Crawl.Timeout <= 0 {
			errs = append(errs, "crawl.timeout must be > 0")
		}
		if c.Crawl.RequestDelay < 0 {
			errs = append(errs, "crawl.request_delay must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
