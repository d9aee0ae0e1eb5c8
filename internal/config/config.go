// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Search    SearchConfig    `mapstructure:"search"`
	Visitor   VisitorConfig   `mapstructure:"visitor"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Collect   CollectConfig   `mapstructure:"collect"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Mailer    MailerConfig    `mapstructure:"mailer"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Resend    ResendConfig    `mapstructure:"resend"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Export    ExportConfig    `mapstructure:"export"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SearchConfig drives query planning and search-result harvesting.
type SearchConfig struct {
	// URLTemplate is the results page; %s receives the escaped query.
	URLTemplate     string        `mapstructure:"url_template"`
	QuerySuffix     string        `mapstructure:"query_suffix"`
	Region          string        `mapstructure:"region"`
	MaxLinks        int           `mapstructure:"max_links"`
	ChallengeWait   time.Duration `mapstructure:"challenge_wait"`
	SettleWait      time.Duration `mapstructure:"settle_wait"`
	KeywordDelayMin time.Duration `mapstructure:"keyword_delay_min"`
	KeywordDelayMax time.Duration `mapstructure:"keyword_delay_max"`
	BlockedHosts    []string      `mapstructure:"blocked_hosts"`
	Terms           []string      `mapstructure:"terms"`
	Cities          []string      `mapstructure:"cities"`
}

// VisitorConfig bounds site visitation.
type VisitorConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	VisitTimeout   time.Duration `mapstructure:"visit_timeout"`
	FollowContact  bool          `mapstructure:"follow_contact"`
	PerHostRPS     float64       `mapstructure:"per_host_rps"`
	PerHostBurst   int           `mapstructure:"per_host_burst"`
}

// FetcherConfig selects and tunes the page fetcher.
type FetcherConfig struct {
	// Kind is "colly" or "headless".
	Kind          string `mapstructure:"kind"`
	UserAgent     string `mapstructure:"user_agent"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the chromedp browser shared by search and fetch.
type HeadlessConfig struct {
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ExecPath          string        `mapstructure:"exec_path"`
	// Visible opens a browser window so an operator can answer search
	// challenges by hand.
	Visible bool `mapstructure:"visible"`
}

// ValidatorConfig tunes MX resolution.
type ValidatorConfig struct {
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	Retries       int           `mapstructure:"retries"`
	BaseBackoff   time.Duration `mapstructure:"base_backoff"`
	MaxBackoff    time.Duration `mapstructure:"max_backoff"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// FilterConfig overrides the business-address rules.
type FilterConfig struct {
	BlockedDomains  []string `mapstructure:"blocked_domains"`
	BlockedPrefixes []string `mapstructure:"blocked_prefixes"`
}

// CollectConfig governs collection runs.
type CollectConfig struct {
	MaxResults   int  `mapstructure:"max_results"`
	SuppressSent bool `mapstructure:"suppress_sent"`
}

// DispatchConfig governs bulk sends.
type DispatchConfig struct {
	Delay       time.Duration `mapstructure:"delay"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// Subject is used when a send names none.
	Subject string `mapstructure:"subject"`
	// TemplatePath is an HTML body used when a send supplies no body.
	TemplatePath string `mapstructure:"template_path"`
	// AttachmentPath is attached to every message when the file exists.
	AttachmentPath string `mapstructure:"attachment_path"`
}

// MailerConfig picks the transport.
type MailerConfig struct {
	// Provider is "smtp" or "resend".
	Provider string `mapstructure:"provider"`
	From     string `mapstructure:"from"`
}

// SMTPConfig holds SMTP transport credentials.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Secure   bool   `mapstructure:"secure"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ResendConfig holds Resend API credentials.
type ResendConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig selects the contact store backend.
type StorageConfig struct {
	// Driver is one of file, memory, postgres, sqlite.
	Driver     string `mapstructure:"driver"`
	Path       string `mapstructure:"path"`
	DSN        string `mapstructure:"dsn"`
	Table      string `mapstructure:"table"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ExportConfig configures export destinations.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
	LogEvents    bool          `mapstructure:"log_events"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("harvester")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.contact-harvester")
		v.AddConfigPath("/etc/contact-harvester/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
			// Defaults and environment only.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("search.url_template", "https://www.google.com/search?q=%s&num=30")
	v.SetDefault("search.query_suffix", "contato email")
	v.SetDefault("search.region", "Brasil")
	v.SetDefault("search.max_links", 30)
	v.SetDefault("search.challenge_wait", 15*time.Second)
	v.SetDefault("search.settle_wait", 3*time.Second)
	v.SetDefault("search.keyword_delay_min", 5*time.Second)
	v.SetDefault("search.keyword_delay_max", 10*time.Second)
	v.SetDefault("search.terms", DefaultTerms)
	v.SetDefault("search.cities", DefaultCities)
	v.SetDefault("visitor.max_concurrency", 4)
	v.SetDefault("visitor.visit_timeout", 15*time.Second)
	v.SetDefault("visitor.follow_contact", true)
	v.SetDefault("visitor.per_host_rps", 1.0)
	v.SetDefault("visitor.per_host_burst", 1)
	v.SetDefault("fetcher.kind", "colly")
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.navigation_timeout", 30*time.Second)
	v.SetDefault("headless.visible", false)
	v.SetDefault("validator.lookup_timeout", 5*time.Second)
	v.SetDefault("validator.retries", 2)
	v.SetDefault("validator.base_backoff", 500*time.Millisecond)
	v.SetDefault("validator.max_backoff", 4*time.Second)
	v.SetDefault("validator.cache_ttl", 5*time.Minute)
	v.SetDefault("collect.max_results", 10)
	v.SetDefault("collect.suppress_sent", true)
	v.SetDefault("dispatch.delay", 2*time.Second)
	v.SetDefault("dispatch.send_timeout", 60*time.Second)
	v.SetDefault("dispatch.subject", "Oportunidade Profissional")
	v.SetDefault("dispatch.template_path", "templates/email-template.html")
	v.SetDefault("dispatch.attachment_path", "")
	v.SetDefault("mailer.provider", "smtp")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "contacts.json")
	v.SetDefault("storage.table", "contacts")
	v.SetDefault("storage.sqlite_path", "contacts.db")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.prefix", "contacts")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_wait", 100*time.Millisecond)
	v.SetDefault("progress.log_events", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if !strings.Contains(c.Search.URLTemplate, "%s") {
		return fmt.Errorf("search.url_template must contain %%s")
	}
	if c.Search.MaxLinks <= 0 {
		return fmt.Errorf("search.max_links must be > 0")
	}
	if c.Search.KeywordDelayMax < c.Search.KeywordDelayMin {
		return fmt.Errorf("search.keyword_delay_max must be >= search.keyword_delay_min")
	}
	if c.Visitor.MaxConcurrency <= 0 {
		return fmt.Errorf("visitor.max_concurrency must be > 0")
	}
	if c.Visitor.VisitTimeout <= 0 {
		return fmt.Errorf("visitor.visit_timeout must be > 0")
	}
	switch c.Fetcher.Kind {
	case "colly", "headless":
	default:
		return fmt.Errorf("fetcher.kind must be colly or headless, got %q", c.Fetcher.Kind)
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Validator.LookupTimeout <= 0 {
		return fmt.Errorf("validator.lookup_timeout must be > 0")
	}
	if c.Validator.Retries < 0 {
		return fmt.Errorf("validator.retries must be >= 0")
	}
	if c.Collect.MaxResults <= 0 {
		return fmt.Errorf("collect.max_results must be > 0")
	}
	if c.Dispatch.Delay < 0 {
		return fmt.Errorf("dispatch.delay must be >= 0")
	}
	switch c.Mailer.Provider {
	case "smtp", "resend":
	default:
		return fmt.Errorf("mailer.provider must be smtp or resend, got %q", c.Mailer.Provider)
	}
	switch c.Storage.Driver {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be set for the file driver")
		}
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres driver")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver must be file, memory, postgres, or sqlite, got %q", c.Storage.Driver)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ValidateMailer checks the settings needed to actually send; collection
// runs do not require them.
func (c Config) ValidateMailer() error {
	if c.Mailer.From == "" {
		return fmt.Errorf("mailer.from must be set")
	}
	switch c.Mailer.Provider {
	case "smtp":
		if c.SMTP.Host == "" || c.SMTP.Port <= 0 {
			return fmt.Errorf("smtp.host and smtp.port must be set")
		}
		if c.SMTP.Username == "" || c.SMTP.Password == "" {
			return fmt.Errorf("smtp.username and smtp.password must be set")
		}
	case "resend":
		if c.Resend.APIKey == "" {
			return fmt.Errorf("resend.api_key must be set")
		}
	}
	return nil
}
