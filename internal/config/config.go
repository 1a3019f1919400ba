// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"routerwatch/internal/news"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	DB         DBConfig         `mapstructure:"db"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Search     SearchConfig     `mapstructure:"search"`
	Relevance  RelevanceConfig  `mapstructure:"relevance"`
	Form       FormConfig       `mapstructure:"form"`
	Submit     SubmitConfig     `mapstructure:"submit"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Screenshot ScreenshotConfig `mapstructure:"screenshots"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// BrowserConfig governs the headless browsing sessions.
type BrowserConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
}

// SearchConfig lists the query/category pairs the harvester runs.
type SearchConfig struct {
	Tasks              []news.SearchTask `mapstructure:"tasks"`
	PerSourceLimit     int               `mapstructure:"per_source_limit"`
	SourcePauseSeconds int               `mapstructure:"source_pause_seconds"`
}

// RelevanceConfig holds the keyword sets for the relevance filter.
// The brand set is a hard requirement; product and security terms are
// an intentionally permissive OR.
type RelevanceConfig struct {
	BrandTerms    []string `mapstructure:"brand_terms"`
	ProductTerms  []string `mapstructure:"product_terms"`
	SecurityTerms []string `mapstructure:"security_terms"`
}

// FormConfig points at the external form and tunes success detection.
type FormConfig struct {
	URL               string `mapstructure:"url"`
	LenientSuccess    bool   `mapstructure:"lenient_success"`
	SubmitWaitSeconds int    `mapstructure:"submit_wait_seconds"`
}

// SubmitConfig governs the submission pipeline.
type SubmitConfig struct {
	FailThreshold    int `mapstructure:"fail_threshold"`
	ItemPauseSeconds int `mapstructure:"item_pause_seconds"`
}

// SupervisorConfig bounds the whole run.
type SupervisorConfig struct {
	DeadlineSeconds int `mapstructure:"deadline_seconds"`
}

// ScreenshotConfig selects where failure screenshots are archived.
type ScreenshotConfig struct {
	Backend   string `mapstructure:"backend"` // "local" or "gcs"
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for submission-outcome notifications.
// Publishing is disabled when the topic is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the optional debug HTTP surface.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROUTERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	v.SetDefault("db.table", "news")
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 20)
	v.SetDefault("search.per_source_limit", 5)
	v.SetDefault("search.source_pause_seconds", 2)
	v.SetDefault("search.tasks", []map[string]any{
		{"category": "Google News (EN)", "query": "ASUS router security", "kind": "news", "lang": "en"},
		{"category": "Google News (TW)", "query": "華碩 路由器 資安", "kind": "news", "lang": "zh-TW"},
		{"category": "官方資源", "query": "site:asus.com security router", "kind": "web", "lang": "en"},
		{"category": "資安通報", "query": "site:bleepingcomputer.com OR site:thehackernews.com ASUS", "kind": "news", "lang": "en"},
	})
	v.SetDefault("relevance.brand_terms", []string{"asus", "華碩"})
	v.SetDefault("relevance.product_terms", []string{
		"router", "firmware", "rt-ax", "rt-ac", "zenwifi", "aimesh", "路由器", "韌體",
	})
	v.SetDefault("relevance.security_terms", []string{
		"security", "vulnerability", "cve", "exploit", "botnet", "backdoor", "patch", "資安", "漏洞", "攻擊",
	})
	v.SetDefault("form.lenient_success", true)
	v.SetDefault("form.submit_wait_seconds", 10)
	v.SetDefault("submit.fail_threshold", 3)
	v.SetDefault("submit.item_pause_seconds", 3)
	v.SetDefault("supervisor.deadline_seconds", 300)
	v.SetDefault("screenshots.backend", "local")
	v.SetDefault("screenshots.local_dir", "screenshots")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Form.URL == "" {
		return fmt.Errorf("form.url is required")
	}
	if len(c.Relevance.BrandTerms) == 0 {
		return fmt.Errorf("relevance.brand_terms must not be empty")
	}
	if c.Submit.FailThreshold <= 0 {
		return fmt.Errorf("submit.fail_threshold must be > 0")
	}
	if c.Supervisor.DeadlineSeconds <= 0 {
		return fmt.Errorf("supervisor.deadline_seconds must be > 0")
	}
	switch c.Screenshot.Backend {
	case "local":
		if c.Screenshot.LocalDir == "" {
			return fmt.Errorf("screenshots.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Screenshot.GCSBucket == "" {
			return fmt.Errorf("screenshots.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("screenshots.backend must be local or gcs")
	}
	for i, task := range c.Search.Tasks {
		if task.Query == "" {
			return fmt.Errorf("search.tasks[%d].query is required", i)
		}
		if task.Kind != news.KindNews && task.Kind != news.KindWeb {
			return fmt.Errorf("search.tasks[%d].kind must be news or web", i)
		}
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// NavTimeout returns the browser navigation limit as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// Deadline returns the supervisor run limit as a duration.
func (c Config) Deadline() time.Duration {
	return time.Duration(c.Supervisor.DeadlineSeconds) * time.Second
}
