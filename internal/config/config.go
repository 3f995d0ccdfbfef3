// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// MaxAttempts is the fixed ceiling on planning phases for a single task.
const MaxAttempts = 3

// Knowledge store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Knowledge    KnowledgeConfig    `mapstructure:"knowledge" yaml:"knowledge"`
	Browser      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	Resolver     ResolverConfig     `mapstructure:"resolver" yaml:"resolver"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	LLM          LLMConfig          `mapstructure:"llm" yaml:"llm"`
	Engine       EngineConfig       `mapstructure:"engine" yaml:"engine"`
	Observer     ObserverConfig     `mapstructure:"observer" yaml:"observer"`
}

// LoggerConfig defines all the settings for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// KnowledgeConfig selects and configures the durable intent store.
type KnowledgeConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path of the JSON document used by the file backend. A leading ~ is expanded.
	Path string `mapstructure:"path" yaml:"path"`
	// Watch drops the in-memory mirror when the file is edited externally.
	Watch       bool   `mapstructure:"watch" yaml:"watch"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// BrowserConfig holds settings for the chromedp-driven browser sessions.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PostActionWait is how long to let the page settle after a click or navigation.
	PostActionWait time.Duration `mapstructure:"post_action_wait" yaml:"post_action_wait"`
	// LivenessTimeout bounds the title probe used to decide whether the browser is alive.
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout" yaml:"liveness_timeout"`
	// CaptureDir receives full page snapshots taken before bulk learning.
	CaptureDir string `mapstructure:"capture_dir" yaml:"capture_dir"`
	// ScreenshotDir receives files written by the take_screenshot tool.
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	// Stealth installs a desktop browser persona on every new session.
	Stealth  bool   `mapstructure:"stealth" yaml:"stealth"`
	Locale   string `mapstructure:"locale" yaml:"locale"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// ResolverConfig tunes the bounded waits used while resolving intents.
type ResolverConfig struct {
	LocateTimeout time.Duration `mapstructure:"locate_timeout" yaml:"locate_timeout"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`
	ScrollSettle  time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
}

// OrchestratorConfig tunes the self-healing loop.
type OrchestratorConfig struct {
	// StepDelay is the pause between consecutive plan steps.
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	// PageContentLimit caps how much page content is handed to the suggestion oracle.
	PageContentLimit int `mapstructure:"page_content_limit" yaml:"page_content_limit"`
	// DiscoveryContentLimit caps the cleaned page handed to bulk discovery.
	DiscoveryContentLimit int `mapstructure:"discovery_content_limit" yaml:"discovery_content_limit"`
	// MinPageContent is the shortest page content considered usable for diagnosis.
	MinPageContent     int    `mapstructure:"min_page_content" yaml:"min_page_content"`
	SearchBoxIntent    string `mapstructure:"search_box_intent" yaml:"search_box_intent"`
	SearchButtonIntent string `mapstructure:"search_button_intent" yaml:"search_button_intent"`
}

// LLMConfig configures the model that backs every oracle.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// EngineConfig configures concurrent task execution.
type EngineConfig struct {
	WorkerConcurrency  int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	DefaultTaskTimeout time.Duration `mapstructure:"default_task_timeout" yaml:"default_task_timeout"`
}

// ObserverConfig configures where progress lines are streamed.
type ObserverConfig struct {
	// WebSocketAddr, when set, serves progress lines to websocket clients.
	WebSocketAddr string `mapstructure:"websocket_addr" yaml:"websocket_addr"`
	BufferSize    int    `mapstructure:"buffer_size" yaml:"buffer_size"`
	// TokenSecret, when set, requires viewers to present a signed token.
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret"`
}

// NewDefaultConfig builds a Config populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pathwright")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Knowledge --
	v.SetDefault("knowledge.backend", BackendFile)
	v.SetDefault("knowledge.path", "~/.pathwright/knowledge.json")
	v.SetDefault("knowledge.watch", false)
	v.SetDefault("knowledge.database_url", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_action_wait", "3s")
	v.SetDefault("browser.liveness_timeout", "5s")
	v.SetDefault("browser.capture_dir", "~/.pathwright/page_captures")
	v.SetDefault("browser.screenshot_dir", ".")
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.locale", "")
	v.SetDefault("browser.timezone", "")

	// -- Resolver --
	v.SetDefault("resolver.locate_timeout", "2s")
	v.SetDefault("resolver.verify_timeout", "3s")
	v.SetDefault("resolver.scroll_settle", "500ms")

	// -- Orchestrator --
	v.SetDefault("orchestrator.step_delay", "1s")
	v.SetDefault("orchestrator.page_content_limit", 7000)
	v.SetDefault("orchestrator.discovery_content_limit", 60000)
	v.SetDefault("orchestrator.min_page_content", 200)
	v.SetDefault("orchestrator.search_box_intent", "search box")
	v.SetDefault("orchestrator.search_button_intent", "search button")

	// -- LLM --
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "gemini-2.5-pro")
	v.SetDefault("llm.fast_model", "gemini-2.5-flash")
	// Registered so AutomaticEnv can resolve PATHWRIGHT_LLM_API_KEY during Unmarshal.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.requests_per_minute", 30)

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 2)
	v.SetDefault("engine.default_task_timeout", "15m")

	// -- Observer --
	v.SetDefault("observer.websocket_addr", "")
	v.SetDefault("observer.buffer_size", 256)
	v.SetDefault("observer.token_secret", "")
}

// Validate checks the configuration for values the rest of the system cannot
// work with.
func (c *Config) Validate() error {
	switch c.Knowledge.Backend {
	case BackendFile:
		if c.Knowledge.Path == "" {
			return fmt.Errorf("knowledge.path is required for the %q backend", BackendFile)
		}
	case BackendPostgres:
		if c.Knowledge.DatabaseURL == "" {
			return fmt.Errorf("knowledge.database_url is required for the %q backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown knowledge backend %q (supported: %s, %s)", c.Knowledge.Backend, BackendFile, BackendPostgres)
	}

	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider %q (supported: %s, %s)", c.LLM.Provider, ProviderGemini, ProviderOpenAI)
	}

	if c.Resolver.LocateTimeout <= 0 {
		return fmt.Errorf("resolver.locate_timeout must be positive")
	}
	if c.Resolver.VerifyTimeout <= 0 {
		return fmt.Errorf("resolver.verify_timeout must be positive")
	}
	if c.Engine.WorkerConcurrency < 1 {
		return fmt.Errorf("engine.worker_concurrency must be at least 1")
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory and cleans the result.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	return filepath.Clean(expanded), nil
}
