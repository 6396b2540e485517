package configs

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config struct
type Config struct {
	App       `mapstructure:"app"`
	Codex     `mapstructure:"codex"`
	Admission `mapstructure:"admission"`
	Auth      `mapstructure:"auth"`
	Models    `mapstructure:"models"`
	Line      `mapstructure:"line"`
	Session   `mapstructure:"session"`
}

// App struct
type App struct {
	Debug                  bool   `mapstructure:"debug"`
	Env                    string `mapstructure:"env"`
	Port                   string `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Codex struct - how the codex CLI is invoked
type Codex struct {
	Path                   string   `mapstructure:"path"`
	Workdir                string   `mapstructure:"workdir"`
	Home                   string   `mapstructure:"home"`
	SandboxMode            string   `mapstructure:"sandbox_mode"`
	ReasoningEffort        string   `mapstructure:"reasoning_effort"`
	HideReasoning          bool     `mapstructure:"hide_reasoning"`
	WorkspaceNetworkAccess bool     `mapstructure:"workspace_network_access"`
	AllowDangerFullAccess  bool     `mapstructure:"allow_danger_full_access"`
	LocalOnly              bool     `mapstructure:"local_only"`
	JSONOutput             bool     `mapstructure:"json_output"`
	ContentFields          []string `mapstructure:"content_fields"`
	TimeoutSeconds         int      `mapstructure:"timeout_seconds"`
	KillGraceSeconds       int      `mapstructure:"kill_grace_seconds"`
	LineLimitBytes         int      `mapstructure:"line_limit_bytes"`
	StderrLimitBytes       int      `mapstructure:"stderr_limit_bytes"`
}

// Admission struct - bounded concurrency of codex processes
type Admission struct {
	MaxParallel         int `mapstructure:"max_parallel"`
	QueueTimeoutSeconds int `mapstructure:"queue_timeout_seconds"`
}

// Auth struct
type Auth struct {
	APIKey             string `mapstructure:"api_key"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
}

// Models struct
type Models struct {
	Default   string   `mapstructure:"default"`
	Available []string `mapstructure:"available"`
}

// Line struct
type Line struct {
	Enabled       bool   `mapstructure:"enabled"`
	ChannelSecret string `mapstructure:"channel_secret"`
	ChannelToken  string `mapstructure:"channel_token"`
	Endpoint      string `mapstructure:"endpoint"`
}

// Session struct - LINE conversation history
type Session struct {
	Timeout  int `mapstructure:"timeout"`
	MaxTurns int `mapstructure:"max_turns"`
}

// Timeout returns the per-request codex deadline. Zero means none.
func (c Codex) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// KillGrace returns how long a process gets between SIGTERM and SIGKILL.
func (c Codex) KillGrace() time.Duration {
	return seconds(c.KillGraceSeconds)
}

// QueueTimeout returns how long a request may wait for a slot. Zero waits forever.
func (a Admission) QueueTimeout() time.Duration {
	return seconds(a.QueueTimeoutSeconds)
}

// ShutdownTimeout returns how long in-flight requests get on shutdown.
func (a App) ShutdownTimeout() time.Duration {
	return seconds(a.ShutdownTimeoutSeconds)
}

// SessionTimeout returns the idle time after which a conversation is forgotten.
func (s Session) SessionTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Minute
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

var config Config

// InitViper func
func InitViper(path, env string) {
	getConfig(path, env)
}

// GetViper func
func GetViper() *Config {
	return &config
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.env", "local")
	viper.SetDefault("app.port", "8000")
	viper.SetDefault("app.shutdown_timeout_seconds", 30)

	viper.SetDefault("codex.path", "codex")
	viper.SetDefault("codex.workdir", "")
	viper.SetDefault("codex.home", "")
	viper.SetDefault("codex.sandbox_mode", "read-only")
	viper.SetDefault("codex.reasoning_effort", "medium")
	viper.SetDefault("codex.hide_reasoning", false)
	viper.SetDefault("codex.workspace_network_access", false)
	viper.SetDefault("codex.allow_danger_full_access", false)
	viper.SetDefault("codex.local_only", false)
	viper.SetDefault("codex.json_output", false)
	viper.SetDefault("codex.content_fields", []string{"text", "content"})
	viper.SetDefault("codex.timeout_seconds", 120)
	viper.SetDefault("codex.kill_grace_seconds", 2)
	viper.SetDefault("codex.line_limit_bytes", 512*1024)
	viper.SetDefault("codex.stderr_limit_bytes", 64*1024)

	viper.SetDefault("admission.max_parallel", 2)
	viper.SetDefault("admission.queue_timeout_seconds", 30)

	viper.SetDefault("auth.api_key", "")
	viper.SetDefault("auth.rate_limit_per_minute", 60)

	viper.SetDefault("models.default", "codex-cli")
	viper.SetDefault("models.available", []string{"codex-cli"})

	viper.SetDefault("line.enabled", false)
	viper.SetDefault("line.channel_secret", "")
	viper.SetDefault("line.channel_token", "")
	viper.SetDefault("line.endpoint", "")

	viper.SetDefault("session.timeout", 30)
	viper.SetDefault("session.max_turns", 10)
}

func getConfig(path, env string) {
	setDefaults()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var notFound viper.ConfigFileNotFoundError
	err := viper.ReadInConfig()
	switch {
	case err == nil:
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Println("Config file has changed: ", e.Name)
		})
	case errors.As(err, &notFound):
		log.Println("No config file found, using defaults and environment")
	default:
		panic(err)
	}

	if env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil && !errors.As(err, &notFound) {
			panic(err)
		}
		viper.Set("app.env", env)
	}

	config = Config{}
	err = viper.Unmarshal(&config)
	if err != nil {
		log.Fatalln(err)
	}
}
