package codex

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"codex-gateway/internal/domain"
	"codex-gateway/internal/ports/output"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// Compile-time check to ensure CommandBuilder implements ProviderGuard interface
var _ output.ProviderGuard = (*CommandBuilder)(nil)

// codexConfig is the part of $CODEX_HOME/config.toml that selects the model provider.
type codexConfig struct {
	Profile        string                   `toml:"profile"`
	ModelProvider  string                   `toml:"model_provider"`
	Profiles       map[string]codexProfile  `toml:"profiles"`
	ModelProviders map[string]modelProvider `toml:"model_providers"`
}

type codexProfile struct {
	ModelProvider string `toml:"model_provider"`
}

type modelProvider struct {
	BaseURL string `toml:"base_url"`
}

// AssertLocalProvider fails with domain.ErrNonLocalProvider unless the
// provider configured in the resolved codex home points at this host.
func (b *CommandBuilder) AssertLocalProvider() error {
	if err := b.Prepare(); err != nil {
		return domain.NewExecutionError(domain.KindProcessLaunch, err.Error(), err)
	}
	return CheckLocalProvider(filepath.Join(b.home, "config.toml"), os.Getenv("OPENAI_BASE_URL"))
}

// CheckLocalProvider reads the codex config at path and verifies that its
// effective provider is local. A missing or unreadable config selects the
// built-in openai provider, whose base URL may be overridden by
// openAIBaseURL. Unknown providers are treated as remote.
func CheckLocalProvider(path, openAIBaseURL string) error {
	cfg, err := loadCodexConfig(path)
	if err != nil {
		logrus.WithField("path", path).WithError(err).Warn("Ignoring unreadable codex config")
	}

	provider := cfg.provider()
	baseURL := cfg.baseURL(provider, openAIBaseURL)
	if baseURL == "" || !isLocalURL(baseURL) {
		shown := baseURL
		if shown == "" {
			shown = "DEFAULT/UNKNOWN"
		}
		return fmt.Errorf("%w: provider=%q base_url=%q", domain.ErrNonLocalProvider, provider, shown)
	}
	return nil
}

func loadCodexConfig(path string) (codexConfig, error) {
	var cfg codexConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return codexConfig{}, err
	}
	return cfg, nil
}

func (c codexConfig) provider() string {
	if p, ok := c.Profiles[c.Profile]; ok && c.Profile != "" && p.ModelProvider != "" {
		return p.ModelProvider
	}
	if c.ModelProvider != "" {
		return c.ModelProvider
	}
	return "openai"
}

func (c codexConfig) baseURL(provider, openAIBaseURL string) string {
	if p, ok := c.ModelProviders[provider]; ok {
		return p.BaseURL
	}
	if provider == "openai" || provider == "openai-chat-completions" {
		if openAIBaseURL != "" {
			return openAIBaseURL
		}
		return defaultOpenAIBaseURL
	}
	return ""
}

func isLocalURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "unix://") || strings.HasPrefix(raw, "http+unix://") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return localHosts[strings.ToLower(u.Hostname())]
	default:
		return false
	}
}
