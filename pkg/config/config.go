package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"

	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	// DefaultServerName is the server used when none is configured.
	DefaultServerName = "mail"
)

// Config holds all runtime configuration for the agent.
type Config struct {
	MaxTurns        int           `mapstructure:"max_turns"`
	Verbose         bool          `mapstructure:"verbose"`
	ModelTimeout    time.Duration `mapstructure:"model_timeout"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	ToolConcurrency int           `mapstructure:"tool_concurrency"`
	PolicyFile      string        `mapstructure:"policy_file"`
	TranscriptFile  string        `mapstructure:"transcript_file"`

	LLM     LLMConfig               `mapstructure:"llm"`
	Servers map[string]ServerConfig `mapstructure:"servers"`
}

// LLMConfig selects the chat completion endpoint.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	Transport string            `mapstructure:"transport"`
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Env       map[string]string `mapstructure:"env"`
	URL       string            `mapstructure:"url"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		MaxTurns:        10,
		ModelTimeout:    60 * time.Second,
		ToolTimeout:     30 * time.Second,
		ToolConcurrency: 1,
		LLM:             LLMConfig{Provider: ProviderOpenAI},
	}
}

// DefaultServer launches the bundled mail server over stdio.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Transport: TransportStdio,
		Command:   "mail-server",
		Args:      []string{"--creds-file-path", "credentials.env"},
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.PolicyFile = strings.TrimSpace(cfg.PolicyFile)
	cfg.TranscriptFile = strings.TrimSpace(cfg.TranscriptFile)

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = strings.TrimSpace(cfg.LLM.BaseURL)
	cfg.LLM.Model = strings.TrimSpace(cfg.LLM.Model)

	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 1
	}
	if cfg.ToolConcurrency <= 0 {
		cfg.ToolConcurrency = 1
	}
	if cfg.ModelTimeout < 0 {
		cfg.ModelTimeout = 0
	}
	if cfg.ToolTimeout < 0 {
		cfg.ToolTimeout = 0
	}

	servers := make(map[string]ServerConfig, len(cfg.Servers))
	for name, server := range cfg.Servers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		servers[name] = normalizeServer(server)
	}
	if len(servers) == 0 {
		servers[DefaultServerName] = DefaultServer()
	}
	cfg.Servers = servers
	return cfg
}

func normalizeServer(s ServerConfig) ServerConfig {
	s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
	if s.Transport == "" {
		s.Transport = TransportStdio
	}
	s.Command = strings.TrimSpace(s.Command)
	s.URL = strings.TrimSpace(s.URL)

	args := make([]string, 0, len(s.Args))
	for _, arg := range s.Args {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	s.Args = args

	// viper lowercases map keys; environment names are conventionally upper case.
	if len(s.Env) > 0 {
		env := make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			env[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		s.Env = env
	}
	return s
}

// Validate reports every problem that would prevent the agent from starting.
func Validate(cfg Config) error {
	var errs []error
	if cfg.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is not set (OPENAI_API_KEY or GROQ_API_KEY)"))
	}
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		if cfg.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is not set (OPENAI_MODEL)"))
		}
	case ProviderGroq:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", cfg.LLM.Provider))
	}

	if len(cfg.Servers) == 0 {
		errs = append(errs, errors.New("no MCP servers configured"))
	}
	for _, name := range ServerNames(cfg) {
		server := cfg.Servers[name]
		switch server.Transport {
		case TransportStdio:
			if server.Command == "" {
				errs = append(errs, fmt.Errorf("servers.%s.command is required for stdio", name))
			}
		case TransportSSE, TransportHTTP:
			if server.URL == "" {
				errs = append(errs, fmt.Errorf("servers.%s.url is required for %s", name, server.Transport))
			}
		default:
			errs = append(errs, fmt.Errorf("servers.%s.transport %q is not supported", name, server.Transport))
		}
	}
	return errors.Join(errs...)
}

// ServerNames returns configured server names in a stable order.
func ServerNames(cfg Config) []string {
	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads an optional config file, overlays environment variables and
// returns the normalized result. An empty path skips the file.
func Load(path string) (Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("max_turns", def.MaxTurns)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("model_timeout", def.ModelTimeout)
	v.SetDefault("tool_timeout", def.ToolTimeout)
	v.SetDefault("tool_concurrency", def.ToolConcurrency)
	v.SetDefault("policy_file", "")
	v.SetDefault("transcript_file", "")
	v.SetDefault("llm.provider", def.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")

	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("llm.model", "OPENAI_MODEL")
	_ = v.BindEnv("llm.provider", "MCP_AGENT_PROVIDER")
	_ = v.BindEnv("max_turns", "MCP_AGENT_MAX_TURNS")
	_ = v.BindEnv("groq_api_key", "GROQ_API_KEY")

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := def
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg = Normalize(cfg)

	if cfg.LLM.Provider == ProviderGroq {
		if key := strings.TrimSpace(v.GetString("groq_api_key")); key != "" {
			cfg.LLM.APIKey = key
		}
	}
	return cfg, nil
}
