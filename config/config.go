// Package config builds the proxy's immutable runtime configuration from
// environment variables (plus an optional YAML model-alias override file),
// using koanf the way the wider proxy family already layers config sources.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Provider identifies which upstream family a model resolves to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderNVIDIA    Provider = "nvidia"
)

// tag is the provider's model-name prefix, e.g. "openai/gpt-4o".
func (p Provider) tag() string {
	switch p {
	case ProviderAnthropic:
		return "anthropic"
	case ProviderNVIDIA:
		return "nvidia_nim"
	default:
		return "openai"
	}
}

// Endpoints is an ordered, round-robin set of base URLs configured for one
// provider role. Round-robin spreads load across configured endpoints; it
// never retries a failed request against a sibling endpoint. Pick is called
// once per inbound request from concurrent handlers, so the rotation is
// guarded by a mutex rather than left to bare field access.
type Endpoints struct {
	mu   *sync.Mutex
	urls []string
	next int
}

func newEndpoints(csv string) Endpoints {
	var urls []string
	for _, u := range strings.Split(csv, ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			urls = append(urls, u)
		}
	}
	return Endpoints{mu: &sync.Mutex{}, urls: urls}
}

// Pick returns the next endpoint in round-robin order, or "" if none configured.
func (e *Endpoints) Pick() string {
	if e.mu == nil {
		e.mu = &sync.Mutex{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.urls) == 0 {
		return ""
	}
	u := e.urls[e.next%len(e.urls)]
	e.next++
	return u
}

// All returns every configured endpoint, for health reporting.
func (e Endpoints) All() []string {
	out := make([]string, len(e.urls))
	copy(out, e.urls)
	return out
}

// Config is the immutable record built once at process startup and threaded
// explicitly into every constructor that needs it. Nothing in this package
// reads from globals after Load returns.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	NVIDIANIMAPIKey string

	PreferredProvider Provider

	BigModel   string
	SmallModel string

	ServerHost string
	ServerPort int

	LogLevel string

	OpenAIBaseURL string
	NVIDIABaseURL string

	OpenAIEndpoints    Endpoints
	AnthropicEndpoints Endpoints
	NVIDIAEndpoints    Endpoints

	// ModelAliases supplements the built-in haiku/sonnet/opus substring
	// rules with additional case-insensitive substring -> target mappings,
	// loaded from an optional YAML override file.
	ModelAliases map[string]string
}

// aliasFile is the on-disk shape of an optional model-alias override.
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Load builds a Config from the process environment and, if present, a
// model-alias YAML file named by MODEL_ALIASES_FILE.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Built-in defaults layer first, so an absent TOML file or unset
	// environment variable still leaves every key readable.
	defaults := map[string]interface{}{
		"PREFERRED_PROVIDER": "openai",
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	// An optional TOML file, named by CONFIG_FILE, overlays the defaults.
	// This lets an operator check a base config into version control
	// while still overriding secrets purely through the environment.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{
		AnthropicAPIKey:   k.String("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:      k.String("OPENAI_API_KEY"),
		NVIDIANIMAPIKey:   k.String("NVIDIA_NIM_API_KEY"),
		PreferredProvider: Provider(orDefault(k.String("PREFERRED_PROVIDER"), "openai")),
		BigModel:          orDefault(k.String("BIG_MODEL"), "gpt-4o"),
		SmallModel:        orDefault(k.String("SMALL_MODEL"), "gpt-4o-mini"),
		ServerHost:        orDefault(k.String("SERVER_HOST"), "0.0.0.0"),
		LogLevel:          orDefault(strings.ToLower(k.String("LOG_LEVEL")), "info"),
		OpenAIBaseURL:     orDefault(k.String("OPENAI_BASE_URL"), "https://api.openai.com/v1"),
		NVIDIABaseURL:     orDefault(k.String("NVIDIA_NIM_BASE_URL"), "https://integrate.api.nvidia.com/v1"),
	}

	port := 8082
	if p := k.String("SERVER_PORT"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", p, err)
		}
		port = parsed
	}
	cfg.ServerPort = port

	cfg.OpenAIEndpoints = newEndpoints(orDefault(k.String("OPENAI_ENDPOINTS"), cfg.OpenAIBaseURL))
	cfg.AnthropicEndpoints = newEndpoints(orDefault(k.String("ANTHROPIC_ENDPOINTS"), "https://api.anthropic.com"))
	cfg.NVIDIAEndpoints = newEndpoints(orDefault(k.String("NVIDIA_NIM_ENDPOINTS"), cfg.NVIDIABaseURL))

	aliases, err := loadAliasFile(k.String("MODEL_ALIASES_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.ModelAliases = aliases

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAliasFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading model alias file: %w", err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing model alias file: %w", err)
	}
	return f.Aliases, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Validate checks the startup-failure conditions named for the proxy: at
// least one provider credential must be present, and the preferred provider
// must be one of the recognized three.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" && c.OpenAIAPIKey == "" && c.NVIDIANIMAPIKey == "" {
		return fmt.Errorf("at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, NVIDIA_NIM_API_KEY is required")
	}
	switch c.PreferredProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderNVIDIA:
	default:
		return fmt.Errorf("invalid PREFERRED_PROVIDER %q", c.PreferredProvider)
	}
	return nil
}

// ProviderTag returns the wire-format provider prefix for p.
func (c *Config) ProviderTag(p Provider) string {
	return p.tag()
}

// Addr returns the host:port the server should bind to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
