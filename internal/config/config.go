package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort    = 8000
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama3-8b-8192"
)

// Input modes control how the caller-supplied "html" text is prepared
// before it is embedded in a prompt.
const (
	InputModeRaw      = "raw"
	InputModeText     = "text"
	InputModeMarkdown = "markdown"
)

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CORSOrigins string `yaml:"corsOrigins"`
}

// LLMConfig describes the hosted completion API. APIKey is not checked
// for presence; a missing key only surfaces as downstream auth failures.
type LLMConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

type ExtractConfig struct {
	InputMode             string `yaml:"inputMode"`
	EnforceMetadataSchema bool   `yaml:"enforceMetadataSchema"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Extract ExtractConfig `yaml:"extract"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        DefaultPort,
			CORSOrigins: "*",
		},
		LLM: LLMConfig{
			BaseURL: DefaultBaseURL,
			Model:   DefaultModel,
		},
		Extract: ExtractConfig{
			InputMode: InputModeRaw,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadEnvFile loads a .env file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at
// path and finally environment overrides. An empty path or a missing file
// leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	applyEnv(cfg, os.LookupEnv)
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("GROQ_API_KEY", &cfg.LLM.APIKey)
	str("GROQ_BASE_URL", &cfg.LLM.BaseURL)
	str("GROQ_MODEL", &cfg.LLM.Model)
	str("HOST", &cfg.Server.Host)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("EXTRACT_INPUT_MODE", &cfg.Extract.InputMode)

	if v, ok := lookup("PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// fillDefaults restores defaults for keys a YAML file explicitly blanked.
func (c *Config) fillDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.Extract.InputMode == "" {
		c.Extract.InputMode = InputModeRaw
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	c.Extract.InputMode = strings.ToLower(strings.TrimSpace(c.Extract.InputMode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate rejects values the service cannot act on.
func (c *Config) Validate() error {
	switch c.Extract.InputMode {
	case InputModeRaw, InputModeText, InputModeMarkdown:
	default:
		return fmt.Errorf("unsupported extract.inputMode %q (expected raw|text|markdown)", c.Extract.InputMode)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging.format %q (expected json|console)", c.Logging.Format)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.LLM.TimeoutMs < 0 {
		return fmt.Errorf("invalid llm.timeoutMs %d", c.LLM.TimeoutMs)
	}
	return nil
}

// Addr returns the listen address (host:port).
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
