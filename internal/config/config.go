package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all mnemo configuration.
// Values come from Default(), then an optional TOML file, then the environment.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Email    EmailConfig    `mapstructure:"email"`
	Auth     AuthConfig     `mapstructure:"auth"`
	User     UserConfig     `mapstructure:"user"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Bind            string `mapstructure:"bind"`
	Port            int    `mapstructure:"port"`
	BaseURL         string `mapstructure:"base_url"`           // used to build magic links
	LoginRatePerMin int    `mapstructure:"login_rate_per_min"` // per client IP
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // "openai", "anthropic", "ollama"; empty picks from keys
	Model        string        `mapstructure:"model"`
	OpenAIKey    string        `mapstructure:"openai_key"`
	AnthropicKey string        `mapstructure:"anthropic_key"`
	OllamaURL    string        `mapstructure:"ollama_url"`
	OllamaModel  string        `mapstructure:"ollama_model"` // e.g. "llama3.2"
	Timeout      time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass"`
	From     string `mapstructure:"from"`
}

type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type UserConfig struct {
	Timezone string `mapstructure:"timezone"` // IANA name
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:            "127.0.0.1",
			Port:            3000,
			BaseURL:         "http://localhost:3000",
			LoginRatePerMin: 5,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2",
			Timeout:     60 * time.Second,
		},
		Email: EmailConfig{
			SMTPPort: 587,
			From:     "Mnemo <noreply@localhost>",
		},
		Auth: AuthConfig{
			TokenTTL:   10 * time.Minute,
			SessionTTL: 7 * 24 * time.Hour,
		},
		User: UserConfig{
			Timezone: "America/Toronto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envAliases binds config keys to the bare variable names used by existing
// deployments, in addition to the MNEMO_ prefixed form.
var envAliases = map[string]string{
	"server.port":         "PORT",
	"server.base_url":     "BASE_URL",
	"database.path":       "DATABASE_PATH",
	"llm.openai_key":      "OPENAI_API_KEY",
	"llm.anthropic_key":   "ANTHROPIC_API_KEY",
	"email.smtp_host":     "SMTP_HOST",
	"email.smtp_port":     "SMTP_PORT",
	"email.smtp_user":     "SMTP_USER",
	"email.smtp_pass":     "SMTP_PASS",
	"email.from":          "EMAIL_FROM",
	"auth.session_secret": "SESSION_SECRET",
	"user.timezone":       "USER_TIMEZONE",
}

// Load reads configuration with Read and validates it for serving.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read resolves defaults, the optional TOML file at path and the
// environment without validating. Offline commands use it directly.
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "MNEMO_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = detectProvider(cfg.LLM)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.login_rate_per_min", d.Server.LoginRatePerMin)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.openai_key", d.LLM.OpenAIKey)
	v.SetDefault("llm.anthropic_key", d.LLM.AnthropicKey)
	v.SetDefault("llm.ollama_url", d.LLM.OllamaURL)
	v.SetDefault("llm.ollama_model", d.LLM.OllamaModel)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("email.smtp_host", d.Email.SMTPHost)
	v.SetDefault("email.smtp_port", d.Email.SMTPPort)
	v.SetDefault("email.smtp_user", d.Email.SMTPUser)
	v.SetDefault("email.smtp_pass", d.Email.SMTPPass)
	v.SetDefault("email.from", d.Email.From)
	v.SetDefault("auth.session_secret", d.Auth.SessionSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.session_ttl", d.Auth.SessionTTL)
	v.SetDefault("user.timezone", d.User.Timezone)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// detectProvider picks a provider from whichever API key is present,
// falling back to a local Ollama.
func detectProvider(c LLMConfig) string {
	switch {
	case c.OpenAIKey != "":
		return "openai"
	case c.AnthropicKey != "":
		return "anthropic"
	default:
		return "ollama"
	}
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.SessionSecret == "" {
		errs = append(errs, errors.New("auth.session_secret (SESSION_SECRET) is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session_ttl must be positive"))
	}
	if _, err := time.LoadLocation(c.User.Timezone); err != nil || c.User.Timezone == "" {
		errs = append(errs, fmt.Errorf("user.timezone %q is not a valid IANA zone", c.User.Timezone))
	}
	if c.Server.BaseURL == "" {
		errs = append(errs, errors.New("server.base_url is required"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// CookieSecure reports whether session cookies should carry the Secure flag.
func (c *Config) CookieSecure() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}
