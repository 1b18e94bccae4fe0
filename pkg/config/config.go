package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TIENDA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	OpenRouter   OpenRouterConfig
	Agent        AgentConfig
	Twilio       TwilioConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env      string `envconfig:"TIENDA_APP_ENV" default:"dev"`
	Port     string `envconfig:"TIENDA_APP_PORT" default:"8000"`
	LogLevel string `envconfig:"TIENDA_LOG_LEVEL" default:"info"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"TIENDA_DB_DSN"`

	Host     string `envconfig:"TIENDA_DB_HOST"`
	Port     int    `envconfig:"TIENDA_DB_PORT" default:"5432"`
	User     string `envconfig:"TIENDA_DB_USER"`
	Password string `envconfig:"TIENDA_DB_PASSWORD"`
	Name     string `envconfig:"TIENDA_DB_NAME"`
	SSLMode  string `envconfig:"TIENDA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIENDA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIENDA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIENDA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIENDA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either TIENDA_DB_DSN or TIENDA_DB_HOST/USER/NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"TIENDA_REDIS_URL"`
	DialTimeout  time.Duration `envconfig:"TIENDA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIENDA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIENDA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured at all. The webhook
// dedupe degrades gracefully without one.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type OpenRouterConfig struct {
	APIKey      string        `envconfig:"TIENDA_OPENROUTER_API_KEY"`
	BaseURL     string        `envconfig:"TIENDA_OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Model       string        `envconfig:"TIENDA_OPENROUTER_MODEL" default:"google/gemini-3-flash-preview"`
	Temperature float64       `envconfig:"TIENDA_OPENROUTER_TEMPERATURE" default:"0.1"`
	MaxTokens   int64         `envconfig:"TIENDA_OPENROUTER_MAX_TOKENS" default:"350"`
	Timeout     time.Duration `envconfig:"TIENDA_OPENROUTER_TIMEOUT" default:"60s"`
}

type AgentConfig struct {
	// APIBaseURL is the address the agent's tools call back into; the agent
	// drives the same HTTP surface customers use.
	APIBaseURL    string `envconfig:"TIENDA_API_BASE_URL" default:"http://localhost:8000/api/v1"`
	HistoryLimit  int    `envconfig:"TIENDA_AGENT_HISTORY_LIMIT" default:"8"`
	MaxToolRounds int    `envconfig:"TIENDA_AGENT_MAX_TOOL_ROUNDS" default:"8"`
}

type TwilioConfig struct {
	AccountSID  string `envconfig:"TIENDA_TWILIO_ACCOUNT_SID"`
	AuthToken   string `envconfig:"TIENDA_TWILIO_AUTH_TOKEN"`
	PhoneNumber string `envconfig:"TIENDA_TWILIO_PHONE_NUMBER"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TIENDA_AUTO_MIGRATE" default:"false"`
}
