package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMailerLite = "mailerlite"
	BackendDapr       = "dapr"
	BackendMemory     = "memory"

	ExporterStdout = "stdout"
	ExporterNone   = "none"

	DefaultGroupID = "170777172695320520"
)

// Config is read from environment variables or an optional .env file in the
// working directory. A missing MAILERLITE_API_KEY is not an error here: the
// reminder endpoint fails closed per request instead.
type Config struct {
	ServerPort     string `mapstructure:"SERVER_PORT"`
	GinMode        string `mapstructure:"GIN_MODE"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`

	MailerLiteAPIKey  string        `mapstructure:"MAILERLITE_API_KEY"`
	MailerLiteGroupID string        `mapstructure:"MAILERLITE_GROUP_ID"`
	MailerLiteBaseURL string        `mapstructure:"MAILERLITE_BASE_URL"`
	MailerLiteTimeout time.Duration `mapstructure:"MAILERLITE_TIMEOUT"`

	SubscriberBackend string `mapstructure:"SUBSCRIBER_BACKEND"`
	DaprBindingName   string `mapstructure:"DAPR_BINDING_NAME"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	PaymentPublicKey string `mapstructure:"PAYMENT_PUBLIC_KEY"`
	PaymentCurrency  string `mapstructure:"PAYMENT_CURRENCY"`

	FlowSessionTTL    time.Duration `mapstructure:"FLOW_SESSION_TTL"`
	FlowContinueDelay time.Duration `mapstructure:"FLOW_CONTINUE_DELAY"`

	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":          "8080",
	"GIN_MODE":             "",
	"LOG_LEVEL":            "info",
	"SERVICE_NAME":         "nextsteps-api",
	"SERVICE_VERSION":      "1.0.0",
	"MAILERLITE_API_KEY":   "",
	"MAILERLITE_GROUP_ID":  DefaultGroupID,
	"MAILERLITE_BASE_URL":  "https://connect.mailerlite.com/api",
	"MAILERLITE_TIMEOUT":   "15s",
	"SUBSCRIBER_BACKEND":   BackendMailerLite,
	"DAPR_BINDING_NAME":    "mailerlite",
	"CORS_ALLOWED_ORIGINS": "*",
	"PAYMENT_PUBLIC_KEY":   "",
	"PAYMENT_CURRENCY":     "ZAR",
	"FLOW_SESSION_TTL":     "30m",
	"FLOW_CONTINUE_DELAY":  "2m",
	"TRACING_EXPORTER":     ExporterStdout,
}

func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom looks for a .env file in dir before falling back to the environment.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.SubscriberBackend = strings.ToLower(strings.TrimSpace(c.SubscriberBackend))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
	c.MailerLiteAPIKey = strings.TrimSpace(c.MailerLiteAPIKey)
	c.MailerLiteBaseURL = strings.TrimSuffix(strings.TrimSpace(c.MailerLiteBaseURL), "/")
	if strings.TrimSpace(c.MailerLiteGroupID) == "" {
		c.MailerLiteGroupID = DefaultGroupID
	}
}

func (c *Config) Validate() error {
	switch c.SubscriberBackend {
	case BackendMailerLite, BackendDapr, BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.SubscriberBackend)
	}

	switch c.TracingExporter {
	case ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExporter, c.TracingExporter)
	}

	durations := map[string]time.Duration{
		"MAILERLITE_TIMEOUT":  c.MailerLiteTimeout,
		"FLOW_SESSION_TTL":    c.FlowSessionTTL,
		"FLOW_CONTINUE_DELAY": c.FlowContinueDelay,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidDuration, key)
		}
	}

	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
