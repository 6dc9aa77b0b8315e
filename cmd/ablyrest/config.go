package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ably/ably-rest-go/ably"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-based configuration of the CLI.
type Config struct {
	// Credentials. One of Key or Token is required.
	Key      string `env:"ABLY_KEY"`
	Token    string `env:"ABLY_TOKEN"`
	ClientID string `env:"ABLY_CLIENT_ID"`

	// Endpoint
	Environment   string   `env:"ABLY_ENVIRONMENT"`
	RESTHost      string   `env:"ABLY_REST_HOST"`
	FallbackHosts []string `env:"ABLY_FALLBACK_HOSTS" envSeparator:","`
	TLS           bool     `env:"ABLY_TLS" envDefault:"true"`
	Port          int      `env:"ABLY_PORT"`

	UseBinaryProtocol bool          `env:"ABLY_USE_BINARY_PROTOCOL" envDefault:"true"`
	UseTokenAuth      bool          `env:"ABLY_USE_TOKEN_AUTH" envDefault:"false"`
	Timeout           time.Duration `env:"ABLY_TIMEOUT" envDefault:"10s"`
	LogLevel          string        `env:"ABLY_LOG_LEVEL" envDefault:"warning"`

	// CipherKey is a base64 encoded key; channels are encrypted when set.
	CipherKey string `env:"ABLY_CIPHER_KEY"`
}

// Load reads configuration from environment variables, after loading a .env
// file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Key == "" && c.Token == "" {
		return errors.New("ABLY_KEY or ABLY_TOKEN is required")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.cipherKey(); err != nil {
		return err
	}
	return nil
}

func parseLogLevel(s string) (ably.LogLevel, error) {
	for _, level := range []ably.LogLevel{ably.LogNone, ably.LogError, ably.LogWarning, ably.LogInfo, ably.LogVerbose, ably.LogDebug} {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("ABLY_LOG_LEVEL: unknown level %q", s)
}

func (c *Config) cipherKey() ([]byte, error) {
	if c.CipherKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.CipherKey)
	if err != nil {
		return nil, fmt.Errorf("ABLY_CIPHER_KEY: %w", err)
	}
	return key, nil
}

// ClientOptions gives the options of the REST client described by c.
func (c *Config) ClientOptions() []ably.ClientOption {
	level, _ := parseLogLevel(c.LogLevel)
	opts := []ably.ClientOption{
		ably.WithUseBinaryProtocol(c.UseBinaryProtocol),
		ably.WithUseTokenAuth(c.UseTokenAuth),
		ably.WithHTTPRequestTimeout(c.Timeout),
		ably.WithLogLevel(level),
		ably.WithLogHandler(ably.NewStdLogger(log.New(os.Stderr, "ablyrest: ", log.LstdFlags))),
		ably.WithAgents(map[string]string{"ablyrest-cli": ""}),
	}
	if c.Key != "" {
		opts = append(opts, ably.WithKey(c.Key))
	}
	if c.Token != "" {
		opts = append(opts, ably.WithToken(c.Token))
	}
	if c.ClientID != "" {
		opts = append(opts, ably.WithClientID(c.ClientID))
	}
	if c.Environment != "" {
		opts = append(opts, ably.WithEnvironment(c.Environment))
	}
	if c.RESTHost != "" {
		opts = append(opts, ably.WithRESTHost(c.RESTHost))
	}
	if !c.TLS {
		opts = append(opts, ably.WithTLS(false))
	}
	if c.Port != 0 {
		if c.TLS {
			opts = append(opts, ably.WithTLSPort(c.Port))
		} else {
			opts = append(opts, ably.WithPort(c.Port))
		}
	}
	if len(c.FallbackHosts) > 0 {
		opts = append(opts, ably.WithFallbackHosts(c.FallbackHosts))
	}
	return opts
}

// ChannelOptions gives the options of the channels used by the CLI.
func (c *Config) ChannelOptions() []ably.ChannelOption {
	key, _ := c.cipherKey()
	if key == nil {
		return nil
	}
	return []ably.ChannelOption{ably.ChannelWithCipherKey(key)}
}
