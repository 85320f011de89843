package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ClientConfig configures the chat widget.
type ClientConfig struct {
	Endpoint       string        `json:"endpoint" env:"CHAT_WIDGET_ENDPOINT"`
	PageURL        string        `json:"page_url" env:"CHAT_WIDGET_PAGE_URL"`
	LogLevel       string        `json:"log_level" env:"CHAT_WIDGET_LOG_LEVEL"`
	LogFile        string        `json:"log_file" env:"CHAT_WIDGET_LOG_FILE"`
	RequestTimeout time.Duration `json:"request_timeout" env:"CHAT_WIDGET_REQUEST_TIMEOUT"`
}

// RateLimitConfig holds per-token request budgets. Zero disables a window.
type RateLimitConfig struct {
	PerMinute int `json:"per_minute" env:"CHATBOT_RATE_LIMIT_PER_MINUTE"`
	PerHour   int `json:"per_hour" env:"CHATBOT_RATE_LIMIT_PER_HOUR"`
	PerDay    int `json:"per_day" env:"CHATBOT_RATE_LIMIT_PER_DAY"`
}

// ServerConfig configures the reference chat backend.
type ServerConfig struct {
	Addr                string          `json:"addr" env:"CHATBOT_ADDR"`
	DatabaseURL         string          `json:"database_url" env:"CHATBOT_DATABASE_URL"`
	RedisAddr           string          `json:"redis_addr" env:"CHATBOT_REDIS_ADDR"`
	RedisPassword       string          `json:"-" env:"CHATBOT_REDIS_PASSWORD"`
	RedisDB             int             `json:"redis_db" env:"CHATBOT_REDIS_DB"`
	ImagesDir           string          `json:"images_dir" env:"CHATBOT_IMAGES_DIR"`
	ImagesBaseURL       string          `json:"images_base_url" env:"CHATBOT_IMAGES_BASE_URL"`
	AllowedOrigins      []string        `json:"allowed_origins" env:"CHATBOT_ALLOWED_ORIGINS" envSeparator:","`
	IntentsDir          string          `json:"intents_dir" env:"CHATBOT_INTENTS_DIR"`
	ClearIntents        bool            `json:"clear_intents" env:"CHATBOT_CLEAR_INTENTS"`
	ConfidenceThreshold int             `json:"confidence_threshold" env:"CHATBOT_CONFIDENCE_THRESHOLD"`
	ConversationWindow  time.Duration   `json:"conversation_window" env:"CHATBOT_CONVERSATION_WINDOW"`
	AdminToken          string          `json:"-" env:"CHATBOT_ADMIN_TOKEN"`
	Clients             []string        `json:"-" env:"CHATBOT_CLIENTS" envSeparator:","`
	LogLevel            string          `json:"log_level" env:"CHATBOT_LOG_LEVEL"`
	RateLimit           RateLimitConfig `json:"rate_limit"`
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint: "http://localhost:8000/chat",
		LogLevel: "info",
	}
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:          ":8000",
		ImagesDir:     "images",
		ImagesBaseURL: "http://localhost:8000/images/",
		AllowedOrigins: []string{
			"http://localhost",
			"http://localhost:8080",
			"http://127.0.0.1",
			"http://127.0.0.1:8080",
			"null",
		},
		ConfidenceThreshold: 60,
		ConversationWindow:  30 * time.Minute,
		LogLevel:            "info",
		RateLimit: RateLimitConfig{
			PerMinute: 30,
			PerHour:   500,
			PerDay:    5000,
		},
	}
}

// loadDotEnv loads the given .env files. Missing files are fine, broken ones
// are not.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// LoadClient builds the widget configuration from defaults, the optional
// .env files and the environment, in that order of precedence.
func LoadClient(dotenv ...string) (*ClientConfig, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	cfg := DefaultClientConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing client env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadServer(dotenv ...string) (*ServerConfig, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	cfg := DefaultServerConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing server env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", c.Endpoint)
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout must not be negative")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold %d out of range [0,100]", c.ConfidenceThreshold)
	}
	if c.ConversationWindow <= 0 {
		return errors.New("conversation window must be positive")
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.PerHour < 0 || c.RateLimit.PerDay < 0 {
		return errors.New("rate limits must not be negative")
	}
	if _, err := c.ClientTokens(); err != nil {
		return err
	}
	if c.ImagesBaseURL != "" && !strings.HasSuffix(c.ImagesBaseURL, "/") {
		c.ImagesBaseURL += "/"
	}
	return nil
}

// ClientTokens parses Clients entries of the form "name:token".
func (c *ServerConfig) ClientTokens() (map[string]string, error) {
	out := make(map[string]string, len(c.Clients))
	for _, entry := range c.Clients {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, token, ok := strings.Cut(entry, ":")
		name, token = strings.TrimSpace(name), strings.TrimSpace(token)
		if !ok || name == "" || token == "" {
			return nil, fmt.Errorf("invalid client entry %q, want name:token", entry)
		}
		out[name] = token
	}
	return out, nil
}
