// Package config loads schemamodeler settings from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in LLMConfig.Provider
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
type Config struct {
	DatabaseURL string        `yaml:"database_url"`
	LLM         LLMConfig     `yaml:"llm"`
	Diagram     DiagramConfig `yaml:"diagram"`
	Cache       CacheConfig   `yaml:"cache"`
	Log         LogConfig     `yaml:"log"`
	Server      ServerConfig  `yaml:"server"`
}

// LLMConfig selects and tunes the text-generation provider.
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // "", "openai" or "anthropic"
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIModel     string        `yaml:"openai_model"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	AnthropicModel  string        `yaml:"anthropic_model"`
	MaxRetries      int           `yaml:"max_retries"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// DiagramConfig points at the PlantUML renderer.
type DiagramConfig struct {
	PlantUMLURL string `yaml:"plantuml_url"`
	Output      string `yaml:"output"`
}

// CacheConfig controls schema reflection caching. An empty RedisURL keeps
// the cache in process memory; a zero TTL never expires entries.
// ReflectTimeout bounds one reflection, zero leaves it unbounded.
type CacheConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	RedisURL       string        `yaml:"redis_url"`
	ReflectTimeout time.Duration `yaml:"reflect_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		DatabaseURL: "sqlite://northwind.db",
		LLM: LLMConfig{
			OpenAIModel:    "gpt-3.5-turbo",
			AnthropicModel: "claude-3-5-sonnet-20240620",
			MaxTokens:      4096,
			Timeout:        2 * time.Minute,
		},
		Cache: CacheConfig{
			ReflectTimeout: 2 * time.Minute,
		},
		Diagram: DiagramConfig{
			PlantUMLURL: "http://localhost:8080",
			Output:      "class_diagram.png",
		},
		Log: LogConfig{
			Level: "info",
			File:  "app.log",
		},
		Server: ServerConfig{
			Addr: ":8081",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment variables. A .env file is read first
// unless APP_ENV is "production".
func Load(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	texts := map[string]*string{
		"DATABASE_URL":      &c.DatabaseURL,
		"OPENAI_API_KEY":    &c.LLM.OpenAIAPIKey,
		"OPENAI_MODEL":      &c.LLM.OpenAIModel,
		"OPENAI_BASE_URL":   &c.LLM.OpenAIBaseURL,
		"ANTHROPIC_API_KEY": &c.LLM.AnthropicAPIKey,
		"ANTHROPIC_MODEL":   &c.LLM.AnthropicModel,
		"LLM_PROVIDER":      &c.LLM.Provider,
		"PLANTUML_URL":      &c.Diagram.PlantUMLURL,
		"DIAGRAM_OUTPUT":    &c.Diagram.Output,
		"REDIS_URL":         &c.Cache.RedisURL,
		"LOG_LEVEL":         &c.Log.Level,
		"LOG_FILE":          &c.Log.File,
		"SERVER_ADDR":       &c.Server.Addr,
	}
	for key, dst := range texts {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"LLM_MAX_RETRIES": &c.LLM.MaxRetries,
		"LLM_MAX_TOKENS":  &c.LLM.MaxTokens,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"LLM_TIMEOUT":      &c.LLM.Timeout,
		"SCHEMA_CACHE_TTL": &c.Cache.TTL,
		"REFLECT_TIMEOUT":  &c.Cache.ReflectTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}

	return nil
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown llm provider %q (must be openai or anthropic)", c.LLM.Provider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if c.Cache.ReflectTimeout < 0 {
		return fmt.Errorf("cache reflect_timeout must not be negative")
	}
	if c.Diagram.PlantUMLURL == "" {
		return fmt.Errorf("plantuml_url is required")
	}
	return nil
}
