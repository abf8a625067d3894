// Package config loads voicenote settings from YAML or TOML plus VOICENOTE_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath    string          `yaml:"db_path" toml:"db_path"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Aliyun    AliyunConfig    `yaml:"aliyun" toml:"aliyun"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	ASR       ASRConfig       `yaml:"asr" toml:"asr"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Schedule  ScheduleConfig  `yaml:"schedule" toml:"schedule"`
	Watch     WatchConfig     `yaml:"watch" toml:"watch"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
	// PublicURL is how the recognition gateway reaches /files/ when storage is local.
	PublicURL string `yaml:"public_url" toml:"public_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type AliyunConfig struct {
	Region          string `yaml:"region" toml:"region"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret" toml:"access_key_secret"`
}

type StorageConfig struct {
	Provider string `yaml:"provider" toml:"provider"` // oss | local
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	Bucket   string `yaml:"bucket" toml:"bucket"`
	LocalDir string `yaml:"local_dir" toml:"local_dir"`
}

type ASRConfig struct {
	AppKey  string `yaml:"app_key" toml:"app_key"`
	Gateway string `yaml:"gateway" toml:"gateway"`
	// Token skips CreateToken and uses a fixed token (local testing).
	Token          string `yaml:"token" toml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider" toml:"provider"` // zero | ollama | openai
	Model    string `yaml:"model" toml:"model"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	// Dims 0 keeps the provider's native length (1536 for zero and openai).
	Dims           int `yaml:"dims" toml:"dims"`
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider" toml:"provider"` // http | gemini
	Endpoint       string `yaml:"endpoint" toml:"endpoint"`
	APIKey         string `yaml:"api_key" toml:"api_key"`
	Model          string `yaml:"model" toml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

type ScheduleConfig struct {
	Disabled bool   `yaml:"disabled" toml:"disabled"`
	Cron     string `yaml:"cron" toml:"cron"`
}

type WatchConfig struct {
	Inbox         string `yaml:"inbox" toml:"inbox"`
	MaxConcurrent int    `yaml:"max_concurrent" toml:"max_concurrent"`
}

// DefaultCron fires at 23:00 local time every day.
const DefaultCron = "0 23 * * *"

// Load reads path (.yaml, .yml or .toml), applies environment overrides and
// fills defaults. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse yaml config: %w", err)
			}
		case ".toml":
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse toml config: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultPath returns the first existing config under $XDG_CONFIG_HOME/voicenote
// (or ~/.config/voicenote), or "" when there is none.
func DefaultPath() string {
	var dir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dir = filepath.Join(xdg, "voicenote")
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "voicenote")
	} else {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.DBPath, "VOICENOTE_DB")
	setString(&cfg.Server.Addr, "VOICENOTE_ADDR")
	setString(&cfg.Server.PublicURL, "VOICENOTE_PUBLIC_URL")
	setString(&cfg.Logging.Level, "VOICENOTE_LOG_LEVEL")
	setString(&cfg.Logging.Format, "VOICENOTE_LOG_FORMAT")
	setString(&cfg.Aliyun.Region, "VOICENOTE_ALIYUN_REGION")
	setString(&cfg.Aliyun.AccessKeyID, "VOICENOTE_ACCESS_KEY_ID")
	setString(&cfg.Aliyun.AccessKeySecret, "VOICENOTE_ACCESS_KEY_SECRET")
	setString(&cfg.Storage.Provider, "VOICENOTE_STORAGE")
	setString(&cfg.Storage.Endpoint, "VOICENOTE_OSS_ENDPOINT")
	setString(&cfg.Storage.Bucket, "VOICENOTE_OSS_BUCKET")
	setString(&cfg.Storage.LocalDir, "VOICENOTE_STORAGE_DIR")
	setString(&cfg.ASR.AppKey, "VOICENOTE_ASR_APP_KEY")
	setString(&cfg.ASR.Token, "VOICENOTE_ASR_TOKEN")
	setString(&cfg.ASR.Gateway, "VOICENOTE_ASR_GATEWAY")
	setString(&cfg.Embedding.Provider, "VOICENOTE_EMBED_PROVIDER")
	setString(&cfg.Embedding.Model, "VOICENOTE_EMBED_MODEL")
	setString(&cfg.Embedding.BaseURL, "VOICENOTE_EMBED_URL")
	setString(&cfg.Embedding.APIKey, "VOICENOTE_EMBED_API_KEY")
	setString(&cfg.LLM.Provider, "VOICENOTE_LLM_PROVIDER")
	setString(&cfg.LLM.Endpoint, "VOICENOTE_LLM_ENDPOINT")
	setString(&cfg.LLM.APIKey, "VOICENOTE_LLM_API_KEY")
	setString(&cfg.LLM.Model, "VOICENOTE_LLM_MODEL")
	setString(&cfg.Schedule.Cron, "VOICENOTE_CRON")
	setString(&cfg.Watch.Inbox, "VOICENOTE_INBOX")
	setInt(&cfg.Watch.MaxConcurrent, "VOICENOTE_WATCH_CONCURRENCY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		home, _ := os.UserHomeDir()
		c.DBPath = filepath.Join(home, ".voicenote", "voicenote.db")
	}
	c.DBPath = expandTilde(c.DBPath)
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Aliyun.Region == "" {
		c.Aliyun.Region = "cn-shanghai"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = "oss"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = filepath.Join(filepath.Dir(c.DBPath), "objects")
	}
	c.Storage.LocalDir = expandTilde(c.Storage.LocalDir)
	if c.ASR.TimeoutSeconds == 0 {
		c.ASR.TimeoutSeconds = 30
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "zero"
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 30
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "http"
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Watch.MaxConcurrent == 0 {
		c.Watch.MaxConcurrent = 2
	}
	c.Watch.Inbox = expandTilde(c.Watch.Inbox)
}

// Validate checks the settings every provider-backed command needs.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case "oss":
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required")
		}
		if err := c.requireAliyunKeys(); err != nil {
			return err
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}

	if c.ASR.AppKey == "" {
		return fmt.Errorf("asr.app_key is required")
	}
	if c.ASR.Token == "" {
		if err := c.requireAliyunKeys(); err != nil {
			return err
		}
	}

	if err := c.ValidateLLM(); err != nil {
		return err
	}

	if c.Watch.MaxConcurrent < 1 {
		return fmt.Errorf("watch.max_concurrent must be at least 1")
	}
	return nil
}

// ValidateLLM checks only the summarizer settings.
func (c *Config) ValidateLLM() error {
	switch c.LLM.Provider {
	case "http":
		if c.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint is required")
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required")
		}
	case "gemini":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	return nil
}

func (c *Config) requireAliyunKeys() error {
	if c.Aliyun.AccessKeyID == "" || c.Aliyun.AccessKeySecret == "" {
		return fmt.Errorf("aliyun.access_key_id and aliyun.access_key_secret are required")
	}
	return nil
}

// ASRTimeout returns the recognition call timeout.
func (c *Config) ASRTimeout() time.Duration {
	return time.Duration(c.ASR.TimeoutSeconds) * time.Second
}

// EmbeddingTimeout returns the embedding call timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// LLMTimeout returns the summary call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
