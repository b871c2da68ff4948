// Package config loads and validates the relay configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultAssistantURL    = "https://api.openai.com/v1"
	DefaultChatModel       = "gpt-4o-mini"
	DefaultVisionModel     = "gpt-4o"
	DefaultRunTimeout      = 30
	MaxRunTimeout          = 60
	DefaultPollInterval    = 1
	DefaultChunkDelayMs    = 100
	DefaultTranscriptCeil  = 10 * 60
	DefaultTranscriptPoll  = 5
	DefaultMaxUploadBytes  = 5 * 1024 * 1024
	DefaultMaxUploadCount  = 5
	DefaultCacheTTLMinutes = 10
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Assistant  AssistantConfig  `toml:"assistant"`
	Transcript TranscriptConfig `toml:"transcript"`
	Stream     StreamConfig     `toml:"stream"`
	Upload     UploadConfig     `toml:"upload"`
	Cache      CacheConfig      `toml:"cache"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AssistantConfig configures the remote conversational backend.
type AssistantConfig struct {
	BaseURL      string `toml:"base_url" validate:"required,url"`
	APIKey       string `toml:"api_key"`
	AssistantID  string `toml:"assistant_id"`
	ChatModel    string `toml:"chat_model"`
	VisionModel  string `toml:"vision_model"`
	SystemPrompt string `toml:"system_prompt"`
	// RunTimeoutSeconds bounds one asynchronous run, capped at MaxRunTimeout.
	RunTimeoutSeconds   int `toml:"run_timeout_seconds" validate:"omitempty,min=1"`
	PollIntervalSeconds int `toml:"poll_interval_seconds" validate:"omitempty,min=1"`
}

// TranscriptConfig configures the transcription backends.
type TranscriptConfig struct {
	SupadataAPIKey      string `toml:"supadata_api_key"`
	SupadataBaseURL     string `toml:"supadata_base_url"`
	EnableCaptionScrape bool   `toml:"enable_caption_scrape"`
	EnableGeneric       bool   `toml:"enable_generic"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds" validate:"omitempty,min=1"`
	CeilingSeconds      int    `toml:"ceiling_seconds" validate:"omitempty,min=1"`
}

// StreamConfig paces chunk delivery on the SSE stream.
type StreamConfig struct {
	ChunkDelayMs int `toml:"chunk_delay_ms" validate:"omitempty,min=0"`
}

// ChunkDelay returns the inter-chunk delay. Zero disables pacing.
func (c StreamConfig) ChunkDelay() time.Duration {
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes" validate:"omitempty,min=1"`
	MaxFiles int   `toml:"max_files" validate:"omitempty,min=1"`
}

type CacheConfig struct {
	Enabled    bool `toml:"enabled"`
	TTLMinutes int  `toml:"ttl_minutes" validate:"omitempty,min=1"`
}

// RunTimeout returns the effective run ceiling, clamped to MaxRunTimeout.
func (c AssistantConfig) RunTimeout() time.Duration {
	seconds := c.RunTimeoutSeconds
	if seconds <= 0 {
		seconds = DefaultRunTimeout
	}
	if seconds > MaxRunTimeout {
		seconds = MaxRunTimeout
	}
	return time.Duration(seconds) * time.Second
}

// PollInterval returns the effective run poll interval.
func (c AssistantConfig) PollInterval() time.Duration {
	seconds := c.PollIntervalSeconds
	if seconds <= 0 {
		seconds = DefaultPollInterval
	}
	return time.Duration(seconds) * time.Second
}

// PollInterval returns the transcription job poll interval.
func (c TranscriptConfig) PollInterval() time.Duration {
	seconds := c.PollIntervalSeconds
	if seconds <= 0 {
		seconds = DefaultTranscriptPoll
	}
	return time.Duration(seconds) * time.Second
}

// Ceiling returns the transcription job wait ceiling.
func (c TranscriptConfig) Ceiling() time.Duration {
	seconds := c.CeilingSeconds
	if seconds <= 0 {
		seconds = DefaultTranscriptCeil
	}
	return time.Duration(seconds) * time.Second
}

// TTL returns the reply cache time-to-live.
func (c CacheConfig) TTL() time.Duration {
	minutes := c.TTLMinutes
	if minutes <= 0 {
		minutes = DefaultCacheTTLMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Load reads the TOML config at path, overlaying defaults. A missing file is
// not an error; environment variables fill secrets afterwards.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Assistant: AssistantConfig{
			BaseURL:             DefaultAssistantURL,
			ChatModel:           DefaultChatModel,
			VisionModel:         DefaultVisionModel,
			RunTimeoutSeconds:   DefaultRunTimeout,
			PollIntervalSeconds: DefaultPollInterval,
		},
		Transcript: TranscriptConfig{
			EnableCaptionScrape: true,
			PollIntervalSeconds: DefaultTranscriptPoll,
			CeilingSeconds:      DefaultTranscriptCeil,
		},
		Stream: StreamConfig{
			ChunkDelayMs: DefaultChunkDelayMs,
		},
		Upload: UploadConfig{
			MaxBytes: DefaultMaxUploadBytes,
			MaxFiles: DefaultMaxUploadCount,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: DefaultCacheTTLMinutes,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
	}
	if v := os.Getenv("ASSISTANT_ID"); v != "" {
		cfg.Assistant.AssistantID = v
	}
	if v := os.Getenv("SUPADATA_API_KEY"); v != "" {
		cfg.Transcript.SupadataAPIKey = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
