package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Events   EventsConfig   `yaml:"events"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig holds chat transport configuration.
type TelegramConfig struct {
	Token          string        `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
	APIEndpoint    string        `yaml:"api_endpoint" envconfig:"TELEGRAM_API_ENDPOINT" default:"https://api.telegram.org/bot%s/%s"`
	PollTimeout    int           `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"` // seconds
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"TELEGRAM_CONNECT_TIMEOUT" default:"60s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"TELEGRAM_READ_TIMEOUT" default:"120s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"TELEGRAM_WRITE_TIMEOUT" default:"120s"`
	RateLimit      float64       `yaml:"rate_limit" envconfig:"TELEGRAM_RATE_LIMIT" default:"25"` // requests per second
	RateBurst      int           `yaml:"rate_burst" envconfig:"TELEGRAM_RATE_BURST" default:"5"`
	Debug          bool          `yaml:"debug" envconfig:"TELEGRAM_DEBUG" default:"false"`
}

// StorageConfig holds the transient download area configuration.
type StorageConfig struct {
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"downloads"`
	MaxFileSize  int64  `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" default:"52428800"` // 50MB
	PurgeOnStart bool   `yaml:"purge_on_start" envconfig:"STORAGE_PURGE_ON_START" default:"true"`
}

// DownloadConfig holds extraction tool configuration.
type DownloadConfig struct {
	YTDLPPath      string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	FFmpegLocation string        `yaml:"ffmpeg_location" envconfig:"FFMPEG_LOCATION"`
	VideoFormat    string        `yaml:"video_format" envconfig:"DOWNLOAD_VIDEO_FORMAT" default:"bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4"`
	AudioFormat    string        `yaml:"audio_format" envconfig:"DOWNLOAD_AUDIO_FORMAT" default:"bestaudio/best"`
	AudioCodec     string        `yaml:"audio_codec" envconfig:"DOWNLOAD_AUDIO_CODEC" default:"mp3"`
	AudioBitrate   string        `yaml:"audio_bitrate" envconfig:"DOWNLOAD_AUDIO_BITRATE" default:"192K"`
	SocketTimeout  time.Duration `yaml:"socket_timeout" envconfig:"DOWNLOAD_SOCKET_TIMEOUT" default:"30s"`
}

// LedgerConfig bounds the in-memory request ledger. Zero values keep every
// entry for the life of the process.
type LedgerConfig struct {
	MaxEntries int           `yaml:"max_entries" envconfig:"LEDGER_MAX_ENTRIES" default:"0"`
	TTL        time.Duration `yaml:"ttl" envconfig:"LEDGER_TTL" default:"0s"`
}

// EventsConfig holds activity log configuration.
type EventsConfig struct {
	BufferSize    int    `yaml:"buffer_size" envconfig:"EVENTS_BUFFER_SIZE" default:"500"`
	SQLitePath    string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH"`
	RetentionDays int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS" default:"30"`
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"SERVER_ENABLED" default:"false"`
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9848"`
	APIKey       string        `yaml:"api_key" envconfig:"SERVER_API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from file and environment variables.
// Precedence, lowest first: defaults, the YAML file, set environment variables.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Defaults plus any environment values
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		fromEnv := *cfg
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		// The file replaced defaults and env alike; restore the env values
		overrideFromEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(&fromEnv).Elem(), "")
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// overrideFromEnv copies into dst every field of src whose environment
// variable is set, using the same names envconfig resolves.
func overrideFromEnv(dst, src reflect.Value, prefix string) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() == reflect.Struct {
			overrideFromEnv(dst.Field(i), src.Field(i), strings.ToUpper(field.Name))
			continue
		}

		name := strings.ToUpper(field.Tag.Get("envconfig"))
		if name == "" {
			continue
		}
		if envSet(name) || (prefix != "" && envSet(prefix+"_"+name)) {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

func envSet(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Storage.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Download.YTDLPPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.Telegram.RateLimit < 0 {
		return fmt.Errorf("TELEGRAM_RATE_LIMIT cannot be negative")
	}
	if c.Ledger.MaxEntries < 0 {
		return fmt.Errorf("LEDGER_MAX_ENTRIES cannot be negative")
	}
	if c.Ledger.TTL < 0 {
		return fmt.Errorf("LEDGER_TTL cannot be negative")
	}
	if c.Server.Enabled && c.Server.APIKey == "" {
		return fmt.Errorf("SERVER_API_KEY is required when the server is enabled")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HTTPTimeout is the overall deadline for a single request to the chat API,
// covering both the upload and the response.
func (c *TelegramConfig) HTTPTimeout() time.Duration {
	return c.WriteTimeout + c.ReadTimeout
}
