package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding provider credentials
const (
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Render        RenderConfig        `yaml:"render"`
	Workers       WorkersConfig       `yaml:"workers"`
	Storage       StorageConfig       `yaml:"storage"`
	Cleanup       CleanupConfig       `yaml:"cleanup"`
	GoogleDrive   GoogleDriveConfig   `yaml:"google_drive"`
	Limits        LimitsConfig        `yaml:"limits"`
}

// ServerConfig holds the listen address
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// TranscriptionConfig selects and configures speech-to-text providers
type TranscriptionConfig struct {
	// Providers is the preference order; the first one with credentials is used
	Providers      []string       `yaml:"providers"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Deepgram       DeepgramConfig `yaml:"deepgram"`
	OpenAI         OpenAIConfig   `yaml:"openai"`
	LocalFallback  WhisperConfig  `yaml:"local_fallback"`
}

// DeepgramConfig holds Deepgram settings; APIKey normally comes from the environment
type DeepgramConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OpenAIConfig holds OpenAI settings; APIKey normally comes from the environment
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// WhisperConfig configures the local Whisper fallback
type WhisperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Python   string `yaml:"python"`
}

// RenderConfig configures the export toolchain
type RenderConfig struct {
	FFmpegPath        string `yaml:"ffmpeg_path"`
	FFprobePath       string `yaml:"ffprobe_path"`
	Format            string `yaml:"format"`
	JobTimeoutMinutes int    `yaml:"job_timeout_minutes"`
}

// WorkersConfig sizes the render worker pool
type WorkersConfig struct {
	Count int `yaml:"count"`
}

// StorageConfig holds filesystem locations
type StorageConfig struct {
	TempDir   string `yaml:"temp_dir"`
	MediaDir  string `yaml:"media_dir"`
	ExportDir string `yaml:"export_dir"`
	OutputDir string `yaml:"output_dir"`
	Database  string `yaml:"database"`
}

// CleanupConfig controls the stale file sweeper
type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

// GoogleDriveConfig enables Drive upload of finished exports and Drive imports
type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

// LimitsConfig bounds request sizes
type LimitsConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	MaxCaptions   int `yaml:"max_captions"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Transcription: TranscriptionConfig{
			Providers:      []string{"deepgram", "openai"},
			TimeoutSeconds: 60,
			Deepgram: DeepgramConfig{
				Model: "nova-2",
			},
			OpenAI: OpenAIConfig{
				Model: "whisper-1",
			},
			LocalFallback: WhisperConfig{
				Enabled: true,
				Model:   "small",
				Python:  "python",
			},
		},
		Render: RenderConfig{
			FFmpegPath:        "ffmpeg",
			FFprobePath:       "ffprobe",
			Format:            "webm",
			JobTimeoutMinutes: 30,
		},
		Workers: WorkersConfig{
			Count: 2,
		},
		Storage: StorageConfig{
			TempDir:   "temp",
			MediaDir:  "media",
			ExportDir: "exports",
			OutputDir: "outputs",
			Database:  "captions.db",
		},
		Cleanup: CleanupConfig{
			IntervalMinutes: 60,
			MaxAgeHours:     24,
		},
		GoogleDrive: GoogleDriveConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			FolderName:      "Captioned Videos",
		},
		Limits: LimitsConfig{
			MaxFileSizeMB: 500,
			MaxCaptions:   5000,
		},
	}
}

// Load reads config from file, returns default if not exists.
// Provider keys from the environment override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env.local then .env into the process environment.
// Missing files are ignored and existing variables are never overwritten.
func LoadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDeepgramKey)); v != "" {
		c.Transcription.Deepgram.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIKey)); v != "" {
		c.Transcription.OpenAI.APIKey = v
	}
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("workers.count must be at least 1, got %d", c.Workers.Count)
	}
	switch c.Render.Format {
	case "webm", "mp4":
	default:
		return fmt.Errorf("unsupported render format: %q (use webm or mp4)", c.Render.Format)
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		return fmt.Errorf("limits.max_file_size_mb must be positive")
	}
	return nil
}

// Addr returns the host:port listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TranscriptionTimeout returns the per-request provider timeout
func (c *Config) TranscriptionTimeout() time.Duration {
	if c.Transcription.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// JobTimeout returns the render timeout, zero for none
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Render.JobTimeoutMinutes) * time.Minute
}

// MaxFileSize returns the upload limit in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
