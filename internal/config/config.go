package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the file-backed configuration, loaded from a TOML file and then
// overridden by VODFETCH_* environment variables.
type Config struct {
	Server   Server   `toml:"server"`
	Provider Provider `toml:"provider"`
	Download Download `toml:"download"`
	Logging  Logging  `toml:"logging"`
}

type Server struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`
}

type Provider struct {
	ListingURL string `toml:"listing_url"`
}

type Download struct {
	Destination           string `toml:"destination"`
	StagingDir            string `toml:"staging_dir"`
	OutputFormat          string `toml:"output_format"`
	FFmpegPath            string `toml:"ffmpeg_path"`
	MaxWorkers            int    `toml:"max_workers"`
	MaxConcurrentSegments int    `toml:"max_concurrent_segments"`
	MaxAttemptsPerSegment int    `toml:"max_attempts_per_segment"`
	SegmentTimeoutSeconds int    `toml:"segment_timeout_seconds"`
}

type Logging struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:   "127.0.0.1:8080",
			DBPath: "vodfetch.db",
		},
		Provider: Provider{
			ListingURL: "https://api.example.com",
		},
		Download: Download{
			Destination:           "videos",
			OutputFormat:          "mp4",
			FFmpegPath:            "ffmpeg",
			MaxWorkers:            2,
			MaxConcurrentSegments: 4,
			MaxAttemptsPerSegment: 3,
			SegmentTimeoutSeconds: 30,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vodfetch/config.toml")
}

// Load reads the config at path, or the default location when path is empty.
// A missing file is not an error: defaults plus env overrides apply.
func Load(path string) (Config, string, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return Config{}, "", err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return Config{}, "", fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return Config{}, "", fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, resolved, nil
}

func (c *Config) applyEnv() {
	setStr(&c.Server.Addr, "VODFETCH_ADDR")
	setStr(&c.Server.DBPath, "VODFETCH_DB_PATH")
	setStr(&c.Provider.ListingURL, "VODFETCH_LISTING_URL")
	setStr(&c.Download.Destination, "VODFETCH_DESTINATION")
	setStr(&c.Download.StagingDir, "VODFETCH_STAGING_DIR")
	setStr(&c.Download.OutputFormat, "VODFETCH_OUTPUT_FORMAT")
	setStr(&c.Download.FFmpegPath, "VODFETCH_FFMPEG_PATH")
	setInt(&c.Download.MaxWorkers, "VODFETCH_MAX_WORKERS")
	setInt(&c.Download.MaxConcurrentSegments, "VODFETCH_MAX_CONCURRENT_SEGMENTS")
	setInt(&c.Download.MaxAttemptsPerSegment, "VODFETCH_MAX_ATTEMPTS")
	setStr(&c.Logging.Level, "VODFETCH_LOG_LEVEL")
}

func (c Config) SegmentTimeout() time.Duration {
	if c.Download.SegmentTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Download.SegmentTimeoutSeconds) * time.Second
}

func setStr(dst *string, key string) {
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

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		def, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = def
	} else {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		path = expanded
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return path, true, nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
