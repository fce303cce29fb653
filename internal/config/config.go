// Package config loads the process configuration from environment
// variables, honoring a local .env file when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/camfeed/camfeed/internal/overlay"
	"github.com/camfeed/camfeed/pkg/types"
)

// Defaults match the capture tool this service replaces.
const (
	DefaultDevice       = "/dev/video0"
	DefaultWidth        = 1280
	DefaultHeight       = 720
	DefaultFPS          = 20
	DefaultFourCC       = "YUYV"
	DefaultOverlayPos   = "tl"
	DefaultOverlayScale = 3
	DefaultHTTPAddr     = ":8081"
	DefaultMetricsAddr  = ":9090"
	DefaultRecordPath   = "./recordings"
	DefaultLogLevel     = "info"
	DefaultSTUNServer   = "stun:stun.l.google.com:19302"
	DefaultMaxClients   = 10
)

// Config is the resolved runtime configuration.
type Config struct {
	Device       string
	Width        int
	Height       int
	FPS          int
	FourCC       string
	Format       types.PixelFormat
	OverlayPos   overlay.Position
	OverlayScale int
	HTTPAddr     string
	MetricsAddr  string
	RecordPath   string
	LogLevel     string
	STUNServer   string
	MaxClients   int
}

// FromEnv resolves the configuration from the environment. A .env
// file in the working directory is loaded first if it exists. Invalid
// values are setup errors: the caller must not proceed.
func FromEnv() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := Config{
		Device:      envStr("CAM_DEVICE", DefaultDevice),
		FourCC:      envStr("CAM_FOURCC", DefaultFourCC),
		HTTPAddr:    envStr("HTTP_ADDR", DefaultHTTPAddr),
		MetricsAddr: envStr("METRICS_ADDR", DefaultMetricsAddr),
		RecordPath:  envStr("RECORD_PATH", DefaultRecordPath),
		LogLevel:    envStr("LOG_LEVEL", DefaultLogLevel),
		STUNServer:  envStr("STUN_SERVER", DefaultSTUNServer),
		OverlayPos:  overlay.ParsePosition(envStr("TIMESTAMP_POS", DefaultOverlayPos)),
	}
	cfg.Format = types.ParsePixelFormat(cfg.FourCC)

	var err error
	if cfg.Width, err = envInt("CAM_WIDTH", DefaultWidth); err != nil {
		return Config{}, err
	}
	if cfg.Height, err = envInt("CAM_HEIGHT", DefaultHeight); err != nil {
		return Config{}, err
	}
	if cfg.FPS, err = envInt("CAM_FPS", DefaultFPS); err != nil {
		return Config{}, err
	}
	if cfg.OverlayScale, err = envInt("TIMESTAMP_SCALE", DefaultOverlayScale); err != nil {
		return Config{}, err
	}
	if cfg.MaxClients, err = envInt("MAX_CLIENTS", DefaultMaxClients); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("frame size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		return fmt.Errorf("frame size %dx%d must be even for chroma subsampling", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("frame rate %d must be positive", c.FPS)
	}
	if c.OverlayScale <= 0 {
		return fmt.Errorf("overlay scale %d must be positive", c.OverlayScale)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max clients %d must be positive", c.MaxClients)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}
