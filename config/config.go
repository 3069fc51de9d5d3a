package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvPathVar        = "HOLDSENSE_ENV"
	DefaultHotkey     = "ctrl+alt"
	DefaultSidecarURL = "http://127.0.0.1:8765"
)

type LoadOptions struct {
	CacheDirOverride   string
	SidecarURLOverride string
}

type Config struct {
	Hotkey            string
	DwellMS           int
	ReuseWindowSec    int
	SnapshotTTLSec    int
	MaxCaptureDirs    int
	MaxCaptureEdge    int
	MinSelectionPx    int
	CancelThresholdPx int
	SidecarURL        string
	VisionEnabled     bool
	NativeHook        bool
	EnableFileLogging bool
	CacheDir          string
	LogsDir           string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use HOLDSENSE_ENV env var as a path to a config file
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cacheDir := resolveCacheDir(opts)

	cfg := &Config{
		Hotkey:            getEnvWithDefault("HOLDSENSE_HOTKEY", DefaultHotkey),
		DwellMS:           getEnvIntDefault("DWELL_MS", 500),
		ReuseWindowSec:    getEnvIntDefault("REUSE_WINDOW_SEC", 5),
		SnapshotTTLSec:    getEnvIntDefault("SNAPSHOT_TTL_SEC", 300),
		MaxCaptureDirs:    getEnvIntDefault("MAX_CAPTURE_DIRS", 12),
		MaxCaptureEdge:    getEnvIntDefault("MAX_CAPTURE_EDGE", 4096),
		MinSelectionPx:    getEnvIntDefault("MIN_SELECTION_PX", 12),
		CancelThresholdPx: getEnvIntDefault("CANCEL_THRESHOLD_PX", 6),
		SidecarURL:        resolveSidecarURL(opts),
		VisionEnabled:     getEnvBoolDefault("VISION_ENABLED", true),
		NativeHook:        getEnvBoolDefault("NATIVE_HOOK", false),
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		CacheDir:          cacheDir,
		LogsDir:           getEnvWithDefault("LOGS_DIR", filepath.Join(cacheDir, "logs")),
	}

	return cfg, nil
}

// CapturesDir is where snapshot directories are written, one per capture id.
func (c *Config) CapturesDir() string {
	return filepath.Join(c.CacheDir, "captures")
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func resolveCacheDir(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.CacheDirOverride); override != "" {
		return override
	}
	if dir := strings.TrimSpace(os.Getenv("CACHE_DIR")); dir != "" {
		return dir
	}
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "holdsense")
	}
	return filepath.Join(os.TempDir(), "holdsense")
}

func resolveSidecarURL(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.SidecarURLOverride); override != "" {
		return override
	}
	return getEnvWithDefault("SIDECAR_URL", DefaultSidecarURL)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvBoolDefault(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
