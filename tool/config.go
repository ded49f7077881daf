package tool

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/moyoez/scangate/types"
)

var ConfigPath = "config.yaml" // be aware that it can be changed, default to ./config.yaml

// Environment variables that override credentials and endpoints from config.yaml.
const (
	EnvBackendURL   = "SCANGATE_BACKEND_URL"
	EnvAPIKey       = "SCANGATE_API_KEY"
	EnvServiceToken = "SCANGATE_SERVICE_TOKEN"
	EnvRedisAddr    = "SCANGATE_REDIS_ADDR"
)

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Port:     8080,
		Protocol: "http",
		NotifyWS: true,
		Backend: types.BackendConfig{
			BaseURL:        "http://127.0.0.1:9000/api/v1",
			TimeoutSeconds: 30,
			RatePerSecond:  0,
			Burst:          20,
		},
		RateLimit: types.RateLimitConfig{
			MaxRequests:          120,
			WindowMs:             60_000,
			SweepIntervalSeconds: 300, // 5 minutes
		},
		Upload: types.UploadConfig{
			SessionTTLMinutes:      24 * 60,
			ResultRetentionMinutes: 60,
			MaxChunkBytes:          10 * 1024 * 1024,
			MaxTotalChunks:         10_000,
			MaxFileSizeBytes:       0,
			SweepIntervalSeconds:   60,
		},
		Redis: types.RedisConfig{
			KeyPrefix: "scangate:ratelimit:",
		},
	}
}

// LoadConfig reads path (or ConfigPath) into a config seeded with DefaultConfig.
// A missing file is created with the defaults.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %w", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ValidateConfig rejects values the limiter and coordinator cannot work with.
func ValidateConfig(cfg *types.AppConfig) error {
	switch {
	case cfg.Port <= 0 || cfg.Port > 65535:
		return fmt.Errorf("invalid port: %d", cfg.Port)
	case cfg.Protocol != "http" && cfg.Protocol != "https":
		return fmt.Errorf("invalid protocol %q, want http or https", cfg.Protocol)
	case strings.TrimSpace(cfg.Backend.BaseURL) == "":
		return fmt.Errorf("backend.baseUrl is required")
	case cfg.RateLimit.MaxRequests <= 0:
		return fmt.Errorf("rateLimit.maxRequests must be > 0")
	case cfg.RateLimit.WindowMs <= 0:
		return fmt.Errorf("rateLimit.windowMs must be > 0")
	case cfg.Upload.SessionTTLMinutes <= 0:
		return fmt.Errorf("upload.sessionTtlMinutes must be > 0")
	case cfg.Upload.MaxChunkBytes <= 0:
		return fmt.Errorf("upload.maxChunkBytes must be > 0")
	}
	return nil
}

// LoadEnvOverrides loads envFile (if present) into the process environment and
// applies the SCANGATE_* variables on top of cfg.
func LoadEnvOverrides(envFile string, cfg *types.AppConfig) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			DefaultLogger.Warnf("Failed to load env file %s: %v", envFile, err)
		}
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv(EnvServiceToken); v != "" {
		cfg.Backend.ServiceToken = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
}

// ApplyFlagOverrides merges CLI flags into cfg; flags win over file and env.
func ApplyFlagOverrides(cfg *types.AppConfig, flags types.Config) {
	if flags.UsePort > 0 {
		cfg.Port = flags.UsePort
	}
	if flags.UseBackendURL != "" {
		cfg.Backend.BaseURL = flags.UseBackendURL
	}
	if flags.UseRedisAddr != "" {
		cfg.Redis.Addr = flags.UseRedisAddr
	}
	if flags.UseHttps {
		cfg.Protocol = "https"
	}
	if flags.SkipNotifyWS {
		cfg.NotifyWS = false
	}
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
