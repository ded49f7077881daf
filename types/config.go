package types

import "time"

// AppConfig represents the application configuration loaded from config file
type AppConfig struct {
	Port      int             `yaml:"port"`
	Protocol  string          `yaml:"protocol"`           // http | https
	CertFile  string          `yaml:"certFile,omitempty"` // only used with https
	KeyFile   string          `yaml:"keyFile,omitempty"`
	NotifyWS  bool            `yaml:"notifyWs"`
	Backend   BackendConfig   `yaml:"backend"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Upload    UploadConfig    `yaml:"upload"`
	Redis     RedisConfig     `yaml:"redis"`
}

// BackendConfig describes the external scanning API that assembles uploads.
type BackendConfig struct {
	BaseURL        string  `yaml:"baseUrl"`
	APIKey         string  `yaml:"apiKey,omitempty"`
	ServiceToken   string  `yaml:"serviceToken,omitempty"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RatePerSecond  float64 `yaml:"ratePerSecond"` // 0 disables outbound pacing
	Burst          int     `yaml:"burst"`
}

// RateLimitConfig configures the fixed-window admission check.
type RateLimitConfig struct {
	MaxRequests          int   `yaml:"maxRequests"`
	WindowMs             int64 `yaml:"windowMs"`
	SweepIntervalSeconds int   `yaml:"sweepIntervalSeconds"`
}

// UploadConfig configures upload sessions.
type UploadConfig struct {
	SessionTTLMinutes      int   `yaml:"sessionTtlMinutes"`
	ResultRetentionMinutes int   `yaml:"resultRetentionMinutes"`
	MaxChunkBytes          int64 `yaml:"maxChunkBytes"`
	MaxTotalChunks         int   `yaml:"maxTotalChunks"`
	MaxFileSizeBytes       int64 `yaml:"maxFileSizeBytes"` // 0 means unlimited
	SweepIntervalSeconds   int   `yaml:"sweepIntervalSeconds"`
}

// RedisConfig enables the shared rate-limit store when Addr is set.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// Config holds runtime overrides from CLI flags
type Config struct {
	Log           string
	UseConfigPath string
	UsePort       int
	UseBackendURL string
	UseRedisAddr  string
	UseEnvFile    string
	UseHttps      bool
	SkipNotifyWS  bool // if true, do not expose the websocket event stream
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

func (c RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c UploadConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c UploadConfig) ResultRetention() time.Duration {
	return time.Duration(c.ResultRetentionMinutes) * time.Minute
}

func (c UploadConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
