package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBMaxConns         int
	JWTSecret          string
	GeoIPDBPath        string
	CORSAllowedOrigins []string

	ReplicateAPIToken   string
	ReplicateBaseURL    string
	ReplicateModelsFile string
	JobPollInterval     time.Duration
	JobMaxPollAttempts  int

	StorageDriver    string
	StoragePath      string
	StorageBaseURL   string
	S3Endpoint       string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3UseSSL         bool
	S3PublicBaseURL  string
	ResultFetchHosts []string

	RedisAddr   string
	RedisDB     int
	TransferTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	OrphanCheckEnabled  bool
	OrphanCheckInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		ReplicateAPIToken:   strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:    getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelsFile: os.Getenv("REPLICATE_MODELS_FILE"),
		JobPollInterval:     time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 2)),
		JobMaxPollAttempts:  getEnvInt("JOB_MAX_POLL_ATTEMPTS", 120),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", "filesystem")),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Bucket:        getEnv("S3_BUCKET", "temp-images"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:        getEnvBool("S3_USE_SSL", true),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		TransferTTL: time.Second * time.Duration(getEnvInt("TRANSFER_TTL_SECONDS", 900)),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "editor.jobs"),

		OrphanCheckEnabled:  getEnvBool("ORPHAN_CHECK_ENABLED", false),
		OrphanCheckInterval: time.Second * time.Duration(getEnvInt("ORPHAN_CHECK_INTERVAL_SECONDS", 60)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case "filesystem":
	case "s3":
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT is required for the s3 storage driver")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.JobPollInterval <= 0 {
		cfg.JobPollInterval = 2 * time.Second
	}
	if cfg.JobMaxPollAttempts <= 0 {
		cfg.JobMaxPollAttempts = 120
	}

	cfg.ResultFetchHosts = mergeHosts(
		[]string{hostOf(cfg.StorageBaseURL), hostOf(cfg.S3PublicBaseURL), "replicate.delivery"},
		splitList(os.Getenv("RESULT_FETCH_HOST_ALLOWLIST")),
	)

	return cfg, nil
}

// JobStaleAfter is how long a non-terminal job may go without a poll before
// it is treated as abandoned by a stopped process: one full polling lifetime,
// and never less than five minutes.
func (c *Config) JobStaleAfter() time.Duration {
	d := c.JobPollInterval * time.Duration(c.JobMaxPollAttempts)
	if d < 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// mergeHosts returns the non-empty hosts in first-seen order without duplicates.
func mergeHosts(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, h := range list {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}
