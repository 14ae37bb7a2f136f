package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Portal   PortalConfig   `json:"portal"`
	Browser  BrowserConfig  `json:"browser"`
	Batch    BatchConfig    `json:"batch"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds control-surface server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// DatabaseConfig holds Postgres (Supabase) configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxConns        int           `json:"max_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl"`
}

// PortalConfig holds iTax portal configuration. The portal URL and every
// credential live here, never in code.
type PortalConfig struct {
	BaseURL            string        `json:"base_url"`
	LoginTimeout       time.Duration `json:"login_timeout"`
	DetectorTimeout    time.Duration `json:"detector_timeout"`
	MaxCaptchaAttempts int           `json:"max_captcha_attempts"`
	MaxMenuClickRetry  int           `json:"max_menu_click_retry"`
	TessdataPrefix     string        `json:"tessdata_prefix"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless       bool          `json:"headless"`
	PageTimeout    time.Duration `json:"page_timeout"`
	DownloadDir    string        `json:"download_dir"`
	WindowWidth    int           `json:"window_width"`
	WindowHeight   int           `json:"window_height"`
	NavigateRetry  int           `json:"navigate_retry"`
	DownloadWait   time.Duration `json:"download_wait"`
}

// BatchConfig holds batch orchestration configuration
type BatchConfig struct {
	ReportDir  string `json:"report_dir"`
	StartIndex int    `json:"start_index"`
	BatchSize  int    `json:"batch_size"`
}

// StorageConfig holds object storage (Supabase Storage) configuration
type StorageConfig struct {
	Endpoint   string        `json:"endpoint"`
	Bucket     string        `json:"bucket"`
	ServiceKey string        `json:"service_key"`
	Timeout    time.Duration `json:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "itax_automation"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     getEnvAsDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		Portal: PortalConfig{
			BaseURL:            getEnv("ITAX_BASE_URL", "https://itax.kra.go.ke/KRA-Portal"),
			LoginTimeout:       getEnvAsDuration("ITAX_LOGIN_TIMEOUT", 60*time.Second),
			DetectorTimeout:    getEnvAsDuration("ITAX_DETECTOR_TIMEOUT", 5*time.Second),
			MaxCaptchaAttempts: getEnvAsInt("ITAX_MAX_CAPTCHA_ATTEMPTS", 3),
			MaxMenuClickRetry:  getEnvAsInt("ITAX_MAX_MENU_CLICK_RETRY", 10),
			TessdataPrefix:     getEnv("TESSDATA_PREFIX", "/usr/share/tesseract-ocr/5/tessdata/"),
		},
		Browser: BrowserConfig{
			Headless:      getEnvAsBool("BROWSER_HEADLESS", true),
			PageTimeout:   getEnvAsDuration("BROWSER_PAGE_TIMEOUT", 45*time.Second),
			DownloadDir:   getEnv("BROWSER_DOWNLOAD_DIR", os.TempDir()),
			WindowWidth:   getEnvAsInt("BROWSER_WINDOW_WIDTH", 1920),
			WindowHeight:  getEnvAsInt("BROWSER_WINDOW_HEIGHT", 1080),
			NavigateRetry: getEnvAsInt("BROWSER_NAVIGATE_RETRY", 3),
			DownloadWait:  getEnvAsDuration("BROWSER_DOWNLOAD_WAIT", 30*time.Second),
		},
		Batch: BatchConfig{
			ReportDir:  getEnv("BATCH_REPORT_DIR", "reports"),
			StartIndex: getEnvAsInt("WORKER_START_INDEX", 0),
			BatchSize:  getEnvAsInt("WORKER_BATCH_SIZE", 0),
		},
		Storage: StorageConfig{
			Endpoint:   getEnv("STORAGE_ENDPOINT", ""),
			Bucket:     getEnv("STORAGE_BUCKET", "kra-documents"),
			ServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),
			Timeout:    getEnvAsDuration("STORAGE_TIMEOUT", 60*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 100),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   getEnvAsDuration("RATE_LIMIT_CLEANUP", 60*time.Second),
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
	}

	if cfg.Portal.BaseURL == "" {
		return nil, fmt.Errorf("ITAX_BASE_URL is required")
	}
	if cfg.Portal.MaxCaptchaAttempts < 1 {
		return nil, fmt.Errorf("ITAX_MAX_CAPTCHA_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
