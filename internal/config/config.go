package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smsgate/internal/logger"
	"gopkg.in/yaml.v3"
)

// ErrMissingRequired is returned by Validate when a required setting is empty.
var ErrMissingRequired = errors.New("config: required setting missing")

// loadEnv reads .env outside production (containers get their config from the environment only).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		f, err := os.Open(dir + "/.env")
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		idx := strings.LastIndex(parent, "/")
		if idx <= 0 {
			return
		}
		dir = parent[:idx]
	}
}

// loadEnvFrom sets KEY=VALUE pairs that are not already present in the environment.
func loadEnvFrom(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// TwilioConfig holds the Verify API credentials.
type TwilioConfig struct {
	AccountSID       string
	AuthToken        string
	VerifyServiceSID string
}

// RedisConfig is the session, flash and OTP store.
type RedisConfig struct {
	URL string
}

// DatabaseConfig enables the upload audit log. Empty URL disables it.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// SMTPConfig is used by the local gateway in -dev to deliver codes by email.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string

	// DevMailbox receives every code issued by the local gateway.
	DevMailbox string
}

// S3Config is used when UploadBackend is "s3".
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Config holds every setting of the web service.
// Precedence: environment > YAML file > defaults.
type Config struct {
	ServerAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	UploadDir     string
	UploadBackend string
	MaxUploadSize int64
	S3            S3Config

	SessionCookie string
	SessionTTL    time.Duration
	SecureCookies bool

	// Users maps a login identifier to the phone number codes are sent to.
	Users map[string]string

	RateLimitPerMinute int
	CORSAllowedOrigins string
	// TrustedProxies lists the CIDRs allowed to set the client address through X-Forwarded-For.
	TrustedProxies string
	LogLevel       string

	Twilio   TwilioConfig
	Redis    RedisConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
}

// DBMaxConnections returns the pool size, defaulting to 10.
func (c *Config) DBMaxConnections() int {
	if c.Database.MaxConnections <= 0 {
		return 10
	}
	return c.Database.MaxConnections
}

// yamlConfig is the on-disk shape of config/web.yaml.
type yamlConfig struct {
	ServerAddr         string            `yaml:"server_addr"`
	ReadTimeout        int               `yaml:"read_timeout"`
	WriteTimeout       int               `yaml:"write_timeout"`
	IdleTimeout        int               `yaml:"idle_timeout"`
	UploadDir          string            `yaml:"upload_dir"`
	UploadBackend      string            `yaml:"upload_backend"`
	MaxUploadSizeMB    int               `yaml:"max_upload_size_mb"`
	S3                 S3Config          `yaml:"s3"`
	SessionCookie      string            `yaml:"session_cookie"`
	SessionTTLMinutes  int               `yaml:"session_ttl_minutes"`
	SecureCookies      bool              `yaml:"secure_cookies"`
	Users              map[string]string `yaml:"users"`
	RateLimitPerMinute int               `yaml:"rate_limit_per_minute"`
	CORSAllowedOrigins string            `yaml:"cors_allowed_origins"`
	TrustedProxies     string            `yaml:"trusted_proxies"`
	LogLevel           string            `yaml:"log_level"`
}

func defaults() yamlConfig {
	return yamlConfig{
		ServerAddr:         ":8080",
		ReadTimeout:        15,
		WriteTimeout:       30,
		IdleTimeout:        60,
		UploadDir:          "./data/uploads",
		UploadBackend:      "disk",
		MaxUploadSizeMB:    20,
		SessionCookie:      "smsgate_session",
		SessionTTLMinutes:  30,
		RateLimitPerMinute: 30,
		LogLevel:           "info",
	}
}

// Load reads .env (if any), then the YAML file, then the environment.
func Load() *Config {
	loadEnv()
	yc := defaults()
	for _, path := range []string{os.Getenv("CONFIG_PATH"), "config/web.yaml"} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := parseYAML(data, &yc); err != nil {
			logger.Errorf("config: %v (using defaults)", err)
		} else {
			logger.Infof("config: loaded %s", path)
		}
		break
	}
	return fromYAML(yc)
}

func parseYAML(data []byte, yc *yamlConfig) error {
	if err := yaml.Unmarshal(data, yc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// fromYAML applies environment overrides on top of yc.
func fromYAML(yc yamlConfig) *Config {
	users := make(map[string]string, len(yc.Users)+1)
	for id, phone := range yc.Users {
		users[id] = phone
	}
	if id, phone := os.Getenv("YOUR_USERNAME"), os.Getenv("YOUR_PHONE_NUMBER"); id != "" && phone != "" {
		users[id] = phone
	}

	uploadDir := envStr("UPLOAD_DIRECTORY", yc.UploadDir)
	uploadDir = envStr("UPLOAD_DIR", uploadDir)

	return &Config{
		ServerAddr:    envStr("SERVER_ADDR", yc.ServerAddr),
		ReadTimeout:   time.Duration(envInt("READ_TIMEOUT", yc.ReadTimeout)) * time.Second,
		WriteTimeout:  time.Duration(envInt("WRITE_TIMEOUT", yc.WriteTimeout)) * time.Second,
		IdleTimeout:   time.Duration(envInt("IDLE_TIMEOUT", yc.IdleTimeout)) * time.Second,
		UploadDir:     uploadDir,
		UploadBackend: envStr("UPLOAD_BACKEND", yc.UploadBackend),
		MaxUploadSize: int64(envInt("MAX_UPLOAD_SIZE_MB", yc.MaxUploadSizeMB)) << 20,
		S3: S3Config{
			Bucket:    envStr("S3_BUCKET", yc.S3.Bucket),
			Region:    envStr("S3_REGION", yc.S3.Region),
			Endpoint:  envStr("S3_ENDPOINT", yc.S3.Endpoint),
			Prefix:    envStr("S3_PREFIX", yc.S3.Prefix),
			AccessKey: envStr("S3_ACCESS_KEY", ""),
			SecretKey: envStr("S3_SECRET_KEY", ""),
		},
		SessionCookie:      envStr("SESSION_COOKIE", yc.SessionCookie),
		SessionTTL:         time.Duration(envInt("SESSION_TTL_MINUTES", yc.SessionTTLMinutes)) * time.Minute,
		SecureCookies:      envBool("SECURE_COOKIES", yc.SecureCookies),
		Users:              users,
		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", yc.RateLimitPerMinute),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		TrustedProxies:     envStr("TRUSTED_PROXIES", yc.TrustedProxies),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
		Twilio: TwilioConfig{
			AccountSID:       envStr("TWILIO_ACCOUNT_SID", ""),
			AuthToken:        envStr("TWILIO_AUTH_TOKEN", ""),
			VerifyServiceSID: envStr("VERIFY_SERVICE_SID", ""),
		},
		Redis: RedisConfig{URL: envStr("REDIS_URL", "redis://localhost:6379")},
		Database: DatabaseConfig{
			URL:            envStr("DATABASE_URL", ""),
			MaxConnections: envInt("DB_MAX_CONNECTIONS", 10),
		},
		SMTP: SMTPConfig{
			Host:       envStr("SMTP_HOST", ""),
			Port:       envInt("SMTP_PORT", 587),
			Username:   envStr("SMTP_USERNAME", ""),
			Password:   envStr("SMTP_PASSWORD", ""),
			FromEmail:  envStr("SMTP_FROM_EMAIL", ""),
			FromName:   envStr("SMTP_FROM_NAME", "Verification"),
			DevMailbox: envStr("SMTP_DEV_MAILBOX", ""),
		},
	}
}

// Validate checks the settings the service cannot start without.
// Twilio credentials are not required in dev mode, where codes are issued locally.
func (c *Config) Validate(dev bool) error {
	var missing []string
	if !dev {
		if c.Twilio.AccountSID == "" {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if c.Twilio.AuthToken == "" {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if c.Twilio.VerifyServiceSID == "" {
			missing = append(missing, "VERIFY_SERVICE_SID")
		}
	}
	switch c.UploadBackend {
	case "disk", "":
		if c.UploadDir == "" {
			missing = append(missing, "UPLOAD_DIRECTORY")
		}
	case "s3":
		if c.S3.Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	default:
		return fmt.Errorf("config: unknown upload backend %q", c.UploadBackend)
	}
	if len(c.Users) == 0 {
		missing = append(missing, "YOUR_USERNAME", "YOUR_PHONE_NUMBER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
