package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/minmin-app/minmin/internal/secrets"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Security   SecurityConfig
	SMTP       SMTPConfig
	Expo       ExpoConfig
	Slack      SlackConfig
	Storage    StorageConfig
	Notify     NotifyConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds token signing settings. Refresh tokens use their own secret.
type JWTConfig struct {
	Secret        string //nolint:gosec // G117: JWT signing secret config
	RefreshSecret string //nolint:gosec // G117: JWT signing secret config
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimitRPS float64
	RateBurst    int
	AuthRPS      float64
	AuthBurst    int
}

// SecurityConfig holds account protection settings.
type SecurityConfig struct {
	// APIKeys are static client keys accepted in X-API-Key besides database keys.
	APIKeys           []string
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	OTPTTL            time.Duration
	IdempotencyTTL    time.Duration
	// FieldKey is a base64 AES-256 key sealing personal data columns.
	// Empty leaves them in clear.
	FieldKey string //nolint:gosec // G117: encryption key config
}

// SMTPConfig holds outgoing mail settings. An empty Host logs mails instead.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: SMTP credential config
	From     string
	Timeout  time.Duration
}

// ExpoConfig holds Expo push service settings.
type ExpoConfig struct {
	Endpoint    string
	AccessToken string
	BatchSize   int
	Timeout     time.Duration
}

// SlackConfig holds the optional staff channel mirror.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// StorageConfig holds S3-compatible object storage settings. Uploads are
// disabled when Bucket is empty.
type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string //nolint:gosec // G117: storage credential config
	UsePathStyle  bool
	PresignTTL    time.Duration
	PublicBaseURL string
}

// NotifyConfig sizes the push dispatcher.
type NotifyConfig struct {
	Workers   int
	QueueSize int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "minmin")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "minmin_dev")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.auth_rps", 2.0)
	v.SetDefault("server.auth_burst", 10)

	v.SetDefault("security.api_keys", []string{})
	v.SetDefault("security.max_failed_attempts", 5)
	v.SetDefault("security.lockout_duration", 15*time.Minute)
	v.SetDefault("security.otp_ttl", 10*time.Minute)
	v.SetDefault("security.idempotency_ttl", 24*time.Hour)
	v.SetDefault("security.field_key", "")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 1025)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@minmin.app")
	v.SetDefault("smtp.timeout", 10*time.Second)

	v.SetDefault("expo.endpoint", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("expo.access_token", "")
	v.SetDefault("expo.batch_size", 100)
	v.SetDefault("expo.timeout", 5*time.Second)

	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.channel", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.presign_ttl", 15*time.Minute)
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 256)

	v.SetDefault("self_hosted", false)
}

// Load reads configuration from an optional config file and MINMIN_*
// environment variables (MINMIN_DATABASE_HOST overrides database.host).
// Defaults are safe for local development only. In production,
// sensitive values (JWT secrets, DB password) must be set explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("minmin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/minmin")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.Load: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix("MINMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt("database.max_conns"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("jwt.secret"),
			RefreshSecret: v.GetString("jwt.refresh_secret"),
			AccessTTL:     v.GetDuration("jwt.access_ttl"),
			RefreshTTL:    v.GetDuration("jwt.refresh_ttl"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			CORSOrigins:  splitList(v.GetStringSlice("server.cors_origins")),
			RateLimitRPS: v.GetFloat64("server.rate_limit_rps"),
			RateBurst:    v.GetInt("server.rate_limit_burst"),
			AuthRPS:      v.GetFloat64("server.auth_rps"),
			AuthBurst:    v.GetInt("server.auth_burst"),
		},
		Security: SecurityConfig{
			APIKeys:           splitList(v.GetStringSlice("security.api_keys")),
			MaxFailedAttempts: v.GetInt("security.max_failed_attempts"),
			LockoutDuration:   v.GetDuration("security.lockout_duration"),
			OTPTTL:            v.GetDuration("security.otp_ttl"),
			IdempotencyTTL:    v.GetDuration("security.idempotency_ttl"),
			FieldKey:          v.GetString("security.field_key"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
			Timeout:  v.GetDuration("smtp.timeout"),
		},
		Expo: ExpoConfig{
			Endpoint:    v.GetString("expo.endpoint"),
			AccessToken: v.GetString("expo.access_token"),
			BatchSize:   v.GetInt("expo.batch_size"),
			Timeout:     v.GetDuration("expo.timeout"),
		},
		Slack: SlackConfig{
			BotToken: v.GetString("slack.bot_token"),
			Channel:  v.GetString("slack.channel"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			PresignTTL:    v.GetDuration("storage.presign_ttl"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
		},
		Notify: NotifyConfig{
			Workers:   v.GetInt("notify.workers"),
			QueueSize: v.GetInt("notify.queue_size"),
		},
		SelfHosted: v.GetBool("self_hosted"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secrets are required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("MINMIN_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("MINMIN_JWT_SECRET must be at least 32 characters")
	}
	if c.JWT.RefreshSecret == "" {
		return errors.New("MINMIN_JWT_REFRESH_SECRET is required")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		return errors.New("MINMIN_JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.RefreshSecret == c.JWT.Secret {
		return errors.New("MINMIN_JWT_REFRESH_SECRET must differ from MINMIN_JWT_SECRET")
	}

	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("MINMIN_DATABASE_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("MINMIN_DATABASE_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("MINMIN_DATABASE_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("MINMIN_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return fmt.Errorf("MINMIN_JWT_REFRESH_TTL must exceed the access TTL, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("MINMIN_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("MINMIN_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.AuthRPS <= 0 {
		return errors.New("MINMIN_SERVER_RATE_LIMIT_RPS and MINMIN_SERVER_AUTH_RPS must be positive")
	}
	if c.Security.MaxFailedAttempts < 1 {
		return fmt.Errorf("MINMIN_SECURITY_MAX_FAILED_ATTEMPTS must be >= 1, got %d", c.Security.MaxFailedAttempts)
	}
	if c.Security.LockoutDuration <= 0 {
		return fmt.Errorf("MINMIN_SECURITY_LOCKOUT_DURATION must be positive, got %s", c.Security.LockoutDuration)
	}
	if c.Security.OTPTTL < time.Minute {
		return fmt.Errorf("MINMIN_SECURITY_OTP_TTL must be at least 1m, got %s", c.Security.OTPTTL)
	}
	if c.Security.FieldKey != "" {
		if _, err := secrets.NewVaultFromBase64(c.Security.FieldKey); err != nil {
			return errors.New("MINMIN_SECURITY_FIELD_KEY must be a base64 encoded 32 byte key")
		}
	}
	if c.Expo.BatchSize < 1 || c.Expo.BatchSize > 100 {
		return fmt.Errorf("MINMIN_EXPO_BATCH_SIZE must be 1-100, got %d", c.Expo.BatchSize)
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		return errors.New("MINMIN_NOTIFY_WORKERS and MINMIN_NOTIFY_QUEUE_SIZE must be >= 1")
	}
	if c.Storage.Bucket != "" && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return errors.New("MINMIN_STORAGE_ACCESS_KEY and MINMIN_STORAGE_SECRET_KEY are required when a bucket is set")
	}

	return nil
}

// DSN returns the PostgreSQL keyword/value connection string used by pgx.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
