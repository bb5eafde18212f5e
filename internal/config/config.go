package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverLocal      = "local"
	StorageDriverCloudinary = "cloudinary"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	LogLevel               string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventChannel           string
	JWTSecret              string
	JWTTTL                 time.Duration
	BcryptCost             int
	StorageDriver          string
	StorageLocalDir        string
	StoragePublicPath      string
	MaxUploadMB            int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	KafkaBrokers           []string
	KafkaTopic             string
	NotificationKeepAlive  time.Duration
	LoginRateLimit         int
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SEKOLAH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Sekolah API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("events.channel", "sekolah")
	v.SetDefault("jwt.ttl", "1h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.public_path", "/uploads")
	v.SetDefault("storage.max_upload_mb", 10)
	v.SetDefault("cloudinary.folder", "sekolah")
	v.SetDefault("kafka.topic", "sekolah.submissions")
	v.SetDefault("notifications.keepalive", "30s")

	jwtTTL, err := parseDuration(v, "jwt.ttl")
	if err != nil {
		return Config{}, err
	}

	keepAlive, err := parseDuration(v, "notifications.keepalive")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTTTL:                 jwtTTL,
		BcryptCost:             v.GetInt("auth.bcrypt_cost"),
		StorageDriver:          strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		StorageLocalDir:        v.GetString("storage.local_dir"),
		StoragePublicPath:      v.GetString("storage.public_path"),
		MaxUploadMB:            v.GetInt("storage.max_upload_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		KafkaBrokers:           splitList(v.GetString("kafka.brokers")),
		KafkaTopic:             v.GetString("kafka.topic"),
		NotificationKeepAlive:  keepAlive,
		LoginRateLimit:         v.GetInt("auth.login_rate_limit"),
		BootstrapAdminEmail:    strings.TrimSpace(v.GetString("bootstrap.admin_email")),
		BootstrapAdminPassword: v.GetString("bootstrap.admin_password"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageDriverLocal:
		if strings.TrimSpace(cfg.StorageLocalDir) == "" {
			return Config{}, fmt.Errorf("storage local dir must be provided")
		}
	case StorageDriverCloudinary:
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return Config{}, fmt.Errorf("cloudinary credentials must be provided")
		}
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}

	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
