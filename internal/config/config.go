package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	Database struct {
		Host           string        `mapstructure:"host"`
		Port           int           `mapstructure:"port"`
		User           string        `mapstructure:"user"`
		Password       string        `mapstructure:"password"`
		Name           string        `mapstructure:"name"`
		MaxConns       int           `mapstructure:"max_conns"`
		MaxConnIdle    time.Duration `mapstructure:"max_conn_idle"`
		ConnectBudget  time.Duration `mapstructure:"connect_budget"`
	} `mapstructure:"database"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Agent struct {
		ConfigDir        string        `mapstructure:"config_dir"`  // well-known path, default "pos-agent"
		BinaryPath       string        `mapstructure:"binary_path"` // agent executable; empty = re-exec self with --agent
		BackendURL       string        `mapstructure:"backend_url"`
		PrintServiceURL  string        `mapstructure:"print_service_url"` // local silent-print service seen by agents
		HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
		MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
		StaleRestartWait time.Duration `mapstructure:"stale_restart_wait"`
		CrashRestartWait time.Duration `mapstructure:"crash_restart_wait"`
	} `mapstructure:"agent"`

	Print struct {
		MaxQueueDepth int           `mapstructure:"max_queue_depth"`
		AckTimeout    time.Duration `mapstructure:"ack_timeout"`
		MaxAttempts   int           `mapstructure:"max_attempts"`
	} `mapstructure:"print"`

	RateLimit struct {
		Enabled       bool `mapstructure:"enabled"`
		Unauth        int  `mapstructure:"unauth"`  // per 15 min
		Auth          int  `mapstructure:"auth"`    // per 15 min
		Admin         int  `mapstructure:"admin"`   // per 15 min
		Login         int  `mapstructure:"login"`   // per 15 min, failures only
		GenericPerMin int  `mapstructure:"generic_per_min"`
	} `mapstructure:"rate_limit"`

	Razorpay struct {
		KeyID         string `mapstructure:"key_id"`
		KeySecret     string `mapstructure:"key_secret"`
		WebhookSecret string `mapstructure:"webhook_secret"`
	} `mapstructure:"razorpay"`

	Backup struct {
		Enabled   bool   `mapstructure:"enabled"`
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"backup"`
}

func Load() *Config {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")

	// Auto bind environment variables
	v.AutomaticEnv()

	// Set sensible defaults (binary works without config file)
	v.SetDefault("server.port", 8080)
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "canteen-backend")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "canteen_db")
	v.SetDefault("database.max_conns", 100)
	v.SetDefault("database.max_conn_idle", 30*time.Minute)
	v.SetDefault("database.connect_budget", 40*time.Second)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("agent.config_dir", "pos-agent")
	v.SetDefault("agent.backend_url", "ws://127.0.0.1:8080")
	v.SetDefault("agent.print_service_url", "http://127.0.0.1:5000")
	v.SetDefault("agent.heartbeat_timeout", 2*time.Minute)
	v.SetDefault("agent.monitor_interval", 30*time.Second)
	v.SetDefault("agent.stale_restart_wait", 5*time.Second)
	v.SetDefault("agent.crash_restart_wait", 10*time.Second)
	v.SetDefault("print.max_queue_depth", 1000)
	v.SetDefault("print.ack_timeout", 10*time.Second)
	v.SetDefault("print.max_attempts", 4)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.unauth", 1000)
	v.SetDefault("rate_limit.auth", 5000)
	v.SetDefault("rate_limit.admin", 10000)
	v.SetDefault("rate_limit.login", 50)
	v.SetDefault("rate_limit.generic_per_min", 100)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("config unmarshal error: %v", err)
	}

	// Override database settings from DB_* environment variables
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	// Redis overrides (K8s service env vars)
	if host := os.Getenv("REDIS_SERVICE_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if port := os.Getenv("REDIS_SERVICE_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Redis.Port = n
		}
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	// JWT secret must come from somewhere
	if cfg.JWT.Secret == "" || cfg.JWT.Secret == "${JWT_SECRET}" {
		cfg.JWT.Secret = os.Getenv("JWT_SECRET")
		if cfg.JWT.Secret == "" {
			log.Fatal("JWT_SECRET not found in environment or config file")
		}
	}

	// Razorpay config from environment
	if keyID := os.Getenv("RAZORPAY_KEY_ID"); keyID != "" {
		cfg.Razorpay.KeyID = keyID
	}
	if keySecret := os.Getenv("RAZORPAY_KEY_SECRET"); keySecret != "" {
		cfg.Razorpay.KeySecret = keySecret
	}
	if webhookSecret := os.Getenv("RAZORPAY_WEBHOOK_SECRET"); webhookSecret != "" {
		cfg.Razorpay.WebhookSecret = webhookSecret
	}

	// Backup store from environment (S3-compatible)
	if key := os.Getenv("BACKUP_ACCESS_KEY"); key != "" {
		cfg.Backup.AccessKey = key
	}
	if key := os.Getenv("BACKUP_SECRET_KEY"); key != "" {
		cfg.Backup.SecretKey = key
	}

	return &cfg
}
