package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Most fields have sensible defaults; DATABASE_URL and every mail setting
// are required, and a missing one fails the process at startup rather than
// at send time.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Mail transport
	MailAPIURL  string
	MailFrom    string
	MailTo      string
	MailTimeout time.Duration

	// Work queue redelivery policy
	MaxAttempts       int
	VisibilityTimeout time.Duration
	PropagationDelay  time.Duration

	// Worker batching
	Workers   int
	BatchSize int
	BatchWait time.Duration

	// Change feed buffer
	FeedBuffer int

	// Rate limiting: maximum mails per second per notification kind
	MailRateLimit int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Mail settings have no defaults: a pipeline that cannot notify is
	// misconfigured, and that must surface at startup.
	mailURL := os.Getenv("MAIL_API_URL")
	mailFrom := os.Getenv("MAIL_FROM")
	mailTo := os.Getenv("MAIL_TO")
	if mailURL == "" || mailFrom == "" || mailTo == "" {
		return nil, fmt.Errorf("MAIL_API_URL, MAIL_FROM and MAIL_TO are required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		MailAPIURL:  mailURL,
		MailFrom:    mailFrom,
		MailTo:      mailTo,
		MailTimeout: getDuration("MAIL_TIMEOUT", 3*time.Second),

		MaxAttempts:       getInt("QUEUE_MAX_ATTEMPTS", 3),
		VisibilityTimeout: getDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),
		PropagationDelay:  getDuration("QUEUE_PROPAGATION_DELAY", 200*time.Millisecond),

		Workers:   getInt("WORKERS", 5),
		BatchSize: getInt("BATCH_SIZE", 5),
		BatchWait: getDuration("BATCH_WAIT", 10*time.Second),

		FeedBuffer: getInt("FEED_BUFFER", 1024),

		MailRateLimit: getInt("MAIL_RATE_LIMIT", 10),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
