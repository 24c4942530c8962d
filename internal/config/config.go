package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

// Sink names accepted in SUBMISSION_SINKS.
const (
	SinkKV      = "kv"
	SinkNotion  = "notion"
	SinkArchive = "archive"
)

// JWTConfig defines issuer/secret pair for auth verification.
type JWTConfig struct {
	Issuer string
	Secret []byte
}

// Config holds runtime configuration shared across the application.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Timezone       string
	ServerLog      *logrus.Logger

	Sinks          []string
	LabelOverrides map[string]string

	KVURL       string
	KVKeyPrefix string
	KVTTL       time.Duration

	NotionToken      string
	NotionDatabaseID string

	MongoURI                 string
	MongoDatabase            string
	SubmissionCollection     string
	FailedDeliveryCollection string
	Timeout                  time.Duration

	BlobBucket        string
	BlobRegion        string
	BlobEndpoint      string
	BlobPublicBaseURL string
	BlobPublicACL     bool
	MaxUploadBytes    int64

	UploadRatePerSecond float64
	UploadBurst         int

	MessengerEndpoint  string
	DiscordDestination string
	SlackDestination   string
	MessengerTimeout   time.Duration
	AdminBaseURL       string

	JWTConfigs  []JWTConfig
	JWTAudience string
}

// Load reads .env (when present) and environment variables and returns a populated Config.
func Load() Config {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(envOrDefault("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Printf("LOG_LEVEL の解析に失敗: %v, info を使用します", err)
	}

	var jwtConfigs []JWTConfig
	if secret := strings.TrimSpace(os.Getenv("AUTH_ADMIN_JWT_SECRET")); secret != "" {
		jwtConfigs = append(jwtConfigs, JWTConfig{
			Issuer: envOrDefault("AUTH_ADMIN_JWT_ISSUER", "form-intake-admin"),
			Secret: []byte(secret),
		})
	}

	cfg := Config{
		Addr:                     envOrDefault("HTTP_ADDR", ":8080"),
		AllowedOrigins:           parseList("API_ALLOWED_ORIGINS", []string{"*"}),
		Timezone:                 envOrDefault("TIMEZONE", "UTC"),
		ServerLog:                logger,
		Sinks:                    normalizeSinks(parseList("SUBMISSION_SINKS", []string{SinkKV})),
		LabelOverrides:           parseLabelOverrides(os.Getenv("LABEL_OVERRIDES")),
		KVURL:                    strings.TrimSpace(os.Getenv("KV_URL")),
		KVKeyPrefix:              envOrDefault("KV_KEY_PREFIX", "submission:"),
		KVTTL:                    parseDuration("KV_TTL", 0, logger),
		NotionToken:              strings.TrimSpace(os.Getenv("NOTION_TOKEN")),
		NotionDatabaseID:         strings.TrimSpace(os.Getenv("NOTION_DATABASE_ID")),
		MongoURI:                 strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:            envOrDefault("MONGO_DB", "form-intake"),
		SubmissionCollection:     envOrDefault("SUBMISSION_COLLECTION", "submissions"),
		FailedDeliveryCollection: envOrDefault("FAILED_DELIVERY_COLLECTION", "failed_deliveries"),
		Timeout:                  parseDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second, logger),
		BlobBucket:               strings.TrimSpace(os.Getenv("BLOB_BUCKET")),
		BlobRegion:               envOrDefault("BLOB_REGION", "us-east-1"),
		BlobEndpoint:             strings.TrimSpace(os.Getenv("BLOB_ENDPOINT")),
		BlobPublicBaseURL:        strings.TrimSpace(os.Getenv("BLOB_PUBLIC_BASE_URL")),
		BlobPublicACL:            strings.EqualFold(strings.TrimSpace(os.Getenv("BLOB_PUBLIC_ACL")), "true"),
		MaxUploadBytes:           parseInt64("MAX_UPLOAD_BYTES", 50<<20, logger),
		UploadRatePerSecond:      parseFloat("UPLOAD_RATE_PER_SECOND", 5, logger),
		UploadBurst:              int(parseInt64("UPLOAD_BURST", 10, logger)),
		MessengerEndpoint:        strings.TrimRight(strings.TrimSpace(os.Getenv("MESSENGER_GATEWAY_URL")), "/"),
		DiscordDestination:       strings.TrimSpace(os.Getenv("MESSENGER_DISCORD_DESTINATION")),
		SlackDestination:         strings.TrimSpace(os.Getenv("MESSENGER_SLACK_DESTINATION")),
		MessengerTimeout:         parseDuration("MESSENGER_GATEWAY_TIMEOUT", 3*time.Second, logger),
		AdminBaseURL:             strings.TrimSpace(os.Getenv("ADMIN_SUBMISSION_BASE_URL")),
		JWTConfigs:               jwtConfigs,
		JWTAudience:              strings.TrimSpace(os.Getenv("AUTH_JWT_AUDIENCE")),
	}

	logger.Printf("loaded config: sinks=%v mongo=%t blob=%t messenger=%q", cfg.Sinks, cfg.MongoURI != "", cfg.BlobConfigured(), cfg.MessengerEndpoint)
	return cfg
}

// Validate checks that every enabled sink has the settings it needs.
func (c Config) Validate() error {
	if len(c.Sinks) == 0 {
		return errors.New("SUBMISSION_SINKS must name at least one sink")
	}
	var errs []error
	for _, sink := range c.Sinks {
		switch sink {
		case SinkKV:
			if c.KVURL == "" {
				errs = append(errs, errors.New("KV_URL is required when the kv sink is enabled"))
			}
		case SinkNotion:
			if c.NotionToken == "" {
				errs = append(errs, errors.New("NOTION_TOKEN is required when the notion sink is enabled"))
			}
			if c.NotionDatabaseID == "" {
				errs = append(errs, errors.New("NOTION_DATABASE_ID is required when the notion sink is enabled"))
			}
		case SinkArchive:
			if c.MongoURI == "" {
				errs = append(errs, errors.New("MONGO_URI is required when the archive sink is enabled"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q in SUBMISSION_SINKS", sink))
		}
	}
	return errors.Join(errs...)
}

// BlobConfigured reports whether uploads can be served.
func (c Config) BlobConfigured() bool {
	return c.BlobBucket != ""
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		if c.ServerLog != nil {
			c.ServerLog.Printf("タイムゾーン %s の読み込みに失敗: %v, UTC を使用します", c.Timezone, err)
		}
		return time.UTC
	}
	return loc
}

// parseLabelOverrides reads "key=Label,other_key=Other Label" on top of the defaults.
func parseLabelOverrides(raw string) map[string]string {
	overrides := make(map[string]string, len(format.DefaultLabelOverrides))
	for key, label := range format.DefaultLabelOverrides {
		overrides[key] = label
	}
	for _, pair := range strings.Split(raw, ",") {
		key, label, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		label = strings.TrimSpace(label)
		if !ok || key == "" || label == "" {
			continue
		}
		overrides[key] = label
	}
	return overrides
}

func normalizeSinks(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	sinks := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		sinks = append(sinks, value)
	}
	return sinks
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration, logger logrus.FieldLogger) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		logger.Printf("%s の解析に失敗: %v", key, err)
		return fallback
	}
	return parsed
}

func parseInt64(key string, fallback int64, logger logrus.FieldLogger) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		logger.Printf("%s の解析に失敗: %q", key, raw)
		return fallback
	}
	return parsed
}

func parseFloat(key string, fallback float64, logger logrus.FieldLogger) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		logger.Printf("%s の解析に失敗: %q", key, raw)
		return fallback
	}
	return parsed
}

func parseList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}

	if len(values) == 0 {
		return fallback
	}
	return values
}
