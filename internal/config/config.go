package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress string
	Environment   string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FirebaseCredentialsFile string
	StorageBucket           string
	BlobDir                 string // local blob fallback when no bucket is set

	RedisURI string

	InviteSecret string

	AlertSendGridAPIKey string
	AlertFromEmail      string
	AlertToEmail        string

	PurgeBatchSize        int
	TeardownMaxConcurrent int

	AllowedOrigins []string
}

func Load() *Config {
	// Missing .env is fine in production; env vars come from the platform.
	_ = godotenv.Load()

	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   strings.ToLower(getEnv("ENV", "development")),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		StorageBucket:           getEnv("FIREBASE_STORAGE_BUCKET", ""),
		BlobDir:                 getEnv("BLOB_DIR", "./blobs"),

		RedisURI: getEnv("REDIS_URI", ""),

		InviteSecret: getEnv("INVITE_SECRET", "change-me-in-production"),

		AlertSendGridAPIKey: getEnv("ALERT_SENDGRID_API_KEY", ""),
		AlertFromEmail:      getEnv("ALERT_FROM_EMAIL", ""),
		AlertToEmail:        getEnv("ALERT_TO_EMAIL", ""),

		PurgeBatchSize:        getEnvInt("PURGE_BATCH_SIZE", 100),
		TeardownMaxConcurrent: getEnvInt("TEARDOWN_MAX_CONCURRENT", 4),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
