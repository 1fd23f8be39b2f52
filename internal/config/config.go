package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/storage"
)

// BodyLimitBytes caps JSON request bodies; profiles may embed base64 images.
const BodyLimitBytes = 50 << 20

type Config struct {
	ServerAddress   string
	DataDir         string
	UploadDir       string
	MaxUploadSizeMB int64

	JWTSecret    string
	PasswordSalt string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseTable      string
	DatabaseURL        string
	MongoURI           string
	MongoDB            string

	RedisURL           string
	RateLimitPerSecond int

	RecaptchaSecret string
	CORSOrigins     []string

	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env")
	}

	addr := getEnv("SERVER_ADDRESS", "")
	if addr == "" {
		addr = ":" + getEnv("PORT", "8001")
	}

	return &Config{
		ServerAddress:   addr,
		DataDir:         getEnv("DATA_DIR", "./data"),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB: int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 10)),

		JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production"),
		PasswordSalt: getEnv("PASSWORD_SALT", "taply-salt"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseTable:      getEnv("SUPABASE_TABLE", storage.DefaultSupabaseTable),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDB:            getEnv("MONGO_DB", storage.DefaultMongoDB),

		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 20),

		RecaptchaSecret: getEnv("RECAPTCHA_SECRET", ""),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Storage returns the options storage.Open selects a backend from.
func (c *Config) Storage() storage.Options {
	return storage.Options{
		DataDir:     c.DataDir,
		SupabaseURL: c.SupabaseURL,
		SupabaseKey: c.SupabaseServiceKey,
		Table:       c.SupabaseTable,
		DatabaseURL: c.DatabaseURL,
		MongoURI:    c.MongoURI,
		MongoDB:     c.MongoDB,
	}
}

// Backend reports which store the process will use.
func (c *Config) Backend() storage.Backend {
	return c.Storage().Backend()
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", c.LogLevel).Warn("unknown log level, using info")
		log.SetLevel(log.InfoLevel)
	}
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.WithField("key", key).Warn("not an integer, using default")
		return defaultValue
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
