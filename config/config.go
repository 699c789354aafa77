package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultPath is where Load looks for the JSON configuration when no path is given.
var DefaultPath = filepath.Join("config", "config.json")

// AppConfig holds file and environment driven configuration values.
// Secrets have no defaults inside code and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	SessionCookieName  string
	SessionTTLHours    int
	PostsPerPage       int
	IndexCacheSeconds  int
	RateLimitPerMinute int
	AllowedOrigins     []string
	OAuthRedirectBase  string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Page cache and short-lived tokens
	CacheBackend  string
	CachePrefix   string
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Uploaded images
	MediaBackend      string
	MediaRoot         string
	MediaURL          string
	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3PublicURL       string
	// Third-party login
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	// SMTP for password reset codes
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Gin framework configuration
	GinMode string
	GinPath string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Registration
	RegisterCaptchaEnabled bool
}

// fileConfig mirrors the grouped layout of config.json.
type fileConfig struct {
	App struct {
		AppPort            string
		JWTSecret          string
		SessionCookieName  string
		SessionTTLHours    int
		PostsPerPage       int
		IndexCacheSeconds  int
		RateLimitPerMinute int
		AllowedOrigins     []string
		OAuthRedirectBase  string
	} `json:"app"`
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
	} `json:"database"`
	Cache struct {
		Backend       string
		Prefix        string
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"cache"`
	Media struct {
		Backend           string
		Root              string
		URL               string
		S3Bucket          string
		S3Region          string
		S3AccessKeyID     string
		S3SecretAccessKey string
		S3Endpoint        string
		S3PublicURL       string
	} `json:"media"`
	OAuth struct {
		GitHubClientID     string
		GitHubClientSecret string
		GoogleClientID     string
		GoogleClientSecret string
	} `json:"oauth"`
	SMTP struct {
		SMTPHost     string
		SMTPPort     int
		SMTPUsername string
		SMTPPassword string
		SMTPFrom     string
		SMTPFromName string
		SMTPTLS      bool
	} `json:"smtp"`
	Log struct {
		Level      string
		Path       string
		GinMode    string
		GinPath    string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
	Register struct {
		CaptchaEnabled bool
	} `json:"register"`
}

// Load builds the configuration.
// Precedence: .env -> JSON file -> defaults -> environment variable overrides.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}
	if err := loadJSONConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set in config or environment")
	}
	return cfg, nil
}

// loadJSONConfig reads the grouped JSON file into out. A missing file is not an error.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var fc fileConfig
	if err := json.NewDecoder(f).Decode(&fc); err != nil {
		return err
	}

	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.SessionCookieName = fc.App.SessionCookieName
	out.SessionTTLHours = fc.App.SessionTTLHours
	out.PostsPerPage = fc.App.PostsPerPage
	out.IndexCacheSeconds = fc.App.IndexCacheSeconds
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.OAuthRedirectBase = fc.App.OAuthRedirectBase

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName

	out.CacheBackend = fc.Cache.Backend
	out.CachePrefix = fc.Cache.Prefix
	out.RedisHost = fc.Cache.RedisHost
	out.RedisPort = fc.Cache.RedisPort
	out.RedisDB = fc.Cache.RedisDB
	out.RedisPassword = fc.Cache.RedisPassword

	out.MediaBackend = fc.Media.Backend
	out.MediaRoot = fc.Media.Root
	out.MediaURL = fc.Media.URL
	out.S3Bucket = fc.Media.S3Bucket
	out.S3Region = fc.Media.S3Region
	out.S3AccessKeyID = fc.Media.S3AccessKeyID
	out.S3SecretAccessKey = fc.Media.S3SecretAccessKey
	out.S3Endpoint = fc.Media.S3Endpoint
	out.S3PublicURL = fc.Media.S3PublicURL

	out.GitHubClientID = fc.OAuth.GitHubClientID
	out.GitHubClientSecret = fc.OAuth.GitHubClientSecret
	out.GoogleClientID = fc.OAuth.GoogleClientID
	out.GoogleClientSecret = fc.OAuth.GoogleClientSecret

	out.SMTPHost = fc.SMTP.SMTPHost
	out.SMTPPort = fc.SMTP.SMTPPort
	out.SMTPUsername = fc.SMTP.SMTPUsername
	out.SMTPPassword = fc.SMTP.SMTPPassword
	out.SMTPFrom = fc.SMTP.SMTPFrom
	out.SMTPFromName = fc.SMTP.SMTPFromName
	out.SMTPTLS = fc.SMTP.SMTPTLS

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.GinMode = fc.Log.GinMode
	out.GinPath = fc.Log.GinPath
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.RegisterCaptchaEnabled = fc.Register.CaptchaEnabled
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.SessionCookieName == "" {
		c.SessionCookieName = "yatube_session"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 72
	}
	if c.PostsPerPage == 0 {
		c.PostsPerPage = 10
	}
	if c.IndexCacheSeconds == 0 {
		c.IndexCacheSeconds = 20
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "yatube"
	}
	if c.CacheBackend == "" {
		c.CacheBackend = "redis"
	}
	if c.CachePrefix == "" {
		c.CachePrefix = "yatube:"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.MediaBackend == "" {
		c.MediaBackend = "local"
	}
	if c.MediaRoot == "" {
		c.MediaRoot = "media"
	}
	if c.MediaURL == "" {
		c.MediaURL = "/media/"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":                &c.AppPort,
		"JWT_SECRET":              &c.JWTSecret,
		"SESSION_COOKIE_NAME":     &c.SessionCookieName,
		"OAUTH_REDIRECT_BASE_URL": &c.OAuthRedirectBase,
		"DB_DRIVER":               &c.DBDriver,
		"DATABASE_URI":            &c.DatabaseURI,
		"DB_HOST":                 &c.DBHost,
		"DB_PORT":                 &c.DBPort,
		"DB_USER":                 &c.DBUser,
		"DB_PASSWORD":             &c.DBPassword,
		"DB_NAME":                 &c.DBName,
		"CACHE_BACKEND":           &c.CacheBackend,
		"CACHE_PREFIX":            &c.CachePrefix,
		"REDIS_HOST":              &c.RedisHost,
		"REDIS_PASSWORD":          &c.RedisPassword,
		"MEDIA_BACKEND":           &c.MediaBackend,
		"MEDIA_ROOT":              &c.MediaRoot,
		"MEDIA_URL":               &c.MediaURL,
		"AWS_BUCKET_NAME":         &c.S3Bucket,
		"AWS_REGION":              &c.S3Region,
		"AWS_ACCESS_KEY_ID":       &c.S3AccessKeyID,
		"AWS_SECRET_ACCESS_KEY":   &c.S3SecretAccessKey,
		"AWS_ENDPOINT_URL":        &c.S3Endpoint,
		"AWS_PUBLIC_URL":          &c.S3PublicURL,
		"GITHUB_CLIENT_ID":        &c.GitHubClientID,
		"GITHUB_CLIENT_SECRET":    &c.GitHubClientSecret,
		"GOOGLE_CLIENT_ID":        &c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":    &c.GoogleClientSecret,
		"SMTP_HOST":               &c.SMTPHost,
		"SMTP_USERNAME":           &c.SMTPUsername,
		"SMTP_PASSWORD":           &c.SMTPPassword,
		"SMTP_FROM":               &c.SMTPFrom,
		"SMTP_FROM_NAME":          &c.SMTPFromName,
		"GIN_MODE":                &c.GinMode,
		"GIN_PATH":                &c.GinPath,
		"LOG_LEVEL":               &c.LogLevel,
		"LOG_PATH":                &c.LogPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SESSION_TTL_HOURS":     &c.SessionTTLHours,
		"POSTS_PER_PAGE":        &c.PostsPerPage,
		"INDEX_CACHE_SECONDS":   &c.IndexCacheSeconds,
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"SMTP_PORT":             &c.SMTPPort,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*dst = i
	}

	bools := map[string]*bool{
		"SMTP_TLS":                 &c.SMTPTLS,
		"LOG_COMPRESS":             &c.LogCompress,
		"REGISTER_CAPTCHA_ENABLED": &c.RegisterCaptchaEnabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
