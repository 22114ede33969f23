package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port string
	Env  string

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int

	AccessTokenSecret  string
	RefreshTokenSecret string
	OTPTokenSecret     string
	AccessTTLSecs      int
	RefreshTTLSecs     int
	OTPTTLSecs         int
	AdminSecret        string

	RatingMin int64
	RatingMax int64

	PageLimit     int
	TopSongsLimit int

	ImageMaxBytes int64
	AudioMaxBytes int64

	GCSBucket      string
	GCSCredentials string
	MailFrom       string

	RedisAddr       string
	TopSongsTTLSecs int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DBURL:              os.Getenv("DB_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:      getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:      getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:  getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:   getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		ReadTimeoutSecs:    getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:   getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:    getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		OTPTokenSecret:     os.Getenv("OTP_TOKEN_SECRET"),
		AccessTTLSecs:      getEnvInt("ACCESS_TOKEN_TTL_SECS", 60*5),
		RefreshTTLSecs:     getEnvInt("REFRESH_TOKEN_TTL_SECS", 60*60*96),
		OTPTTLSecs:         getEnvInt("OTP_TOKEN_TTL_SECS", 60*15),
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		RatingMin:          int64(getEnvInt("RATING_MIN", 1)),
		RatingMax:          int64(getEnvInt("RATING_MAX", 5)),
		PageLimit:          getEnvInt("PAGE_LIMIT", 50),
		TopSongsLimit:      getEnvInt("TOP_SONGS_LIMIT", 10),
		ImageMaxBytes:      int64(getEnvInt("IMAGE_MAX_BYTES", 1<<20)),
		AudioMaxBytes:      int64(getEnvInt("AUDIO_MAX_BYTES", 10<<20)),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentials:     os.Getenv("GCS_CREDENTIALS_FILE"),
		MailFrom:           getEnv("MAIL_FROM", "no-reply@musiccy.app"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		TopSongsTTLSecs:    getEnvInt("TOP_SONGS_TTL_SECS", 60),
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_SECRET is required")
	}
	if cfg.OTPTokenSecret == "" {
		return Config{}, fmt.Errorf("OTP_TOKEN_SECRET is required")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.RatingMin < 0 || cfg.RatingMax <= cfg.RatingMin {
		return Config{}, fmt.Errorf("RATING_MIN/RATING_MAX must describe a non-empty range")
	}
	if cfg.PageLimit <= 0 {
		return Config{}, fmt.Errorf("PAGE_LIMIT must be positive")
	}
	if cfg.TopSongsLimit <= 0 {
		return Config{}, fmt.Errorf("TOP_SONGS_LIMIT must be positive")
	}
	if cfg.ImageMaxBytes <= 0 || cfg.AudioMaxBytes <= 0 {
		return Config{}, fmt.Errorf("upload size limits must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
