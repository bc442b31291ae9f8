// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT / リフレッシュトークン
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Social login
	GoogleTokenInfoURL string
	GoogleClientID     string
	AppleKeysURL       string
	AppleClientID      string

	// Live room provider
	RoomAPIKey    string
	RoomAPISecret string
	RoomHost      string
	RoomTokenTTL  time.Duration

	// Vision AI
	VisionAPIKey   string
	VisionEndpoint string
	VisionModel    string
	VisionTimeout  time.Duration
	ImageFetchMax  int64

	// Analytics
	AnalyticsWebhookURL string

	// Rate Limit
	RateLimitGeneral int
	RateLimitVision  int

	// Cleanup worker
	TokenRetention  time.Duration
	RoomRetention   time.Duration
	CleanupInterval time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

const (
	defaultGoogleTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"
	defaultAppleKeysURL       = "https://appleid.apple.com/auth/keys"
	defaultVisionEndpoint     = "https://api.openai.com/v1/chat/completions"
)

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envが存在する場合は先に読み込む
// （開発環境用。設定済みの環境変数は上書きされない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはあれば読む。なくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.RoomAPIKey = os.Getenv("ROOM_API_KEY")
	if cfg.RoomAPIKey == "" {
		missing = append(missing, "ROOM_API_KEY")
	}

	cfg.RoomAPISecret = os.Getenv("ROOM_API_SECRET")
	if cfg.RoomAPISecret == "" {
		missing = append(missing, "ROOM_API_SECRET")
	}

	cfg.VisionAPIKey = os.Getenv("VISION_API_KEY")
	if cfg.VisionAPIKey == "" {
		missing = append(missing, "VISION_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	var err error
	if cfg.AccessTokenTTL, err = getEnvExpiry("ACCESS_TOKEN_EXPIRY", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getEnvExpiry("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RoomTokenTTL, err = getEnvExpiry("ROOM_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenRetention, err = getEnvExpiry("TOKEN_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RoomRetention, err = getEnvExpiry("ROOM_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.GoogleTokenInfoURL = getEnvString("GOOGLE_TOKENINFO_URL", defaultGoogleTokenInfoURL)
	cfg.GoogleClientID = getEnvString("GOOGLE_CLIENT_ID", "")
	cfg.AppleKeysURL = getEnvString("APPLE_KEYS_URL", defaultAppleKeysURL)
	cfg.AppleClientID = getEnvString("APPLE_CLIENT_ID", "")
	cfg.RoomHost = getEnvString("ROOM_HOST", "wss://localhost:7880")
	cfg.VisionEndpoint = getEnvString("VISION_ENDPOINT", defaultVisionEndpoint)
	cfg.VisionModel = getEnvString("VISION_MODEL", "gpt-4o")
	cfg.VisionTimeout = getEnvDuration("VISION_TIMEOUT", 30*time.Second)
	cfg.ImageFetchMax = getEnvInt64("IMAGE_FETCH_MAX", 10485760)
	cfg.AnalyticsWebhookURL = getEnvString("ANALYTICS_WEBHOOK_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitVision = getEnvInt("RATE_LIMIT_VISION", 10)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// ParseExpiry は有効期間文字列をtime.Durationにパースする。
// time.ParseDurationの構文に加えて "7d" のような日単位の指定を受け付ける。
func ParseExpiry(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvExpiry は日単位も受け付ける有効期間の環境変数を読み込む。
// 値が設定されていて不正な場合はエラーを返す（TTLの黙殺は事故につながるため）。
func getEnvExpiry(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := ParseExpiry(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
