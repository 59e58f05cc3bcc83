package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	BackendURL string
	BackendKey string

	// RedirectURL はメール確認・パスワードリセットのリンク先ベースURL。
	RedirectURL string

	// HTTP
	HTTPTimeout time.Duration

	// Rate Limit（バックエンドへの送信レート）
	RateLimitPerSec float64
	RateLimitBurst  int

	// Storage（ローカル状態の保存先ディレクトリ）
	StateDir string

	// Quiz
	QuizQuestionLimit int

	// Avatar
	AvatarMaxSize int64

	// Metrics（空文字の場合はメトリクスサーバーを起動しない）
	MetricsAddr string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BackendURL = os.Getenv("MASTERIE_BACKEND_URL")
	if cfg.BackendURL == "" {
		missing = append(missing, "MASTERIE_BACKEND_URL")
	}

	cfg.BackendKey = os.Getenv("MASTERIE_BACKEND_KEY")
	if cfg.BackendKey == "" {
		missing = append(missing, "MASTERIE_BACKEND_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedirectURL = getEnvString("MASTERIE_REDIRECT_URL", "")
	cfg.HTTPTimeout = getEnvDuration("MASTERIE_HTTP_TIMEOUT", 10*time.Second)
	cfg.RateLimitPerSec = getEnvFloat("MASTERIE_RATE_LIMIT", 10)
	cfg.RateLimitBurst = getEnvInt("MASTERIE_RATE_BURST", 20)
	cfg.StateDir = getEnvString("MASTERIE_STATE_DIR", defaultStateDir())
	cfg.QuizQuestionLimit = getEnvInt("MASTERIE_QUIZ_QUESTIONS", 10)
	cfg.AvatarMaxSize = getEnvInt64("MASTERIE_AVATAR_MAX_SIZE", 2097152)
	cfg.MetricsAddr = getEnvString("MASTERIE_METRICS_ADDR", "")

	return cfg, nil
}

// defaultStateDir はローカル状態のデフォルト保存先を返す。
// ホームディレクトリが取得できない環境ではカレントディレクトリ配下を使う。
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".masterie"
	}
	return filepath.Join(home, ".masterie")
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
