// Package backend はリモートBaaS（認証API + 行ストレージAPI）のクライアントを提供する。
// 認証はGoTrue互換の /auth/v1、行ストレージはPostgREST互換の /rest/v1 を想定する。
// バックエンド自体は不透明な外部サービスとして扱い、本パッケージは
// HTTPリクエストの組み立て、送信レート制限、メトリクス記録、
// エラーの分類のみを担当する。
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/masterie/masterie/internal/metrics"
)

// userAgent は全リクエストに付与するUser-Agentヘッダー。
const userAgent = "Masterie/1.0 Go Client"

// Config はバックエンドクライアントの設定。
type Config struct {
	// BaseURL はバックエンドのベースURL（例: https://xyz.supabase.co）。
	BaseURL string
	// APIKey は公開APIキー。全リクエストのapikeyヘッダーに載せる。
	APIKey string
	// Timeout はHTTPクライアントのタイムアウト。
	Timeout time.Duration
	// RatePerSec は送信レート制限（req/sec）。0以下なら制限しない。
	RatePerSec float64
	// Burst は送信レート制限のバーストサイズ。
	Burst int
}

// Client は認証APIと行ストレージAPIが共有するHTTPトランスポート。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。
func NewClient(cfg Config, recorder metrics.Recorder, logger *slog.Logger) *Client {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		recorder:   recorder,
		logger:     logger,
	}
}

// request は1回のAPI呼び出しのパラメータを表す。
type request struct {
	endpoint    string // メトリクスのラベルに使う論理名（auth.token 等）
	method      string
	path        string // /auth/v1/token のようなベースURLからの相対パス
	query       url.Values
	accessToken string // 空ならapikeyのみで認証する
	body        []byte
	headers     map[string]string
}

// do はリクエストを送信し、レスポンスボディとステータスコードを返す。
// 送信前にレートリミッターを待ち、結果をメトリクスに記録する。
// ステータスコードの解釈（エラー分類）は呼び出し元が行う。
func (c *Client) do(ctx context.Context, r request) ([]byte, int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limiter wait cancelled: %w", err)
		}
	}

	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		bodyReader = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("apikey", c.apiKey)
	if r.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordRequestError(r.endpoint)
		c.logger.Error("backend request failed",
			slog.String("endpoint", r.endpoint),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	c.recorder.RecordRequestLatency(r.endpoint, time.Since(start))
	c.recorder.RecordRequest(r.endpoint, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.RecordRequestError(r.endpoint)
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
