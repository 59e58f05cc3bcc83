// Package profile はユーザープロフィール表示まわりの補助機能を提供する。
package profile

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/masterie/masterie/internal/security"
)

// avatarTimeout はアバター取得のタイムアウト。
const avatarTimeout = 5 * time.Second

// AvatarFetcherService はアバター画像取得のインターフェース。
type AvatarFetcherService interface {
	// FetchAvatar は指定URLからアバター画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// AvatarFetcher はアバター画像取得機能の実装。
// avatar_urlはユーザーが自由に設定できる値のため、SSRF検証を通してから取得する。
type AvatarFetcher struct {
	ssrfGuard security.SSRFGuardService
	maxSize   int64
	logger    *slog.Logger
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(ssrfGuard security.SSRFGuardService, maxSize int64, logger *slog.Logger) *AvatarFetcher {
	return &AvatarFetcher{
		ssrfGuard: ssrfGuard,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// FetchAvatar は指定URLからアバター画像を取得する。
// 取得失敗時はnilデータと空MIMEを返す（表示側はデフォルトアバターへフォールバックする）。
func (f *AvatarFetcher) FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error) {
	if avatarURL == "" {
		return nil, "", nil
	}

	if err := f.ssrfGuard.ValidateURL(avatarURL); err != nil {
		f.logger.Warn("avatar fetch blocked", slog.String("url", avatarURL), slog.String("error", err.Error()))
		return nil, "", nil
	}

	client := f.ssrfGuard.NewSafeClient(avatarTimeout, f.maxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		f.logger.Warn("avatar fetch request build failed", slog.String("url", avatarURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Masterie/1.0 Go Client")

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Warn("avatar fetch failed", slog.String("url", avatarURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("avatar fetch unexpected status", slog.String("url", avatarURL), slog.Int("status", resp.StatusCode))
		return nil, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		f.logger.Warn("avatar fetch read failed", slog.String("url", avatarURL), slog.String("error", err.Error()))
		return nil, "", nil
	}
	if int64(len(body)) > f.maxSize {
		f.logger.Warn("avatar exceeds size limit", slog.String("url", avatarURL), slog.Int("size", len(body)))
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		f.logger.Warn("avatar is not an image", slog.String("url", avatarURL), slog.String("mime_type", mimeType))
		return nil, "", nil
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ AvatarFetcherService = (*AvatarFetcher)(nil)
