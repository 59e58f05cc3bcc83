package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/masterie/masterie/internal/model"
)

// providerErrorBody は認証APIのエラーレスポンス。
// 形式はバージョンにより揺れがある（error/error_description または code/msg/message）ため
// 全候補を受けて埋まっているものを使う。
type providerErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"` // 数値または文字列
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// rawMessage はエラーレスポンスから人間可読なメッセージを取り出す。
func (b *providerErrorBody) rawMessage() string {
	for _, m := range []string{b.ErrorDescription, b.Msg, b.Message, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// classifyAuthError は認証APIのエラーレスポンスをエラーコードに分類する。
// 既知のメッセージは定義済みコードへ、未知のものは生メッセージのまま
// AUTH_PROVIDER_ERRORとして通す。
func classifyAuthError(statusCode int, body []byte) *model.APIError {
	var eb providerErrorBody
	// ボディが壊れていても分類は継続する（ステータスのみで判断）
	_ = json.Unmarshal(body, &eb)

	raw := eb.rawMessage()
	if raw == "" {
		raw = strings.TrimSpace(string(body))
	}

	if statusCode == http.StatusTooManyRequests {
		return model.NewRateLimitedError()
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "invalid login credentials"):
		return model.NewInvalidCredentialsError()
	case strings.Contains(lower, "email not confirmed"):
		return model.NewEmailNotConfirmedError()
	case strings.Contains(lower, "rate limit"):
		return model.NewRateLimitedError()
	}

	return model.NewProviderError(raw)
}

// restErrorBody は行ストレージAPIのエラーレスポンス。
type restErrorBody struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Code    string `json:"code"`
}

// classifyRestError は行ストレージAPIのエラーレスポンスをエラーコードに分類する。
// 行ストレージのエラーは翻訳せず、生メッセージのまま表面化する。
func classifyRestError(statusCode int, body []byte) *model.APIError {
	var eb restErrorBody
	_ = json.Unmarshal(body, &eb)

	msg := eb.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	if statusCode == http.StatusNotFound {
		return model.NewRowNotFoundError(msg)
	}
	return model.NewStorageError(msg)
}
