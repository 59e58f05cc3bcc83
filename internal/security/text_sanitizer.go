package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はHTML断片を端末表示用の平文に変換するインターフェースを定義する。
// カテゴリのアイコンや問題文・解説はバックエンドからHTML断片として届くため、
// 表示前に必ずこのサービスを通す。
type TextSanitizerService interface {
	// SanitizeText はHTML断片からすべてのタグを除去し、平文を返す。
	// HTMLエンティティはデコードし、連続する空白は1つにまとめる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(rawHTML string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// 許可タグは一切なし。script/style/svg等はタグごと除去され、テキストのみ残る。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はHTML断片からすべてのタグを除去し、平文を返す。
func (s *textSanitizer) SanitizeText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	stripped := s.policy.Sanitize(rawHTML)

	// bluemondayは除去後のテキストをHTMLエスケープした状態で返すためデコードする
	decoded := html.UnescapeString(stripped)

	// タグ除去で生じた連続空白・改行を1スペースにまとめる
	return strings.Join(strings.Fields(decoded), " ")
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
