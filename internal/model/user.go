// Package model はドメインモデルを定義する。
package model

import "time"

// User はアプリケーションのユーザーレコードを表す。
// IDは外部IdPのアカウントIDと1対1で一致する。
// IdP側にアカウントが存在しても本レコードが存在しない場合があり、
// セッションを観測した各エントリポイントが lookup-or-create で整合性を回復する。
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	Level           int        `json:"level"`
	XP              int        `json:"xp"`
	StreakDays      int        `json:"streak_days"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	SelectedProgram string     `json:"selected_program,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitzero"`
}

// Session はIdPが発行したトークンバンドルを表す。
// メモリとkvstoreにのみ保持し、サインアウトで破棄される。
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// Expired はセッションのアクセストークンが期限切れかどうかを返す。
// 時計ずれを考慮して30秒のマージンを取る。
func (s *Session) Expired(now time.Time) bool {
	return !now.Add(30 * time.Second).Before(s.ExpiresAt)
}

// Program は学習プログラム（学習トラック）を表す。
type Program struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsAvailable bool   `json:"is_available"`
}
