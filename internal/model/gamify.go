package model

import "time"

// Achievement は実績（アチーブメント）の定義を表す。
// Conditionは獲得条件の識別子（first_quiz, perfect_score 等）。
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Condition   string `json:"condition"`
}

// UserAchievement はユーザーが獲得した実績を表す。
type UserAchievement struct {
	ID            string      `json:"id,omitempty"`
	UserID        string      `json:"user_id"`
	AchievementID string      `json:"achievement_id"`
	AchievedAt    time.Time   `json:"achieved_at,omitzero"`
	Achievement   Achievement `json:"achievement,omitzero"`
}

// LeaderboardEntry はリーダーボードの1行を表す。
type LeaderboardEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Score     int    `json:"score"`
	Level     int    `json:"level"`
	Rank      int    `json:"rank"`
}
