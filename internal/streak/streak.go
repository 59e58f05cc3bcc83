// Package streak はサインイン時の連続学習日数（ストリーク）の更新を提供する。
package streak

import (
	"context"
	"log/slog"
	"time"

	"github.com/masterie/masterie/internal/model"
)

// RowStore はストリーク更新が必要とする行ストレージ操作のインターフェース。
type RowStore interface {
	// FindUserByID は指定IDのユーザーレコードを取得する。見つからない場合はnilを返す。
	FindUserByID(ctx context.Context, token, id string) (*model.User, error)
	// UpdateUser は指定IDのユーザーレコードを部分更新し、更新後の行を返す。
	UpdateUser(ctx context.Context, token, id string, fields map[string]any) (*model.User, error)
}

// Service はストリーク更新のビジネスロジックを提供する。
type Service struct {
	rows   RowStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(rows RowStore, logger *slog.Logger) *Service {
	return &Service{
		rows:   rows,
		logger: logger,
		now:    time.Now,
	}
}

// Update はユーザーの連続学習日数を更新する。
// 前回ログインが今日なら据え置き、昨日なら+1、それ以外は1にリセットする。
// last_loginは判定結果に関わらず常に現在時刻で書き換える。
func (s *Service) Update(ctx context.Context, token, userID string) (*model.User, error) {
	user, err := s.rows.FindUserByID(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewRowNotFoundError("users")
	}

	now := s.now()
	streak := 1
	if user.LastLogin != nil {
		switch daysBetween(*user.LastLogin, now) {
		case 0:
			streak = user.StreakDays
		case 1:
			streak = user.StreakDays + 1
		}
	}

	updated, err := s.rows.UpdateUser(ctx, token, userID, map[string]any{
		"streak_days": streak,
		"last_login":  now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	if streak != user.StreakDays {
		s.logger.Info("streak updated",
			slog.String("user_id", userID),
			slog.Int("streak_days", streak),
		)
	}
	return updated, nil
}

// daysBetween は2時刻の暦日差をプロセスのローカルタイムで計算する。
// 時刻成分は無視し、日付のみを比較する。
func daysBetween(earlier, later time.Time) int {
	e := earlier.Local()
	l := later.Local()
	ed := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.Local)
	ld := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.Local)
	return int(ld.Sub(ed).Hours() / 24)
}
