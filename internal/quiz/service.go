// Package quiz はクイズの出題・採点・結果確定のドメインロジックを提供する。
package quiz

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/masterie/masterie/internal/model"
)

// RowStore はクイズ処理が必要とする行ストレージ操作のインターフェース。
type RowStore interface {
	ListQuestions(ctx context.Context, token, programID, categoryID string, limit int) ([]model.Question, error)
	UpdateUser(ctx context.Context, token, id string, fields map[string]any) (*model.User, error)
	InsertUserAnswers(ctx context.Context, token string, answers []model.UserAnswer) error
	InsertQuizResult(ctx context.Context, token string, result *model.QuizResult) (*model.QuizResult, error)
	ListAchievements(ctx context.Context, token string) ([]model.Achievement, error)
	ListUserAchievements(ctx context.Context, token, userID string) ([]model.UserAchievement, error)
	InsertUserAchievement(ctx context.Context, token string, ua *model.UserAchievement) error
}

// Service はクイズセッションのライフサイクルを管理する。
type Service struct {
	rows   RowStore
	logger *slog.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewService はServiceを生成する。
func NewService(rows RowStore, logger *slog.Logger) *Service {
	return &Service{
		rows:    rows,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

// Session は進行中の1回のクイズを表す。
type Session struct {
	UserID    string
	Category  string
	Questions []model.Question

	answers   []model.UserAnswer
	correct   int
	startedAt time.Time
}

// Correct は現時点の正解数を返す。
func (qs *Session) Correct() int {
	return qs.correct
}

// Answered は解答済みの問題数を返す。
func (qs *Session) Answered() int {
	return len(qs.answers)
}

// Start はカテゴリの問題をシャッフルして取得し、クイズセッションを開始する。
// limitが正の場合、シャッフル後にその件数へ切り詰める。
func (s *Service) Start(ctx context.Context, token, userID, programID, categoryID string, limit int) (*Session, error) {
	// シャッフル前に全件取得する（サーバー側limitでは先頭の固定集合しか出題されない）
	questions, err := s.rows.ListQuestions(ctx, token, programID, categoryID, 0)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, model.NewRowNotFoundError("questions")
	}

	s.shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}

	return &Session{
		UserID:    userID,
		Category:  categoryID,
		Questions: questions,
		startedAt: s.now(),
	}, nil
}

// Answer は1問を採点し、解答記録をセッションへ積む。
// 論述式は採点対象外のため常にfalseを返す（記録は残す）。
// 戻り値は（正解か, 採点対象か）。
func (s *Service) Answer(qs *Session, question model.Question, answer string, timeSpent int) (correct, graded bool) {
	switch question.QuestionType {
	case model.QuestionTypeMultipleChoice:
		correct, graded = answer == question.CorrectAnswer, true
	case model.QuestionTypeFillIn:
		correct, graded = equalFold(answer, question.CorrectAnswer), true
	case model.QuestionTypeEssay:
		correct, graded = false, false
	}

	if correct {
		qs.correct++
	}
	qs.answers = append(qs.answers, model.UserAnswer{
		UserID:      qs.UserID,
		QuestionID:  question.ID,
		IsCorrect:   correct,
		AnswerValue: answer,
		TimeSpent:   timeSpent,
	})
	return correct, graded
}

// Summary はクイズ確定処理の結果を表す。
type Summary struct {
	Result          *model.QuizResult
	EarnedXP        int
	Level           int
	LeveledUp       bool
	UpdatedUser     *model.User
	NewAchievements []model.Achievement
}

// Finish はクイズ結果を確定する。解答記録と結果を送信し、
// XP（正解1問あたり10）を加算してレベルを再計算し、ユーザーレコードを更新する。
// 実績の授与は副次処理とし、失敗してもクイズ確定自体は失敗させない。
func (s *Service) Finish(ctx context.Context, token string, user *model.User, qs *Session) (*Summary, error) {
	result := &model.QuizResult{
		ID:             uuid.New().String(),
		UserID:         qs.UserID,
		Score:          qs.correct,
		TotalQuestions: len(qs.Questions),
		TimeTaken:      int(s.now().Sub(qs.startedAt).Seconds()),
		Category:       qs.Category,
	}

	if err := s.rows.InsertUserAnswers(ctx, token, qs.answers); err != nil {
		return nil, err
	}
	inserted, err := s.rows.InsertQuizResult(ctx, token, result)
	if err != nil {
		return nil, err
	}

	earned := qs.correct * XPPerCorrectAnswer
	newXP := user.XP + earned
	newLevel := LevelForXP(newXP)

	updated, err := s.rows.UpdateUser(ctx, token, user.ID, map[string]any{
		"xp":    newXP,
		"level": newLevel,
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Result:      inserted,
		EarnedXP:    earned,
		Level:       newLevel,
		LeveledUp:   newLevel > user.Level,
		UpdatedUser: updated,
	}

	awarded, err := s.awardAchievements(ctx, token, updated, inserted)
	if err != nil {
		s.logger.Warn("achievement awarding failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		summary.NewAchievements = awarded
	}

	s.logger.Info("quiz finished",
		slog.String("user_id", user.ID),
		slog.Int("score", qs.correct),
		slog.Int("total", len(qs.Questions)),
		slog.Int("earned_xp", earned),
	)
	return summary, nil
}

// 実績の獲得条件識別子
const (
	conditionFirstQuiz    = "first_quiz"
	conditionPerfectScore = "perfect_score"
	conditionStreak7      = "streak_7"
	conditionLevel5       = "level_5"
)

// awardAchievements は確定したクイズ結果に基づいて未獲得の実績を授与する。
// 獲得済みの実績は再授与しない。
func (s *Service) awardAchievements(ctx context.Context, token string, user *model.User, result *model.QuizResult) ([]model.Achievement, error) {
	definitions, err := s.rows.ListAchievements(ctx, token)
	if err != nil {
		return nil, err
	}
	earned, err := s.rows.ListUserAchievements(ctx, token, user.ID)
	if err != nil {
		return nil, err
	}

	earnedIDs := make(map[string]bool, len(earned))
	for _, ua := range earned {
		earnedIDs[ua.AchievementID] = true
	}

	var awarded []model.Achievement
	for _, def := range definitions {
		if earnedIDs[def.ID] || !s.conditionMet(def.Condition, user, result) {
			continue
		}
		if err := s.rows.InsertUserAchievement(ctx, token, &model.UserAchievement{
			UserID:        user.ID,
			AchievementID: def.ID,
		}); err != nil {
			return awarded, err
		}
		awarded = append(awarded, def)
		s.logger.Info("achievement awarded",
			slog.String("user_id", user.ID),
			slog.String("condition", def.Condition),
		)
	}
	return awarded, nil
}

// conditionMet は実績の獲得条件を判定する。未知の条件は常にfalse。
func (s *Service) conditionMet(condition string, user *model.User, result *model.QuizResult) bool {
	switch condition {
	case conditionFirstQuiz:
		return true // クイズを1回確定した時点で成立
	case conditionPerfectScore:
		return result.TotalQuestions > 0 && result.Score == result.TotalQuestions
	case conditionStreak7:
		return user.StreakDays >= 7
	case conditionLevel5:
		return user.Level >= 5
	}
	return false
}

// equalFold は前後の空白を無視した大文字小文字非区別の比較を行う。
func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
