package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/masterie/masterie/internal/model"
)

// RestClient は行ストレージAPI（PostgREST互換）のクライアント。
// usersテーブルへの読み書きと、ドメインテーブルの読み取りを提供する。
// 各メソッドはアクセストークンを受け取り、行レベルの権限はバックエンド側が判断する。
type RestClient struct {
	c *Client
}

// NewRestClient はRestClientの新しいインスタンスを生成する。
func NewRestClient(c *Client) *RestClient {
	return &RestClient{c: c}
}

// get は指定テーブルに対するSELECTを実行し、結果の行配列をdestへデコードする。
func (r *RestClient) get(ctx context.Context, token, table string, query url.Values, dest any) error {
	respBody, status, err := r.c.do(ctx, request{
		endpoint:    "rest." + table,
		method:      http.MethodGet,
		path:        "/rest/v1/" + table,
		query:       query,
		accessToken: token,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return classifyRestError(status, respBody)
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to parse %s rows: %w", table, err)
	}
	return nil
}

// insert は指定テーブルへのINSERTを実行する。
// destが非nilの場合はPrefer: return=representationで挿入行を受け取りデコードする。
func (r *RestClient) insert(ctx context.Context, token, table string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s insert: %w", table, err)
	}

	headers := map[string]string{"Prefer": "return=minimal"}
	if dest != nil {
		headers["Prefer"] = "return=representation"
	}

	respBody, status, err := r.c.do(ctx, request{
		endpoint:    "rest." + table,
		method:      http.MethodPost,
		path:        "/rest/v1/" + table,
		accessToken: token,
		body:        body,
		headers:     headers,
	})
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return classifyRestError(status, respBody)
	}
	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return fmt.Errorf("failed to parse %s insert response: %w", table, err)
		}
	}
	return nil
}

// patch は指定テーブルの条件一致行へのUPDATEを実行する。
func (r *RestClient) patch(ctx context.Context, token, table string, query url.Values, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s update: %w", table, err)
	}

	headers := map[string]string{"Prefer": "return=minimal"}
	if dest != nil {
		headers["Prefer"] = "return=representation"
	}

	respBody, status, err := r.c.do(ctx, request{
		endpoint:    "rest." + table,
		method:      http.MethodPatch,
		path:        "/rest/v1/" + table,
		query:       query,
		accessToken: token,
		body:        body,
		headers:     headers,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return classifyRestError(status, respBody)
	}
	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return fmt.Errorf("failed to parse %s update response: %w", table, err)
		}
	}
	return nil
}

// FindUserByID は指定IDのユーザーレコードを取得する。見つからない場合はnilを返す。
func (r *RestClient) FindUserByID(ctx context.Context, token, id string) (*model.User, error) {
	query := url.Values{
		"select": {"*"},
		"id":     {"eq." + id},
		"limit":  {"1"},
	}

	var rows []model.User
	if err := r.get(ctx, token, "users", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// InsertUser はユーザーレコードを作成し、挿入された行を返す。
func (r *RestClient) InsertUser(ctx context.Context, token string, user *model.User) (*model.User, error) {
	var rows []model.User
	if err := r.insert(ctx, token, "users", user, &rows); err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, model.NewStorageError(fmt.Sprintf("users insert returned %d rows, want 1", len(rows)))
	}
	return &rows[0], nil
}

// UpdateUser は指定IDのユーザーレコードを部分更新し、更新後の行を返す。
func (r *RestClient) UpdateUser(ctx context.Context, token, id string, fields map[string]any) (*model.User, error) {
	query := url.Values{"id": {"eq." + id}}

	var rows []model.User
	if err := r.patch(ctx, token, "users", query, fields, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, model.NewRowNotFoundError("users")
	}
	return &rows[0], nil
}

// ListCategories は全カテゴリを名前順で取得する。
func (r *RestClient) ListCategories(ctx context.Context, token string) ([]model.Category, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"name.asc"},
	}

	var rows []model.Category
	if err := r.get(ctx, token, "categories", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListQuestions は指定プログラム・カテゴリの問題を取得する。
// categoryIDが空の場合はプログラム全体から取得する。limitは0以下で無制限。
func (r *RestClient) ListQuestions(ctx context.Context, token, programID, categoryID string, limit int) ([]model.Question, error) {
	query := url.Values{
		"select":     {"*"},
		"program_id": {"eq." + programID},
	}
	if categoryID != "" {
		query.Set("topic_id", "eq."+categoryID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []model.Question
	if err := r.get(ctx, token, "questions", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAchievements は全実績定義を取得する。
func (r *RestClient) ListAchievements(ctx context.Context, token string) ([]model.Achievement, error) {
	query := url.Values{"select": {"*"}}

	var rows []model.Achievement
	if err := r.get(ctx, token, "achievements", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUserAchievements は指定ユーザーの獲得実績を実績定義付きで取得する。
func (r *RestClient) ListUserAchievements(ctx context.Context, token, userID string) ([]model.UserAchievement, error) {
	query := url.Values{
		"select":  {"*,achievement:achievements(*)"},
		"user_id": {"eq." + userID},
		"order":   {"achieved_at.desc"},
	}

	var rows []model.UserAchievement
	if err := r.get(ctx, token, "user_achievements", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertUserAchievement は実績獲得を記録する。
func (r *RestClient) InsertUserAchievement(ctx context.Context, token string, ua *model.UserAchievement) error {
	payload := map[string]any{
		"user_id":        ua.UserID,
		"achievement_id": ua.AchievementID,
	}
	return r.insert(ctx, token, "user_achievements", payload, nil)
}

// InsertUserAnswers は解答記録を一括で挿入する。
func (r *RestClient) InsertUserAnswers(ctx context.Context, token string, answers []model.UserAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.insert(ctx, token, "user_answers", answers, nil)
}

// InsertQuizResult はクイズ結果を記録し、挿入された行を返す。
func (r *RestClient) InsertQuizResult(ctx context.Context, token string, result *model.QuizResult) (*model.QuizResult, error) {
	var rows []model.QuizResult
	if err := r.insert(ctx, token, "quiz_results", result, &rows); err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, model.NewStorageError(fmt.Sprintf("quiz_results insert returned %d rows, want 1", len(rows)))
	}
	return &rows[0], nil
}

// ListQuizResults は指定ユーザーのクイズ結果を新しい順で取得する。
func (r *RestClient) ListQuizResults(ctx context.Context, token, userID string, limit int) ([]model.QuizResult, error) {
	query := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
		"order":   {"created_at.desc"},
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []model.QuizResult
	if err := r.get(ctx, token, "quiz_results", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLeaderboard はリーダーボードを上位から取得する。
func (r *RestClient) ListLeaderboard(ctx context.Context, token string, limit int) ([]model.LeaderboardEntry, error) {
	query := url.Values{
		"select": {"*"},
		"order":  {"rank.asc"},
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var rows []model.LeaderboardEntry
	if err := r.get(ctx, token, "leaderboard", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
