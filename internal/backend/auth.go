package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/model"
)

// AccountIdentity はIdPアカウントに紐付く認証手段を表す。
// サインアップ直後にidentitiesが0件の場合、メール確認待ちを意味する。
type AccountIdentity struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

// Account はIdP側のアカウント情報を表す。
// アプリケーションのユーザーレコード（model.User）とは別物で、
// IDのみが1対1で対応する。
type Account struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	UserMetadata map[string]any    `json:"user_metadata"`
	Identities   []AccountIdentity `json:"identities"`
}

// MetadataUsername はサインアップ時にIdPへ預けたusernameメタデータを返す。
// 未設定の場合は空文字を返す。
func (a *Account) MetadataUsername() string {
	if a.UserMetadata == nil {
		return ""
	}
	if v, ok := a.UserMetadata["username"].(string); ok {
		return v
	}
	return ""
}

// tokenResponse は認証APIのトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	RefreshToken string   `json:"refresh_token"`
	User         *Account `json:"user"`
}

// signupResponse はサインアップエンドポイントのレスポンス。
// メール確認が有効な場合はアカウントがトップレベルに、
// 自動確認の場合はセッションとしてuserフィールドに入る。
type signupResponse struct {
	Account
	User *Account `json:"user"`
}

// account はレスポンス形式の揺れを吸収してアカウントを返す。
func (r *signupResponse) account() *Account {
	if r.User != nil {
		return r.User
	}
	if r.Account.ID != "" {
		a := r.Account
		return &a
	}
	return nil
}

// AuthClient はIdP（認証API）のクライアント。
// ブラウザ版SDKと同様に、取得したトークンバンドルをkvstoreへ永続化し、
// 次回起動時にCurrentSessionで復元する。
type AuthClient struct {
	c   *Client
	kv  kvstore.Store
	now func() time.Time
}

// NewAuthClient はAuthClientの新しいインスタンスを生成する。
func NewAuthClient(c *Client, kv kvstore.Store) *AuthClient {
	return &AuthClient{
		c:   c,
		kv:  kv,
		now: time.Now,
	}
}

// SignInWithPassword はパスワードグラントでサインインし、セッションを永続化して返す。
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *Account, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode sign in request: %w", err)
	}

	respBody, status, err := a.c.do(ctx, request{
		endpoint: "auth.token",
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"password"}},
		body:     body,
	})
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, classifyAuthError(status, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.User == nil {
		return nil, nil, fmt.Errorf("no user returned from authentication")
	}

	session := a.sessionFromToken(&tr)
	if err := a.persistSession(session); err != nil {
		// 永続化失敗はセッション自体を無効にしない（次回起動で再ログインが必要になるだけ）
		a.c.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}

	return session, tr.User, nil
}

// SignUp はアカウントを登録する。セッションは発行しない。
// 返されたアカウントのidentitiesが0件の場合、メール確認待ちを意味する
// （呼び出し元がNewConfirmationRequiredErrorへ変換する）。
func (a *AuthClient) SignUp(ctx context.Context, email, password, username, redirectTo string) (*Account, error) {
	body, err := json.Marshal(map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"username": username},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign up request: %w", err)
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	respBody, status, err := a.c.do(ctx, request{
		endpoint: "auth.signup",
		method:   http.MethodPost,
		path:     "/auth/v1/signup",
		query:    query,
		body:     body,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, classifyAuthError(status, respBody)
	}

	var sr signupResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse sign up response: %w", err)
	}
	account := sr.account()
	if account == nil {
		return nil, fmt.Errorf("no account returned from sign up")
	}

	return account, nil
}

// SignOut はIdPのセッションを失効させ、永続化されたトークンバンドルを破棄する。
// IdP側の失効に失敗した場合、ローカルの永続化状態は変更しない。
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	respBody, status, err := a.c.do(ctx, request{
		endpoint:    "auth.logout",
		method:      http.MethodPost,
		path:        "/auth/v1/logout",
		accessToken: accessToken,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return classifyAuthError(status, respBody)
	}

	if err := a.kv.Delete(kvstore.KeyAuthSession); err != nil {
		a.c.logger.Warn("failed to clear persisted session", slog.String("error", err.Error()))
	}
	return nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得し、永続化して返す。
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, *Account, error) {
	body, err := json.Marshal(map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	respBody, status, err := a.c.do(ctx, request{
		endpoint: "auth.token",
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"refresh_token"}},
		body:     body,
	})
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, classifyAuthError(status, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.User == nil {
		return nil, nil, fmt.Errorf("no user returned from token refresh")
	}

	session := a.sessionFromToken(&tr)
	if err := a.persistSession(session); err != nil {
		a.c.logger.Warn("failed to persist session", slog.String("error", err.Error()))
	}

	return session, tr.User, nil
}

// CurrentSession は永続化されたセッションを復元する。
// セッションが存在しない場合は(nil, nil, nil)を返す。
// 期限切れの場合はリフレッシュを試み、失敗したら永続化状態を破棄して
// セッションなしとして扱う（UIはUnauthenticatedに遷移する）。
func (a *AuthClient) CurrentSession(ctx context.Context) (*model.Session, *Account, error) {
	raw, ok, err := a.kv.Get(kvstore.KeyAuthSession)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read persisted session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil, nil
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		a.c.logger.Warn("persisted session is corrupted, discarding", slog.String("error", err.Error()))
		_ = a.kv.Delete(kvstore.KeyAuthSession)
		return nil, nil, nil
	}

	if !session.Expired(a.now()) {
		return &session, &Account{ID: session.UserID, Email: session.Email}, nil
	}

	refreshed, account, err := a.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		a.c.logger.Warn("session refresh failed, discarding persisted session",
			slog.String("error", err.Error()),
		)
		_ = a.kv.Delete(kvstore.KeyAuthSession)
		return nil, nil, nil
	}
	return refreshed, account, nil
}

// RecoverPassword はパスワードリセットメールの送信を依頼する。
func (a *AuthClient) RecoverPassword(ctx context.Context, email, redirectTo string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("failed to encode recover request: %w", err)
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	respBody, status, err := a.c.do(ctx, request{
		endpoint: "auth.recover",
		method:   http.MethodPost,
		path:     "/auth/v1/recover",
		query:    query,
		body:     body,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return classifyAuthError(status, respBody)
	}
	return nil
}

// UpdatePassword は認証済みユーザーのパスワードを更新する。
func (a *AuthClient) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	body, err := json.Marshal(map[string]string{"password": newPassword})
	if err != nil {
		return fmt.Errorf("failed to encode update password request: %w", err)
	}

	respBody, status, err := a.c.do(ctx, request{
		endpoint:    "auth.user",
		method:      http.MethodPut,
		path:        "/auth/v1/user",
		accessToken: accessToken,
		body:        body,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return classifyAuthError(status, respBody)
	}
	return nil
}

// sessionFromToken はトークンレスポンスからセッションを組み立てる。
// 有効期限はアクセストークン（JWT）のexpクレームを優先し、
// 取れない場合はexpires_inから計算する。署名検証はクライアントでは行えない。
func (a *AuthClient) sessionFromToken(tr *tokenResponse) *model.Session {
	expiresAt, ok := accessTokenExpiry(tr.AccessToken)
	if !ok {
		expiresAt = a.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return &model.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    expiresAt,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}
}

// persistSession はセッションをkvstoreへ保存する。
func (a *AuthClient) persistSession(session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return a.kv.Set(kvstore.KeyAuthSession, string(data))
}

// accessTokenExpiry はアクセストークンのexpクレームを署名検証なしで読み取る。
func accessTokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
