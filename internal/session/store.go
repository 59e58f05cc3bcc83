// Package session は認証状態とユーザーレコードを管理するストアを提供する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/masterie/masterie/internal/backend"
	"github.com/masterie/masterie/internal/kvstore"
	"github.com/masterie/masterie/internal/model"
)

// AuthProvider はストアが必要とするIdP操作のインターフェース。
type AuthProvider interface {
	// SignInWithPassword はパスワードグラントでサインインする。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *backend.Account, error)
	// SignUp はアカウントを登録する。identitiesが0件の場合はメール確認待ち。
	SignUp(ctx context.Context, email, password, username, redirectTo string) (*backend.Account, error)
	// SignOut はIdPのセッションを失効させる。
	SignOut(ctx context.Context, accessToken string) error
	// CurrentSession は永続化されたセッションを復元する。存在しなければ(nil, nil, nil)。
	CurrentSession(ctx context.Context) (*model.Session, *backend.Account, error)
	// RecoverPassword はパスワードリセットメールの送信を依頼する。
	RecoverPassword(ctx context.Context, email, redirectTo string) error
	// UpdatePassword は認証済みユーザーのパスワードを更新する。
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// UserRowStore はストアが必要とするユーザーレコード操作のインターフェース。
type UserRowStore interface {
	// FindUserByID は指定IDのユーザーレコードを取得する。見つからない場合はnilを返す。
	FindUserByID(ctx context.Context, token, id string) (*model.User, error)
	// InsertUser はユーザーレコードを作成し、挿入された行を返す。
	InsertUser(ctx context.Context, token string, user *model.User) (*model.User, error)
}

// StreakUpdater は連続学習日数更新のインターフェース。
type StreakUpdater interface {
	// Update はユーザーの連続学習日数を更新し、更新後のレコードを返す。
	Update(ctx context.Context, token, userID string) (*model.User, error)
}

// Config はストアの設定。
type Config struct {
	// RedirectURL はメール確認・パスワードリセットのリンク先ベースURL。
	RedirectURL string
}

// Store は認証状態のステートマシンを管理する。
// IdPアカウントとアプリケーションのユーザーレコードは別管理のため、
// セッションを観測する各エントリポイントで lookup-or-create により
// 「認証済みならレコードがちょうど1件存在する」不変条件を回復する。
//
// 認証操作（SignIn/SignUp/SignOut/RefreshUser等）は同時に1つしか実行できない。
// 実行中に別の操作が呼ばれた場合はAUTH_BUSYを返す（リトライは呼び出し元の責任）。
type Store struct {
	auth   AuthProvider
	rows   UserRowStore
	streak StreakUpdater
	kv     kvstore.Store
	config Config
	logger *slog.Logger

	// op は認証操作の多重実行を防ぐ。ブロックせずTryLockで判定する。
	op sync.Mutex

	mu              sync.RWMutex
	user            *model.User
	session         *model.Session
	lastErr         *model.APIError
	selectedProgram string
}

// NewStore はStoreを生成する。
func NewStore(
	auth AuthProvider,
	rows UserRowStore,
	streak StreakUpdater,
	kv kvstore.Store,
	config Config,
	logger *slog.Logger,
) *Store {
	return &Store{
		auth:   auth,
		rows:   rows,
		streak: streak,
		kv:     kv,
		config: config,
		logger: logger,
	}
}

// User は現在のユーザーレコードを返す。未認証の場合はnil。
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Session は現在のセッションを返す。未認証の場合はnil。
func (s *Store) Session() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Err は直近の操作で記録されたエラーを返す。成功した操作でクリアされる。
func (s *Store) Err() *model.APIError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SelectedProgram は選択中の学習プログラムIDを返す。未選択の場合は空文字。
func (s *Store) SelectedProgram() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedProgram
}

// SignIn はパスワードでサインインし、ユーザーレコードを整合させ、ストリークを更新する。
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if !s.op.TryLock() {
		return model.NewAuthBusyError()
	}
	defer s.op.Unlock()

	session, account, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.recordError("sign in", err)
		return err
	}

	user, err := s.ensureUserRecord(ctx, session.AccessToken, account)
	if err != nil {
		s.recordError("sign in", err)
		return err
	}

	// ストリーク更新の失敗でサインインは失敗させない
	if updated, err := s.streak.Update(ctx, session.AccessToken, user.ID); err != nil {
		s.logger.Warn("streak update failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user = updated
	}

	s.setAuthenticated(user, session)
	s.logger.Info("signed in", slog.String("user_id", user.ID))
	return nil
}

// SignUp はアカウントを登録し、確認不要の場合は自動でサインインする。
// メール確認が必要な場合はAUTH_CONFIRMATION_REQUIREDを返し、レコードは作成しない。
// レコード作成に失敗した場合はIdPセッションを補償的に失効させ、
// ユーザーレコードなしの認証済み状態を決して残さない。
func (s *Store) SignUp(ctx context.Context, email, password, username string) error {
	if !s.op.TryLock() {
		return model.NewAuthBusyError()
	}
	defer s.op.Unlock()

	account, err := s.auth.SignUp(ctx, email, password, username, s.config.RedirectURL)
	if err != nil {
		s.recordError("sign up", err)
		return err
	}

	// identitiesが0件 = メール確認待ち。サインインもレコード作成も行わない
	if len(account.Identities) == 0 {
		confirmErr := model.NewConfirmationRequiredError()
		s.recordError("sign up", confirmErr)
		return confirmErr
	}

	session, account, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.recordError("sign up", err)
		return err
	}

	user, err := s.ensureUserRecord(ctx, session.AccessToken, account)
	if err != nil {
		// 補償: レコードなしのセッションを残さないようIdP側を失効させる
		if soErr := s.auth.SignOut(ctx, session.AccessToken); soErr != nil {
			s.logger.Warn("compensating sign out failed", slog.String("error", soErr.Error()))
		}
		s.recordError("sign up", err)
		return err
	}

	s.setAuthenticated(user, session)
	s.logger.Info("signed up", slog.String("user_id", user.ID))
	return nil
}

// SignOut はサインアウトし、ユーザー・セッション・選択中プログラムをクリアする。
// IdP側の失効に失敗した場合、ローカル状態は変更しない。
func (s *Store) SignOut(ctx context.Context) error {
	if !s.op.TryLock() {
		return model.NewAuthBusyError()
	}
	defer s.op.Unlock()

	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()

	if session != nil {
		if err := s.auth.SignOut(ctx, session.AccessToken); err != nil {
			s.recordError("sign out", err)
			return err
		}
	}

	s.mu.Lock()
	s.user = nil
	s.session = nil
	s.selectedProgram = ""
	s.lastErr = nil
	s.mu.Unlock()

	if err := s.kv.Delete(kvstore.KeySelectedProgram); err != nil {
		s.logger.Warn("failed to clear selected program", slog.String("error", err.Error()))
	}

	s.logger.Info("signed out")
	return nil
}

// RefreshUser は永続化されたセッションから認証状態を復元する。
// セッションがない場合は未認証として選択中プログラムのみ復元する。
// セッションがある場合はユーザーレコードを整合させる（ストリークは更新しない）。
func (s *Store) RefreshUser(ctx context.Context) error {
	if !s.op.TryLock() {
		return model.NewAuthBusyError()
	}
	defer s.op.Unlock()

	s.restoreSelectedProgram()

	session, account, err := s.auth.CurrentSession(ctx)
	if err != nil {
		s.recordError("refresh user", err)
		return err
	}
	if session == nil {
		s.mu.Lock()
		s.user = nil
		s.session = nil
		s.lastErr = nil
		s.mu.Unlock()
		return nil
	}

	user, err := s.ensureUserRecord(ctx, session.AccessToken, account)
	if err != nil {
		s.recordError("refresh user", err)
		return err
	}

	s.setAuthenticated(user, session)
	return nil
}

// ResetPassword はパスワードリセットメールの送信を依頼する。
// 成功可否を返し、失敗の詳細はErrで参照できる。
func (s *Store) ResetPassword(ctx context.Context, email string) bool {
	if !s.op.TryLock() {
		s.setError(model.NewAuthBusyError())
		return false
	}
	defer s.op.Unlock()

	redirectTo := s.config.RedirectURL
	if redirectTo != "" {
		redirectTo = strings.TrimSuffix(redirectTo, "/") + "/update-password"
	}

	if err := s.auth.RecoverPassword(ctx, email, redirectTo); err != nil {
		s.recordError("reset password", err)
		return false
	}

	s.clearError()
	return true
}

// UpdatePassword は認証済みユーザーのパスワードを更新する。
// 成功可否を返し、失敗の詳細はErrで参照できる。
func (s *Store) UpdatePassword(ctx context.Context, newPassword string) bool {
	if !s.op.TryLock() {
		s.setError(model.NewAuthBusyError())
		return false
	}
	defer s.op.Unlock()

	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()

	if session == nil {
		s.setError(model.NewSessionMissingError())
		return false
	}

	if err := s.auth.UpdatePassword(ctx, session.AccessToken, newPassword); err != nil {
		s.recordError("update password", err)
		return false
	}

	s.clearError()
	return true
}

// SetSelectedProgram は選択中プログラムをメモリとkvstoreへ書き込む。
// IDの妥当性検証はプログラムストア側の責任。
func (s *Store) SetSelectedProgram(programID string) error {
	s.mu.Lock()
	s.selectedProgram = programID
	s.mu.Unlock()

	if err := s.kv.Set(kvstore.KeySelectedProgram, programID); err != nil {
		return model.NewStorageError(err.Error())
	}
	return nil
}

// ensureUserRecord はアカウントIDに対応するユーザーレコードの存在を保証する。
// 存在しない場合は初期値（level=1, xp=0, streak_days=0）で作成する。
// ユーザー名はIdPメタデータを優先し、なければメールのローカル部を使う。
func (s *Store) ensureUserRecord(ctx context.Context, token string, account *backend.Account) (*model.User, error) {
	user, err := s.rows.FindUserByID(ctx, token, account.ID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	username := account.MetadataUsername()
	if username == "" {
		username, _, _ = strings.Cut(account.Email, "@")
	}

	inserted, err := s.rows.InsertUser(ctx, token, &model.User{
		ID:         account.ID,
		Email:      account.Email,
		Username:   username,
		Level:      1,
		XP:         0,
		StreakDays: 0,
	})
	if err != nil {
		return nil, model.NewProfileCreateFailedError(err.Error())
	}

	s.logger.Info("user record created",
		slog.String("user_id", inserted.ID),
		slog.String("username", inserted.Username),
	)
	return inserted, nil
}

// restoreSelectedProgram はkvstoreから選択中プログラムを復元する。
func (s *Store) restoreSelectedProgram() {
	value, ok, err := s.kv.Get(kvstore.KeySelectedProgram)
	if err != nil {
		s.logger.Warn("failed to restore selected program", slog.String("error", err.Error()))
		return
	}
	if !ok || value == "" {
		return
	}

	s.mu.Lock()
	s.selectedProgram = value
	s.mu.Unlock()
}

// setAuthenticated は認証済み状態へ遷移する。
func (s *Store) setAuthenticated(user *model.User, session *model.Session) {
	s.mu.Lock()
	s.user = user
	s.session = session
	s.lastErr = nil
	s.mu.Unlock()
}

// recordError は失敗した操作のエラーをログに記録し、ストアに保持する。
func (s *Store) recordError(operation string, err error) {
	s.logger.Error("auth operation failed",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	s.setError(err)
}

// setError はエラーをAPIErrorへ正規化してストアに保持する。
func (s *Store) setError(err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewProviderError(err.Error())
	}

	s.mu.Lock()
	s.lastErr = apiErr
	s.mu.Unlock()
}

// clearError は保持中のエラーをクリアする。
func (s *Store) clearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}
