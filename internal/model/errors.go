package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// バックエンド層がIdP・行ストレージの生エラーをエラーコードに分類し、
// UI側はコードで表示文言を切り替える。未分類のエラーは生メッセージを保持する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, storage, validation, quiz, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed    = "AUTH_EMAIL_NOT_CONFIRMED"
	ErrCodeConfirmationRequired = "AUTH_CONFIRMATION_REQUIRED"
	ErrCodeRateLimited          = "AUTH_RATE_LIMITED"
	ErrCodeSessionMissing       = "AUTH_SESSION_MISSING"
	ErrCodeAuthBusy             = "AUTH_BUSY"
	ErrCodeProviderError        = "AUTH_PROVIDER_ERROR"
	ErrCodeProfileCreateFailed  = "PROFILE_CREATE_FAILED"
	ErrCodeRowNotFound          = "ROW_NOT_FOUND"
	ErrCodeStorageError         = "STORAGE_ERROR"
	ErrCodeProgramUnknown       = "PROGRAM_UNKNOWN"
	ErrCodeProgramNotAvailable  = "PROGRAM_NOT_AVAILABLE"
)

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailNotConfirmedError はメール未確認アカウントでのサインインエラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "メールアドレスの確認が完了していません。",
		Category: "auth",
		Action:   "登録時に送信された確認メールのリンクを開いてください。",
	}
}

// NewConfirmationRequiredError はサインアップ後のメール確認待ちエラーを生成する。
// IdPが返したアカウントのidentitiesが0件の場合に発生する。
// この状態ではアプリケーションのユーザーレコードは作成しない。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "確認メールを送信しました。",
		Category: "auth",
		Action:   "メール内のリンクでアカウントを有効化してからサインインしてください。",
	}
}

// NewRateLimitedError はIdPのレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionMissingError はセッション不在エラーを生成する。
func NewSessionMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionMissing,
		Message:  "有効なセッションがありません。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewAuthBusyError は認証操作の多重実行エラーを生成する。
// 二重送信の防止のため、実行中の操作がある間は新しい操作を受け付けない。
func NewAuthBusyError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthBusy,
		Message:  "別の認証操作を実行中です。",
		Category: "auth",
		Action:   "完了を待ってから再度お試しください。",
	}
}

// NewProviderError はIdPの未分類エラーを生成する。生メッセージをそのまま保持する。
func NewProviderError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderError,
		Message:  raw,
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProfileCreateFailedError はユーザーレコード作成失敗エラーを生成する。
// サインアップ中に発生した場合、IdPセッションは補償処理でサインアウト済み。
func NewProfileCreateFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileCreateFailed,
		Message:  fmt.Sprintf("ユーザープロフィールの作成に失敗しました: %s", reason),
		Category: "storage",
		Action:   "再度サインアップするか、時間をおいてサインインしてください。",
	}
}

// NewRowNotFoundError は行未検出エラーを生成する。
func NewRowNotFoundError(table string) *APIError {
	return &APIError{
		Code:     ErrCodeRowNotFound,
		Message:  fmt.Sprintf("対象のデータが見つかりません: %s", table),
		Category: "storage",
		Action:   "再度読み込んでください。",
	}
}

// NewStorageError は行ストレージの未分類エラーを生成する。生メッセージをそのまま保持する。
func NewStorageError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageError,
		Message:  raw,
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProgramUnknownError は未知のプログラムID指定エラーを生成する。
func NewProgramUnknownError(programID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgramUnknown,
		Message:  fmt.Sprintf("不明なプログラムです: %s", programID),
		Category: "validation",
		Action:   "プログラム一覧から選択してください。",
	}
}

// NewProgramNotAvailableError は未提供プログラム選択エラーを生成する。
func NewProgramNotAvailableError(programID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgramNotAvailable,
		Message:  fmt.Sprintf("このプログラムはまだ提供されていません: %s", programID),
		Category: "validation",
		Action:   "提供中のプログラムを選択してください。",
	}
}
