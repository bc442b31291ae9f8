// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, data, ai, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
	ErrCodeEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	ErrCodeUnsupportedProvider    = "UNSUPPORTED_PROVIDER"
	ErrCodeSocialVerifyFailed     = "SOCIAL_VERIFICATION_FAILED"
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodePlayerNotFound         = "PLAYER_NOT_FOUND"
	ErrCodeLivePlayerNotFound     = "LIVE_PLAYER_NOT_FOUND"
	ErrCodeMatchNotFound          = "MATCH_NOT_FOUND"
	ErrCodeNoLiveMatch            = "NO_LIVE_MATCH"
	ErrCodeRoomNotFound           = "ROOM_NOT_FOUND"
	ErrCodeUnsupportedImage       = "UNSUPPORTED_IMAGE_FORMAT"
	ErrCodeImageFetchBlocked      = "IMAGE_FETCH_BLOCKED"
	ErrCodeAnalysisFailed         = "ANALYSIS_FAILED"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailAlreadyRegisteredError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyRegistered,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレスの存在有無・パスワード不一致・無効化済みアカウントの
// いずれでも同一のエラーを返し、原因を呼び出し元に漏らさない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidRefreshTokenError はリフレッシュトークン無効エラーを生成する。
// 不存在・失効済み・期限切れのいずれでも同一のエラーを返す。
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRefreshToken,
		Message:  "リフレッシュトークンが無効か期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewUnsupportedProviderError は未対応プロバイダーエラーを生成する。
func NewUnsupportedProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedProvider,
		Message:  fmt.Sprintf("未対応の認証プロバイダーです: %s", provider),
		Category: "validation",
		Action:   "google または apple を指定してください。",
	}
}

// NewSocialVerifyFailedError はソーシャルトークン検証失敗エラーを生成する。
func NewSocialVerifyFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSocialVerifyFailed,
		Message:  "ソーシャルログインの認証に失敗しました。",
		Category: "auth",
		Action:   "プロバイダーで再度ログインし直してください。",
	}
}

// NewUnauthorizedError は認証必須エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPlayerNotFoundError は選手未検出エラーを生成する。
func NewPlayerNotFoundError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodePlayerNotFound,
		Message:  fmt.Sprintf("指定された選手が見つかりません: %s", detail),
		Category: "data",
		Action:   "選手IDまたはチーム名と背番号を確認してください。",
	}
}

// NewLivePlayerNotFoundError はライブ出演情報未検出エラーを生成する。
func NewLivePlayerNotFoundError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeLivePlayerNotFound,
		Message:  fmt.Sprintf("指定されたライブ出演情報が見つかりません: %s", detail),
		Category: "data",
		Action:   "ライブ出演情報のIDまたは選手IDを確認してください。",
	}
}

// NewMatchNotFoundError は試合未検出エラーを生成する。
func NewMatchNotFoundError(matchID string) *APIError {
	return &APIError{
		Code:     ErrCodeMatchNotFound,
		Message:  fmt.Sprintf("指定された試合が見つかりません: %s", matchID),
		Category: "data",
		Action:   "試合IDを確認してください。",
	}
}

// NewNoLiveMatchError はライブ中の試合がない場合のエラーを生成する。
func NewNoLiveMatchError() *APIError {
	return &APIError{
		Code:     ErrCodeNoLiveMatch,
		Message:  "現在ライブ中の試合がありません。",
		Category: "data",
		Action:   "試合開始後に再度お試しください。",
	}
}

// NewRoomNotFoundError はルーム未検出エラーを生成する。
func NewRoomNotFoundError(roomID string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNotFound,
		Message:  fmt.Sprintf("指定されたルームが見つかりません: %s", roomID),
		Category: "data",
		Action:   "ルームIDを確認してください。",
	}
}

// NewUnsupportedImageError は未対応画像フォーマットエラーを生成する。
func NewUnsupportedImageError() *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedImage,
		Message:  "対応していない画像フォーマットです。",
		Category: "validation",
		Action:   "png、jpeg、gif、webp のいずれかの画像を指定してください。",
	}
}

// NewImageFetchBlockedError は画像URL取得がブロックされた場合のエラーを生成する。
func NewImageFetchBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImageFetchBlocked,
		Message:  "セキュリティポリシーにより、指定された画像URLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトの画像URLを指定してください。",
	}
}

// NewAnalysisFailedError は画像解析失敗エラーを生成する。
func NewAnalysisFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAnalysisFailed,
		Message:  fmt.Sprintf("画像解析に失敗しました: %s", reason),
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
