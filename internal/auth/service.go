// Package auth はユーザー登録・ログイン・トークンリフレッシュ・ソーシャルログインを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/password"
	"github.com/hitoshi/matchside/internal/repository"
	"github.com/hitoshi/matchside/internal/token"
)

// minPasswordLength はパスワードの最低文字数。
const minPasswordLength = 8

// TokenPair はログイン系操作の結果として返すトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordLogin(success bool)
	RecordTokenRotation()
	RecordTokenRevocation()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	issuer    *token.Issuer
	refresh   *token.RefreshManager
	verifiers map[string]SocialVerifier
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。
// verifiersはプロバイダー名（"google", "apple"）をキーとする。
func NewService(
	userRepo repository.UserRepository,
	issuer *token.Issuer,
	refresh *token.RefreshManager,
	verifiers map[string]SocialVerifier,
) *Service {
	return &Service{
		userRepo:  userRepo,
		issuer:    issuer,
		refresh:   refresh,
		verifiers: verifiers,
	}
}

// SetMetrics は認証メトリクスの記録先を設定する。未設定の場合は記録しない。
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Register はメールアドレスとパスワードでユーザーを登録し、トークンを発行する。
// 登録済みメールアドレスの場合はEMAIL_ALREADY_REGISTEREDエラーを返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*TokenPair, error) {
	// 1. 入力検証
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	// 2. メールアドレスの重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyRegisteredError()
	}

	// 3. パスワードをハッシュ化してユーザーを作成
	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hashed,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	// 4. トークンを発行
	return s.issueTokenPair(ctx, user)
}

// Login はメールアドレスとパスワードでログインし、トークンを発行する。
// 不存在・パスワード不一致・無効化済みのいずれでもINVALID_CREDENTIALSを返し、
// 失敗の原因を区別させない。
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	// ソーシャル専用ユーザー（PasswordHashが空）もパスワードログイン不可
	if user == nil || !user.IsActive || user.PasswordHash == "" {
		s.recordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}
	if !password.Verify(user.PasswordHash, plainPassword) {
		s.recordLogin(false)
		return nil, model.NewInvalidCredentialsError()
	}

	s.recordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return s.issueTokenPair(ctx, user)
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークンの組を発行する。
// 旧トークンは失効し、再利用できない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rotated, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordTokenRotation()
	}

	user, err := s.userRepo.FindByID(ctx, rotated.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.IsActive {
		// ローテーション後にユーザーが消えている・無効化されている場合も
		// 新トークンを使わせない
		return nil, model.NewInvalidRefreshTokenError()
	}

	accessToken, err := s.issuer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rotated.Token,
		User:         user,
	}, nil
}

// Logout はリフレッシュトークンを失効させる。
// 既に失効済み・不存在のトークンでもエラーにしない（冪等）。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return model.NewValidationError("リフレッシュトークンが指定されていません")
	}
	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordTokenRevocation()
	}
	slog.Info("user logged out")
	return nil
}

// SocialLogin はソーシャルプロバイダーのIDトークンでログインし、トークンを発行する。
// 未登録の場合はユーザーを自動作成する。同じメールアドレスの既存ユーザーが
// いる場合はソーシャルIDを紐付ける。
func (s *Service) SocialLogin(ctx context.Context, provider, idToken string) (*TokenPair, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, model.NewUnsupportedProviderError(provider)
	}

	// 1. IDトークンを検証
	info, err := verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		slog.Warn("social token verification failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return nil, model.NewSocialVerifyFailedError()
	}

	// 2. ソーシャルIDで既存ユーザーを検索
	user, err := s.userRepo.FindBySocialIdentity(ctx, info.Provider, info.SocialID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by social identity: %w", err)
	}

	if user == nil && info.Email != "" {
		// 3. 同じメールアドレスの既存ユーザーにソーシャルIDを紐付ける
		user, err = s.userRepo.FindByEmail(ctx, info.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if user != nil {
			user.SocialProvider = info.Provider
			user.SocialID = info.SocialID
			if user.ProfilePictureURL == "" {
				user.ProfilePictureURL = info.PictureURL
			}
			user.UpdatedAt = time.Now()
			if err := s.userRepo.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to link social identity: %w", err)
			}
			slog.Info("social identity linked",
				slog.String("user_id", user.ID),
				slog.String("provider", info.Provider),
			)
		}
	}

	if user == nil {
		// 4. 新規ユーザーを自動作成
		now := time.Now()
		user = &model.User{
			ID:                uuid.New().String(),
			Email:             info.Email,
			FirstName:         info.FirstName,
			LastName:          info.LastName,
			Role:              model.RoleUser,
			IsActive:          true,
			SocialProvider:    info.Provider,
			SocialID:          info.SocialID,
			ProfilePictureURL: info.PictureURL,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create social user: %w", err)
		}
		slog.Info("new social user created",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
	}

	if !user.IsActive {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issueTokenPair(ctx, user)
}

// recordLogin はログイン試行の成否をメトリクスに記録する。
func (s *Service) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}

// issueTokenPair はアクセストークンとリフレッシュトークンの組を発行する。
func (s *Service) issueTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, err := s.issuer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	rt, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rt.Token,
		User:         user,
	}, nil
}

// validateRegisterInput はユーザー登録の入力を検証する。
func validateRegisterInput(input RegisterInput) error {
	if input.Email == "" {
		return model.NewValidationError("メールアドレスは必須です")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(input.Password) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}
	if input.FirstName == "" || input.LastName == "" {
		return model.NewValidationError("氏名は必須です")
	}
	return nil
}
