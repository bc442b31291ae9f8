// Package user はユーザー管理のドメインロジックを提供する。
package user

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
)

// CreateInput は管理者によるユーザー作成の入力。
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role
}

// UpdateInput はユーザー更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	FirstName         *string
	LastName          *string
	Role              *model.Role
	IsActive          *bool
	ProfilePictureURL *string
}

// TokenRevoker はユーザー単位のリフレッシュトークン一括失効インターフェース。
// token.RefreshManagerが実装する。
type TokenRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 管理者向けCRUDと本人情報の取得を提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenRevoker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, tokens TokenRevoker) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Get はIDでユーザーを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Create は管理者操作としてユーザーを作成する。
// ロール未指定の場合はUSERになる。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.User, error) {
	if input.Email == "" {
		return nil, model.NewValidationError("メールアドレスは必須です")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if input.Password == "" {
		return nil, model.NewValidationError("パスワードは必須です")
	}
	role := input.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なロールです: %s", role))
	}

	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyRegisteredError()
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: hashed,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, nil
}

// Update はユーザーの属性を部分更新する。
// 無効化した場合は発行済みのリフレッシュトークンを全て失効させる。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, model.NewValidationError(fmt.Sprintf("不正なロールです: %s", *input.Role))
		}
		user.Role = *input.Role
	}
	if input.ProfilePictureURL != nil {
		user.ProfilePictureURL = *input.ProfilePictureURL
	}

	deactivated := false
	if input.IsActive != nil {
		deactivated = user.IsActive && !*input.IsActive
		user.IsActive = *input.IsActive
	}

	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	if deactivated {
		if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("リフレッシュトークンの失効に失敗しました: %w", err)
		}
		slog.Info("ユーザーを無効化しました", slog.String("user_id", user.ID))
	}

	return user, nil
}

// Delete はユーザーを削除する。
// リフレッシュトークンはFK CASCADEで同時に削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーを削除しました", slog.String("user_id", id))
	return nil
}
