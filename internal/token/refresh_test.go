package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/matchside/internal/model"
)

// mockRefreshTokenRepo はRefreshTokenRepositoryのモック実装。
type mockRefreshTokenRepo struct {
	createFunc              func(ctx context.Context, token *model.RefreshToken) error
	findByTokenFunc         func(ctx context.Context, token string) (*model.RefreshToken, error)
	rotateFunc              func(ctx context.Context, oldToken string, newToken *model.RefreshToken) error
	revokeFunc              func(ctx context.Context, token string) error
	revokeAllByUserIDFunc   func(ctx context.Context, userID string) error
	deleteExpiredBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	return m.createFunc(ctx, token)
}

func (m *mockRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	return m.findByTokenFunc(ctx, token)
}

func (m *mockRefreshTokenRepo) Rotate(ctx context.Context, oldToken string, newToken *model.RefreshToken) error {
	return m.rotateFunc(ctx, oldToken, newToken)
}

func (m *mockRefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	return m.revokeFunc(ctx, token)
}

func (m *mockRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	return m.revokeAllByUserIDFunc(ctx, userID)
}

func (m *mockRefreshTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.deleteExpiredBeforeFunc(ctx, cutoff)
}

func TestRefreshManager_Issue(t *testing.T) {
	var saved *model.RefreshToken
	repo := &mockRefreshTokenRepo{
		createFunc: func(ctx context.Context, token *model.RefreshToken) error {
			saved = token
			return nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	rt, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Issue returned unexpected error: %v", err)
	}
	if rt.Token == "" {
		t.Error("expected non-empty token string")
	}
	if rt.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", rt.UserID, "user-1")
	}
	if rt.Revoked {
		t.Error("new token should not be revoked")
	}
	wantExpiry := rt.CreatedAt.Add(7 * 24 * time.Hour)
	if !rt.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", rt.ExpiresAt, wantExpiry)
	}
	if saved != rt {
		t.Error("expected token to be persisted via repository")
	}
}

func TestRefreshManager_Validate_ValidToken(t *testing.T) {
	now := time.Now()
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return &model.RefreshToken{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: now.Add(1 * time.Hour),
			}, nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	rt, err := manager.Validate(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("Validate returned unexpected error: %v", err)
	}
	if rt.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", rt.UserID, "user-1")
	}
}

func TestRefreshManager_Validate_UnknownToken(t *testing.T) {
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return nil, nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	_, err := manager.Validate(context.Background(), "unknown")
	assertInvalidRefreshTokenError(t, err)
}

func TestRefreshManager_Validate_ExpiredToken(t *testing.T) {
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return &model.RefreshToken{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(-1 * time.Minute),
			}, nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	_, err := manager.Validate(context.Background(), "expired")
	assertInvalidRefreshTokenError(t, err)
}

func TestRefreshManager_Validate_RevokedToken(t *testing.T) {
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return &model.RefreshToken{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
				Revoked:   true,
			}, nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	_, err := manager.Validate(context.Background(), "revoked")
	assertInvalidRefreshTokenError(t, err)
}

func TestRefreshManager_Rotate_IssuesNewTokenForSameUser(t *testing.T) {
	now := time.Now()
	var rotatedOld string
	var rotatedNew *model.RefreshToken
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return &model.RefreshToken{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: now.Add(1 * time.Hour),
			}, nil
		},
		rotateFunc: func(ctx context.Context, oldToken string, newToken *model.RefreshToken) error {
			rotatedOld = oldToken
			rotatedNew = newToken
			return nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	rt, err := manager.Rotate(context.Background(), "old-token")
	if err != nil {
		t.Fatalf("Rotate returned unexpected error: %v", err)
	}
	if rotatedOld != "old-token" {
		t.Errorf("rotated old token = %q, want %q", rotatedOld, "old-token")
	}
	if rotatedNew != rt {
		t.Error("expected returned token to match the persisted one")
	}
	if rt.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", rt.UserID, "user-1")
	}
	if rt.Token == "old-token" {
		t.Error("expected a fresh token string")
	}
}

func TestRefreshManager_Rotate_ConcurrentRotationLoses(t *testing.T) {
	// 検証後・ローテーション前に他のリクエストが先にローテーションした場合、
	// リポジトリのRotateが失敗し、無効トークンエラーになる
	repo := &mockRefreshTokenRepo{
		findByTokenFunc: func(ctx context.Context, token string) (*model.RefreshToken, error) {
			return &model.RefreshToken{
				Token:     token,
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
		rotateFunc: func(ctx context.Context, oldToken string, newToken *model.RefreshToken) error {
			return errors.New("refresh token already revoked or missing")
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	_, err := manager.Rotate(context.Background(), "contested-token")
	assertInvalidRefreshTokenError(t, err)
}

func TestRefreshManager_Revoke(t *testing.T) {
	var revoked string
	repo := &mockRefreshTokenRepo{
		revokeFunc: func(ctx context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	if err := manager.Revoke(context.Background(), "some-token"); err != nil {
		t.Fatalf("Revoke returned unexpected error: %v", err)
	}
	if revoked != "some-token" {
		t.Errorf("revoked token = %q, want %q", revoked, "some-token")
	}
}

func TestRefreshManager_RevokeAll(t *testing.T) {
	var revokedUserID string
	repo := &mockRefreshTokenRepo{
		revokeAllByUserIDFunc: func(ctx context.Context, userID string) error {
			revokedUserID = userID
			return nil
		},
	}
	manager := NewRefreshManager(repo, 7*24*time.Hour)

	if err := manager.RevokeAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("RevokeAll returned unexpected error: %v", err)
	}
	if revokedUserID != "user-1" {
		t.Errorf("revoked user = %q, want %q", revokedUserID, "user-1")
	}
}

func assertInvalidRefreshTokenError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != model.ErrCodeInvalidRefreshToken {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidRefreshToken)
	}
}
