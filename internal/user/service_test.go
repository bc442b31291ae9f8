package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/password"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, user *model.User) error
	updateFn      func(ctx context.Context, user *model.User) error
	listFn        func(ctx context.Context) ([]*model.User, error)
	deleteByIDFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindBySocialIdentity(_ context.Context, _, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockTokenRevoker struct {
	revokeAllFn func(ctx context.Context, userID string) error
}

func (m *mockTokenRevoker) RevokeAll(ctx context.Context, userID string) error {
	if m.revokeAllFn != nil {
		return m.revokeAllFn(ctx, userID)
	}
	return nil
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- Get ---

func TestGet_ExistingUser_ReturnsUser(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "taro@example.com"}, nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	user, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %q, want %q", user.ID, "user-1")
	}
}

func TestGet_UnknownUser_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockTokenRevoker{})

	_, err := svc.Get(context.Background(), "missing")
	assertErrorCode(t, err, model.ErrCodeUserNotFound)
}

// --- Create ---

func TestCreate_ValidInput_CreatesUser(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	user, err := svc.Create(context.Background(), CreateInput{
		Email:     "hanako@example.com",
		Password:  "password123",
		FirstName: "Hanako",
		LastName:  "Sato",
		Role:      model.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected user to be created")
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleAdmin)
	}
	if !user.IsActive {
		t.Error("new user should be active")
	}
	if !password.Verify(user.PasswordHash, "password123") {
		t.Error("stored hash should verify against the original password")
	}
}

func TestCreate_NoRole_DefaultsToUser(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockTokenRevoker{})

	user, err := svc.Create(context.Background(), CreateInput{
		Email:    "hanako@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleUser)
	}
}

func TestCreate_InvalidInput_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockTokenRevoker{})

	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "メールアドレスなし", input: CreateInput{Password: "password123"}},
		{name: "メールアドレス形式不正", input: CreateInput{Email: "not-an-email", Password: "password123"}},
		{name: "パスワードなし", input: CreateInput{Email: "hanako@example.com"}},
		{name: "不正なロール", input: CreateInput{Email: "hanako@example.com", Password: "password123", Role: "SUPERUSER"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assertErrorCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

func TestCreate_DuplicateEmail_ReturnsError(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing", Email: email}, nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	_, err := svc.Create(context.Background(), CreateInput{
		Email:    "hanako@example.com",
		Password: "password123",
	})
	assertErrorCode(t, err, model.ErrCodeEmailAlreadyRegistered)
}

// --- Update ---

func TestUpdate_PartialFields_UpdatesOnlyProvided(t *testing.T) {
	var updated *model.User
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:        id,
				Email:     "taro@example.com",
				FirstName: "Taro",
				LastName:  "Yamada",
				Role:      model.RoleUser,
				IsActive:  true,
			}, nil
		},
		updateFn: func(ctx context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	newName := "Jiro"
	user, err := svc.Update(context.Background(), "user-1", UpdateInput{FirstName: &newName})
	if err != nil {
		t.Fatalf("Update returned unexpected error: %v", err)
	}
	if updated == nil {
		t.Fatal("expected user to be updated")
	}
	if user.FirstName != "Jiro" {
		t.Errorf("FirstName = %q, want %q", user.FirstName, "Jiro")
	}
	// 指定しなかったフィールドは据え置き
	if user.LastName != "Yamada" {
		t.Errorf("LastName = %q, want %q", user.LastName, "Yamada")
	}
	if user.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, model.RoleUser)
	}
}

func TestUpdate_Deactivation_RevokesAllRefreshTokens(t *testing.T) {
	var revokedUserID string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, IsActive: true}, nil
		},
	}
	tokens := &mockTokenRevoker{
		revokeAllFn: func(ctx context.Context, userID string) error {
			revokedUserID = userID
			return nil
		},
	}
	svc := NewService(repo, tokens)

	inactive := false
	if _, err := svc.Update(context.Background(), "user-1", UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("Update returned unexpected error: %v", err)
	}
	if revokedUserID != "user-1" {
		t.Errorf("revoked user = %q, want %q", revokedUserID, "user-1")
	}
}

func TestUpdate_AlreadyInactive_DoesNotRevokeAgain(t *testing.T) {
	revoked := false
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, IsActive: false}, nil
		},
	}
	tokens := &mockTokenRevoker{
		revokeAllFn: func(ctx context.Context, userID string) error {
			revoked = true
			return nil
		},
	}
	svc := NewService(repo, tokens)

	inactive := false
	if _, err := svc.Update(context.Background(), "user-1", UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("Update returned unexpected error: %v", err)
	}
	if revoked {
		t.Error("revocation should only happen on active→inactive transition")
	}
}

func TestUpdate_UnknownUser_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockTokenRevoker{})

	newName := "Jiro"
	_, err := svc.Update(context.Background(), "missing", UpdateInput{FirstName: &newName})
	assertErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestUpdate_InvalidRole_ReturnsValidationError(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, IsActive: true}, nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	badRole := model.Role("SUPERUSER")
	_, err := svc.Update(context.Background(), "user-1", UpdateInput{Role: &badRole})
	assertErrorCode(t, err, model.ErrCodeValidationFailed)
}

// --- Delete ---

func TestDelete_ExistingUser_Deletes(t *testing.T) {
	var deletedID string
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	svc := NewService(repo, &mockTokenRevoker{})

	if err := svc.Delete(context.Background(), "user-1"); err != nil {
		t.Fatalf("Delete returned unexpected error: %v", err)
	}
	if deletedID != "user-1" {
		t.Errorf("deleted user = %q, want %q", deletedID, "user-1")
	}
}

func TestDelete_UnknownUser_ReturnsNotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockTokenRevoker{})

	err := svc.Delete(context.Background(), "missing")
	assertErrorCode(t, err, model.ErrCodeUserNotFound)
}
