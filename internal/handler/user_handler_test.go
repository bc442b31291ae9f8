package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/matchside/internal/middleware"
	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/user"
)

type mockUserService struct {
	getFn    func(ctx context.Context, id string) (*model.User, error)
	listFn   func(ctx context.Context) ([]*model.User, error)
	createFn func(ctx context.Context, input user.CreateInput) (*model.User, error)
	updateFn func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserService) Create(ctx context.Context, input user.CreateInput) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return nil, nil
}

func (m *mockUserService) Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, input)
	}
	return nil, nil
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// withAuthContext はリクエストに認証済みユーザーのコンテキストを付与する。
func withAuthContext(req *http.Request, userID, email, role string) *http.Request {
	ctx := middleware.ContextWithUser(req.Context(), userID, email, role)
	return req.WithContext(ctx)
}

func TestMe_ReturnsAuthenticatedUser(t *testing.T) {
	service := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != "user-1" {
				t.Errorf("id = %q, want user-1", id)
			}
			return testUser(), nil
		},
	}
	router := SetupUserRoutes(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req = withAuthContext(req, "user-1", "taro@example.com", "USER")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "user-1" || resp.Email != "taro@example.com" {
		t.Errorf("unexpected user: %+v", resp)
	}
}

func TestMe_WithoutAuthContext_Returns401(t *testing.T) {
	router := SetupUserRoutes(&mockUserService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMe_ResponseExcludesPasswordHash(t *testing.T) {
	service := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			u := testUser()
			u.PasswordHash = "$2a$10$secret"
			return u, nil
		},
	}
	router := SetupUserRoutes(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req = withAuthContext(req, "user-1", "taro@example.com", "USER")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), "secret") {
		t.Error("response must not contain the password hash")
	}
}

func TestListUsers_ReturnsAll(t *testing.T) {
	service := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			admin := testUser()
			admin.ID = "admin-1"
			admin.Role = model.RoleAdmin
			return []*model.User{testUser(), admin}, nil
		},
	}
	router := SetupUserRoutes(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []userResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("len = %d, want 2", len(resp))
	}
}

func TestCreateUser_Success(t *testing.T) {
	var gotInput user.CreateInput
	service := &mockUserService{
		createFn: func(ctx context.Context, input user.CreateInput) (*model.User, error) {
			gotInput = input
			u := testUser()
			u.Role = input.Role
			return u, nil
		},
	}
	router := SetupUserRoutes(service, nil)

	body := `{"email":"taro@example.com","password":"secret123","firstName":"Taro","lastName":"Yamada","role":"ADMIN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if gotInput.Role != model.RoleAdmin {
		t.Errorf("role = %q, want ADMIN", gotInput.Role)
	}
}

func TestUpdateUser_PartialUpdate(t *testing.T) {
	var gotInput user.UpdateInput
	service := &mockUserService{
		updateFn: func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
			gotInput = input
			return testUser(), nil
		},
	}
	router := SetupUserRoutes(service, nil)

	body := `{"isActive":false}`
	req := httptest.NewRequest(http.MethodPatch, "/api/users/user-1", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotInput.IsActive == nil || *gotInput.IsActive {
		t.Error("isActive should be updated to false")
	}
	if gotInput.FirstName != nil {
		t.Error("firstName should not be touched")
	}
}

func TestGetUser_NotFound_Returns404(t *testing.T) {
	service := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	router := SetupUserRoutes(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteUser_Returns204(t *testing.T) {
	var gotID string
	service := &mockUserService{
		deleteFn: func(ctx context.Context, id string) error {
			gotID = id
			return nil
		},
	}
	router := SetupUserRoutes(service, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/user-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotID != "user-1" {
		t.Errorf("deleted id = %q", gotID)
	}
}

func TestAdminRoutes_WithRoleMiddleware_RejectsNonAdmin(t *testing.T) {
	router := SetupUserRoutes(&mockUserService{}, middleware.NewRequireRoleMiddleware(model.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/api/users/", nil)
	req = withAuthContext(req, "user-1", "taro@example.com", "USER")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAdminRoutes_WithRoleMiddleware_AllowsAdmin(t *testing.T) {
	service := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{}, nil
		},
	}
	router := SetupUserRoutes(service, middleware.NewRequireRoleMiddleware(model.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/api/users/", nil)
	req = withAuthContext(req, "admin-1", "admin@example.com", "ADMIN")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAdminRoutes_MiddlewareDoesNotGateMe(t *testing.T) {
	service := &mockUserService{
		getFn: func(ctx context.Context, id string) (*model.User, error) {
			return testUser(), nil
		},
	}
	router := SetupUserRoutes(service, middleware.NewRequireRoleMiddleware(model.RoleAdmin))

	// 一般ユーザーでも /me は通る
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req = withAuthContext(req, "user-1", "taro@example.com", "USER")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
