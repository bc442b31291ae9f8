package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/middleware"
	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Get はIDでユーザーを取得する。
	Get(ctx context.Context, id string) (*model.User, error)
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
	// Create は管理者操作としてユーザーを作成する。
	Create(ctx context.Context, input user.CreateInput) (*model.User, error)
	// Update はユーザーの属性を部分更新する。
	Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	// Delete はユーザーを削除する。
	Delete(ctx context.Context, id string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// createUserRequest は管理者によるユーザー作成リクエストのボディ。
type createUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// updateUserRequest はユーザー更新リクエストのボディ。nilのフィールドは変更しない。
type updateUserRequest struct {
	FirstName         *string `json:"firstName"`
	LastName          *string `json:"lastName"`
	Role              *string `json:"role"`
	IsActive          *bool   `json:"isActive"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"firstName"`
	LastName          string    `json:"lastName"`
	Role              string    `json:"role"`
	IsActive          bool      `json:"isActive"`
	SocialProvider    string    `json:"socialProvider,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Me は認証済みユーザー本人の情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ListUsers は全ユーザーの一覧を返す。管理者専用。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser はIDでユーザーを取得する。管理者専用。
// GET /api/users/:id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// CreateUser はユーザーを作成する。管理者専用。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	u, err := h.service.Create(r.Context(), user.CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// UpdateUser はユーザーを部分更新する。管理者専用。
// PATCH /api/users/:id
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := user.UpdateInput{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		IsActive:          req.IsActive,
		ProfilePictureURL: req.ProfilePictureURL,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		input.Role = &role
	}

	u, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeleteUser はユーザーを削除する。管理者専用。
// DELETE /api/users/:id
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupUserRoutes はユーザー管理関連のルーティングを設定したchi.Routerを返す。
// adminMiddleware が nil でない場合、本人情報以外のルートに管理者権限チェックを適用する。
func SetupUserRoutes(service UserServiceInterface, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(service)

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/me", h.Me)

		// 管理者専用ルート
		r.Group(func(r chi.Router) {
			if adminMiddleware != nil {
				r.Use(adminMiddleware)
			}
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Patch("/", h.UpdateUser)
				r.Delete("/", h.DeleteUser)
			})
		})
	})

	return r
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
// パスワードハッシュとソーシャルIDは外部に出さない。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Role:              string(u.Role),
		IsActive:          u.IsActive,
		SocialProvider:    u.SocialProvider,
		ProfilePictureURL: u.ProfilePictureURL,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}
