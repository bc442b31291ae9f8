package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/auth"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register はメールアドレスとパスワードでユーザーを登録し、トークンを発行する。
	Register(ctx context.Context, input auth.RegisterInput) (*auth.TokenPair, error)
	// Login はメールアドレスとパスワードでログインし、トークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	// Refresh はリフレッシュトークンをローテーションし、新しいトークンの組を発行する。
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	// Logout はリフレッシュトークンを失効させる。
	Logout(ctx context.Context, refreshToken string) error
	// SocialLogin はソーシャルプロバイダーのIDトークンでログインする。
	SocialLogin(ctx context.Context, provider, idToken string) (*auth.TokenPair, error)
}

// AuthHandler は認証系エンドポイントのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest はトークンリフレッシュリクエストのボディ。
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// logoutRequest はログアウトリクエストのボディ。
type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// socialLoginRequest はソーシャルログインリクエストのボディ。
type socialLoginRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// tokenPairResponse はトークン発行系エンドポイントのレスポンス。
type tokenPairResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pair, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTokenPairResponse(pair))
}

// Login はログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

// Refresh はリフレッシュトークンのローテーションを処理する。
// 新しいアクセストークンとリフレッシュトークンの両方を常に返す。
// POST /auth/refresh-token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

// Logout はログアウトを処理する。トークン未指定でもエラーにしない（冪等）。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// ボディなしのログアウトも許容する
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "ログアウトしました。"})
}

// SocialLogin はソーシャルログインを処理する。
// POST /auth/social-login
func (h *AuthHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var req socialLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pair, err := h.service.SocialLogin(r.Context(), req.Provider, req.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenPairResponse(pair))
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/social-login", h.SocialLogin)
	})

	return r
}

// toTokenPairResponse はauth.TokenPairからAPIレスポンスに変換する。
func toTokenPairResponse(pair *auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toUserResponse(pair.User),
	}
}
