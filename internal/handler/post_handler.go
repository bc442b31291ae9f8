package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/post"
)

// PostServiceInterface は投稿生成ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Generate は試合画像からSNS投稿文とハッシュタグを生成する。
	Generate(ctx context.Context, input post.GenerateInput) (*model.GeneratedPost, error)
}

// PostHandler はSNS投稿生成のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// generatePostRequest は投稿生成リクエストのJSONボディ。
type generatePostRequest struct {
	Image string `json:"image"`
	Hints string `json:"hints"`
	Mood  string `json:"mood"`
}

// generatedPostResponse は投稿生成のAPIレスポンス。
type generatedPostResponse struct {
	Post     string   `json:"post"`
	Hashtags []string `json:"hashtags"`
}

// Generate は試合画像からのSNS投稿生成を処理する。
// JSONボディ（data URI）とmultipart/form-dataの両方を受け付ける。
// POST /api/posts/generate
func (h *PostHandler) Generate(w http.ResponseWriter, r *http.Request) {
	input, err := h.resolveInput(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	generated, err := h.service.Generate(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generatedPostResponse{
		Post:     generated.Post,
		Hashtags: generated.Hashtags,
	})
}

// resolveInput はリクエスト形式に応じて生成入力を組み立てる。
func (h *PostHandler) resolveInput(r *http.Request) (post.GenerateInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return post.GenerateInput{}, model.NewValidationError("multipartフォームの解析に失敗しました")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return post.GenerateInput{}, model.NewValidationError("imageフィールドは必須です")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return post.GenerateInput{}, model.NewValidationError("画像の読み込みに失敗しました")
		}
		return post.GenerateInput{
			ImageBytes: data,
			Hints:      r.FormValue("hints"),
			Mood:       model.PostMood(r.FormValue("mood")),
		}, nil
	}

	var req generatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return post.GenerateInput{}, model.NewValidationError("リクエストボディの解析に失敗しました")
	}
	return post.GenerateInput{
		ImageDataURI: req.Image,
		Hints:        req.Hints,
		Mood:         model.PostMood(req.Mood),
	}, nil
}

// SetupPostRoutes は投稿生成関連のルーティングを設定したchi.Routerを返す。
// visionRateLimit が nil でない場合、生成エンドポイントに画像解析と同じレート制限を適用する。
func SetupPostRoutes(service PostServiceInterface, visionRateLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewPostHandler(service)

	r.Route("/api/posts", func(r chi.Router) {
		if visionRateLimit != nil {
			r.With(visionRateLimit).Post("/generate", h.Generate)
		} else {
			r.Post("/generate", h.Generate)
		}
	})

	return r
}
