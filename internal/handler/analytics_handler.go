package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/model"
)

// AnalyticsServiceInterface は解析アップロードハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	// UploadFrame は映像フレームを解析Webhookに転送し、特定された選手を返す。
	UploadFrame(ctx context.Context, frame []byte) (*model.Player, error)
}

// AnalyticsHandler は映像フレーム解析のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// UploadFrame は映像フレームのアップロードを処理し、特定された選手を返す。
// multipart/form-dataのframeフィールド、または画像バイナリそのものを受け付ける。
// POST /api/analytics/upload
func (h *AnalyticsHandler) UploadFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := h.readFrame(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.UploadFrame(r.Context(), frame)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlayerResponse(p))
}

// readFrame はリクエスト形式に応じてフレームのバイト列を読み出す。
func (h *AnalyticsHandler) readFrame(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, model.NewValidationError("multipartフォームの解析に失敗しました")
		}
		file, _, err := r.FormFile("frame")
		if err != nil {
			return nil, model.NewValidationError("frameフィールドは必須です")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, model.NewValidationError("フレームの読み込みに失敗しました")
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil || len(data) == 0 {
		return nil, model.NewValidationError("フレームデータは必須です")
	}
	return data, nil
}

// SetupAnalyticsRoutes は解析アップロード関連のルーティングを設定したchi.Routerを返す。
// visionRateLimit が nil でない場合、アップロードに画像解析と同じレート制限を適用する。
func SetupAnalyticsRoutes(service AnalyticsServiceInterface, visionRateLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewAnalyticsHandler(service)

	r.Route("/api/analytics", func(r chi.Router) {
		if visionRateLimit != nil {
			r.With(visionRateLimit).Post("/upload", h.UploadFrame)
		} else {
			r.Post("/upload", h.UploadFrame)
		}
	})

	return r
}
