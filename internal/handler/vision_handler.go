package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/vision"
)

// maxUploadBytes はmultipartアップロードの最大サイズ（10MB）。
const maxUploadBytes = 10 << 20

// VisionServiceInterface は画像解析ハンドラーが必要とするサービスインターフェース。
type VisionServiceInterface interface {
	// AnalyzeImage は試合画像から選手の背番号とチームを特定する。
	AnalyzeImage(ctx context.Context, input vision.ImageInput, matchCtx model.MatchContext) (*model.AnalysisResult, error)
	// ListMemory は解析履歴を新しい順で返す。
	ListMemory() []model.AnalysisRecord
}

// LiveMatchProvider は解析コンテキストとなるライブ試合の取得インターフェース。
type LiveMatchProvider interface {
	GetLive(ctx context.Context) (*model.Match, error)
}

// VisionMetricsRecorder は画像解析のメトリクス記録インターフェース。
type VisionMetricsRecorder interface {
	RecordVisionRequest(status string)
	RecordVisionLatency(duration time.Duration)
}

// VisionHandler は画像解析のHTTPハンドラー。
type VisionHandler struct {
	service VisionServiceInterface
	matches LiveMatchProvider
	metrics VisionMetricsRecorder
}

// NewVisionHandler はVisionHandlerを生成する。metricsはnil可。
func NewVisionHandler(service VisionServiceInterface, matches LiveMatchProvider, metrics VisionMetricsRecorder) *VisionHandler {
	return &VisionHandler{
		service: service,
		matches: matches,
		metrics: metrics,
	}
}

// analyzeRequest は画像解析リクエストのJSONボディ。
// imageはdata URI、imageUrlは外部画像URL。いずれか1つを指定する。
type analyzeRequest struct {
	Image    string `json:"image"`
	ImageURL string `json:"imageUrl"`
}

// analysisResponse は画像解析結果のAPIレスポンス。
type analysisResponse struct {
	PlayerNumber *int    `json:"playerNumber"`
	Team         *string `json:"team"`
	Status       string  `json:"status"`
	Message      string  `json:"message"`
}

// analysisRecordResponse は解析履歴1件のAPIレスポンス。
type analysisRecordResponse struct {
	Timestamp time.Time        `json:"timestamp"`
	HomeTeam  string           `json:"homeTeam"`
	AwayTeam  string           `json:"awayTeam"`
	Result    analysisResponse `json:"result"`
}

// Analyze は試合画像の選手特定を処理する。
// JSONボディ（data URIまたは画像URL）とmultipart/form-dataの両方を受け付ける。
// ライブ中の試合があればそのコンテキストを解析プロンプトに含める。
// POST /api/vision/analyze
func (h *VisionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	input, err := h.resolveInput(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	matchCtx, err := h.liveMatchContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.AnalyzeImage(r.Context(), input, matchCtx)
	if h.metrics != nil {
		h.metrics.RecordVisionLatency(time.Since(start))
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordVisionRequest(string(model.AnalysisStatusFailed))
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordVisionRequest(string(result.Status))
	}

	writeJSON(w, http.StatusOK, toAnalysisResponse(*result))
}

// ListMemory は解析履歴を新しい順で返す。デバッグ・監査用。
// GET /api/vision/memory
func (h *VisionHandler) ListMemory(w http.ResponseWriter, r *http.Request) {
	records := h.service.ListMemory()

	resp := make([]analysisRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, analysisRecordResponse{
			Timestamp: rec.Timestamp,
			HomeTeam:  rec.Match.HomeTeam,
			AwayTeam:  rec.Match.AwayTeam,
			Result:    toAnalysisResponse(rec.Result),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveInput はリクエスト形式に応じて解析入力を組み立てる。
func (h *VisionHandler) resolveInput(r *http.Request) (vision.ImageInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return vision.ImageInput{}, model.NewValidationError("multipartフォームの解析に失敗しました")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return vision.ImageInput{}, model.NewValidationError("imageフィールドは必須です")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return vision.ImageInput{}, model.NewValidationError("画像の読み込みに失敗しました")
		}
		return vision.ImageInput{Bytes: data}, nil
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return vision.ImageInput{}, model.NewValidationError("リクエストボディの解析に失敗しました")
	}
	return vision.ImageInput{DataURI: req.Image, URL: req.ImageURL}, nil
}

// liveMatchContext はライブ中の試合から解析コンテキストを組み立てる。
// ライブ中の試合がない場合は空のコンテキストで解析を続行する。
func (h *VisionHandler) liveMatchContext(ctx context.Context) (model.MatchContext, error) {
	m, err := h.matches.GetLive(ctx)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNoLiveMatch {
			return model.MatchContext{}, nil
		}
		return model.MatchContext{}, err
	}
	return model.MatchContext{
		Status:   string(m.Status),
		HomeTeam: m.HomeTeam,
		AwayTeam: m.AwayTeam,
		Stadium:  m.Stadium,
	}, nil
}

// SetupVisionRoutes は画像解析関連のルーティングを設定したchi.Routerを返す。
// visionRateLimit が nil でない場合、解析エンドポイントに専用レート制限を適用する。
func SetupVisionRoutes(service VisionServiceInterface, matches LiveMatchProvider, metrics VisionMetricsRecorder, visionRateLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewVisionHandler(service, matches, metrics)

	r.Route("/api/vision", func(r chi.Router) {
		if visionRateLimit != nil {
			r.With(visionRateLimit).Post("/analyze", h.Analyze)
		} else {
			r.Post("/analyze", h.Analyze)
		}
		r.Get("/memory", h.ListMemory)
	})

	return r
}

// toAnalysisResponse はmodel.AnalysisResultからAPIレスポンスに変換する。
func toAnalysisResponse(result model.AnalysisResult) analysisResponse {
	return analysisResponse{
		PlayerNumber: result.PlayerNumber,
		Team:         result.Team,
		Status:       string(result.Status),
		Message:      result.Message,
	}
}
