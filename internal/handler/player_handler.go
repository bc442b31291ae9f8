package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/player"
)

// PlayerServiceInterface は選手ハンドラーが必要とするサービスインターフェース。
type PlayerServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Player, error)
	List(ctx context.Context) ([]*model.Player, error)
	Create(ctx context.Context, input player.CreateInput) (*model.Player, error)
	Update(ctx context.Context, id string, input player.UpdateInput) (*model.Player, error)
	Delete(ctx context.Context, id string) error
	ListPerformances(ctx context.Context, playerID string) ([]*model.PlayerPerformance, error)
	RecordPerformance(ctx context.Context, playerID string, input player.PerformanceInput) (*model.PlayerPerformance, error)
}

// PlayerHandler は選手管理のHTTPハンドラー。
type PlayerHandler struct {
	service PlayerServiceInterface
}

// NewPlayerHandler はPlayerHandlerを生成する。
func NewPlayerHandler(service PlayerServiceInterface) *PlayerHandler {
	return &PlayerHandler{service: service}
}

// createPlayerRequest は選手登録リクエストのボディ。
type createPlayerRequest struct {
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position"`
	Team     string `json:"team"`
	ImageURL string `json:"imageUrl"`
}

// updatePlayerRequest は選手更新リクエストのボディ。nilのフィールドは変更しない。
type updatePlayerRequest struct {
	Name     *string `json:"name"`
	Number   *int    `json:"number"`
	Position *string `json:"position"`
	Team     *string `json:"team"`
	ImageURL *string `json:"imageUrl"`
}

// recordPerformanceRequest はパフォーマンス記録リクエストのボディ。
type recordPerformanceRequest struct {
	MatchID     string  `json:"matchId"`
	Goals       int     `json:"goals"`
	Assists     int     `json:"assists"`
	Rating      float64 `json:"rating"`
	Energy      int     `json:"energy"`
	Speed       float64 `json:"speed"`
	Performance int     `json:"performance"`
}

// playerResponse は選手情報のAPIレスポンス。
type playerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    int       `json:"number"`
	Position  string    `json:"position"`
	Team      string    `json:"team"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// performanceResponse はパフォーマンス記録のAPIレスポンス。
type performanceResponse struct {
	ID          string    `json:"id"`
	PlayerID    string    `json:"playerId"`
	MatchID     string    `json:"matchId"`
	Goals       int       `json:"goals"`
	Assists     int       `json:"assists"`
	Rating      float64   `json:"rating"`
	Energy      int       `json:"energy"`
	Speed       float64   `json:"speed"`
	Performance int       `json:"performance"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListPlayers は全選手の一覧を返す。
// GET /api/players
func (h *PlayerHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]playerResponse, 0, len(players))
	for _, p := range players {
		resp = append(resp, toPlayerResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPlayer はIDで選手を取得する。
// GET /api/players/:id
func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlayerResponse(p))
}

// CreatePlayer は選手を登録する。管理者専用。
// POST /api/players
func (h *PlayerHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	p, err := h.service.Create(r.Context(), player.CreateInput{
		Name:     req.Name,
		Number:   req.Number,
		Position: req.Position,
		Team:     req.Team,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPlayerResponse(p))
}

// UpdatePlayer は選手を部分更新する。管理者専用。
// PATCH /api/players/:id
func (h *PlayerHandler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req updatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), player.UpdateInput{
		Name:     req.Name,
		Number:   req.Number,
		Position: req.Position,
		Team:     req.Team,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPlayerResponse(p))
}

// DeletePlayer は選手を削除する。管理者専用。
// DELETE /api/players/:id
func (h *PlayerHandler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListPerformances は選手のパフォーマンス記録一覧を返す。
// GET /api/players/:id/performances
func (h *PlayerHandler) ListPerformances(w http.ResponseWriter, r *http.Request) {
	perfs, err := h.service.ListPerformances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]performanceResponse, 0, len(perfs))
	for _, perf := range perfs {
		resp = append(resp, toPerformanceResponse(perf))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecordPerformance は選手の試合別パフォーマンス記録を登録・更新する。管理者専用。
// PUT /api/players/:id/performances
func (h *PlayerHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	var req recordPerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	perf, err := h.service.RecordPerformance(r.Context(), chi.URLParam(r, "id"), player.PerformanceInput{
		MatchID:     req.MatchID,
		Goals:       req.Goals,
		Assists:     req.Assists,
		Rating:      req.Rating,
		Energy:      req.Energy,
		Speed:       req.Speed,
		Performance: req.Performance,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPerformanceResponse(perf))
}

// SetupPlayerRoutes は選手管理関連のルーティングを設定したchi.Routerを返す。
// adminMiddleware が nil でない場合、書き込み系ルートに管理者権限チェックを適用する。
func SetupPlayerRoutes(service PlayerServiceInterface, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewPlayerHandler(service)

	admin := func(r chi.Router) chi.Router {
		if adminMiddleware != nil {
			return r.With(adminMiddleware)
		}
		return r
	}

	r.Route("/api/players", func(r chi.Router) {
		r.Get("/", h.ListPlayers)
		admin(r).Post("/", h.CreatePlayer)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPlayer)
			admin(r).Patch("/", h.UpdatePlayer)
			admin(r).Delete("/", h.DeletePlayer)

			r.Get("/performances", h.ListPerformances)
			admin(r).Put("/performances", h.RecordPerformance)
		})
	})

	return r
}

// toPlayerResponse はmodel.PlayerからAPIレスポンスに変換する。
func toPlayerResponse(p *model.Player) playerResponse {
	return playerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Number:    p.Number,
		Position:  p.Position,
		Team:      p.Team,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// toPerformanceResponse はmodel.PlayerPerformanceからAPIレスポンスに変換する。
func toPerformanceResponse(perf *model.PlayerPerformance) performanceResponse {
	return performanceResponse{
		ID:          perf.ID,
		PlayerID:    perf.PlayerID,
		MatchID:     perf.MatchID,
		Goals:       perf.Goals,
		Assists:     perf.Assists,
		Rating:      perf.Rating,
		Energy:      perf.Energy,
		Speed:       perf.Speed,
		Performance: perf.Performance,
		CreatedAt:   perf.CreatedAt,
	}
}
