package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/liveplayer"
	"github.com/hitoshi/matchside/internal/model"
)

// LivePlayerServiceInterface はライブ出演ハンドラーが必要とするサービスインターフェース。
type LivePlayerServiceInterface interface {
	Get(ctx context.Context, id string) (*model.LivePlayer, error)
	GetByPlayerID(ctx context.Context, playerID string) (*model.LivePlayer, error)
	List(ctx context.Context) ([]*model.LivePlayer, error)
	ListActive(ctx context.Context) ([]*model.LivePlayer, error)
	Upsert(ctx context.Context, input liveplayer.UpsertInput) (*model.LivePlayer, error)
	Update(ctx context.Context, id string, input liveplayer.UpdateInput) (*model.LivePlayer, error)
	UpdateCoordinates(ctx context.Context, id string, coordinates json.RawMessage) (*model.LivePlayer, error)
	Delete(ctx context.Context, id string) error
}

// LivePlayerHandler はライブ出演情報のHTTPハンドラー。
type LivePlayerHandler struct {
	service LivePlayerServiceInterface
}

// NewLivePlayerHandler はLivePlayerHandlerを生成する。
func NewLivePlayerHandler(service LivePlayerServiceInterface) *LivePlayerHandler {
	return &LivePlayerHandler{service: service}
}

// upsertLivePlayerRequest はライブ出演情報登録リクエストのボディ。
type upsertLivePlayerRequest struct {
	PlayerID    string          `json:"playerId"`
	ImageURL    string          `json:"imageUrl"`
	VideoURL    string          `json:"videoUrl"`
	IsActive    *bool           `json:"isActive"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// updateLivePlayerRequest はライブ出演情報更新リクエストのボディ。nilのフィールドは変更しない。
type updateLivePlayerRequest struct {
	ImageURL    *string         `json:"imageUrl"`
	VideoURL    *string         `json:"videoUrl"`
	IsActive    *bool           `json:"isActive"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// updateCoordinatesRequest は座標更新リクエストのボディ。
type updateCoordinatesRequest struct {
	Coordinates json.RawMessage `json:"coordinates"`
}

// livePlayerResponse はライブ出演情報のAPIレスポンス。
type livePlayerResponse struct {
	ID          string          `json:"id"`
	PlayerID    string          `json:"playerId"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	VideoURL    string          `json:"videoUrl,omitempty"`
	IsActive    bool            `json:"isActive"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	LastSeen    time.Time       `json:"lastSeen"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ListLivePlayers は全ライブ出演情報の一覧を返す。
// GET /api/live-players
func (h *LivePlayerHandler) ListLivePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponses(players))
}

// ListActiveLivePlayers は出演中の選手のライブ出演情報のみを返す。
// GET /api/live-players/active
func (h *LivePlayerHandler) ListActiveLivePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.service.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponses(players))
}

// GetLivePlayer はIDでライブ出演情報を取得する。
// GET /api/live-players/:id
func (h *LivePlayerHandler) GetLivePlayer(w http.ResponseWriter, r *http.Request) {
	lp, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponse(lp))
}

// GetLivePlayerByPlayer は選手IDでライブ出演情報を取得する。
// GET /api/live-players/player/:playerId
func (h *LivePlayerHandler) GetLivePlayerByPlayer(w http.ResponseWriter, r *http.Request) {
	lp, err := h.service.GetByPlayerID(r.Context(), chi.URLParam(r, "playerId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponse(lp))
}

// UpsertLivePlayer はライブ出演情報を登録する。管理者専用。
// 同一選手のレコードが既にある場合は更新になる。
// POST /api/live-players
func (h *LivePlayerHandler) UpsertLivePlayer(w http.ResponseWriter, r *http.Request) {
	var req upsertLivePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	lp, err := h.service.Upsert(r.Context(), liveplayer.UpsertInput{
		PlayerID:    req.PlayerID,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		IsActive:    req.IsActive,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLivePlayerResponse(lp))
}

// UpdateLivePlayer はライブ出演情報を部分更新する。管理者専用。
// PUT /api/live-players/:id
func (h *LivePlayerHandler) UpdateLivePlayer(w http.ResponseWriter, r *http.Request) {
	var req updateLivePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	lp, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), liveplayer.UpdateInput{
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		IsActive:    req.IsActive,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponse(lp))
}

// UpdateLivePlayerCoordinates はトラッキング座標のみを更新する。管理者専用。
// PUT /api/live-players/:id/coordinates
func (h *LivePlayerHandler) UpdateLivePlayerCoordinates(w http.ResponseWriter, r *http.Request) {
	var req updateCoordinatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	lp, err := h.service.UpdateCoordinates(r.Context(), chi.URLParam(r, "id"), req.Coordinates)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLivePlayerResponse(lp))
}

// DeleteLivePlayer はライブ出演情報を削除する。管理者専用。
// DELETE /api/live-players/:id
func (h *LivePlayerHandler) DeleteLivePlayer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupLivePlayerRoutes はライブ出演情報関連のルーティングを設定したchi.Routerを返す。
// adminMiddleware が nil でない場合、書き込み系ルートに管理者権限チェックを適用する。
func SetupLivePlayerRoutes(service LivePlayerServiceInterface, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewLivePlayerHandler(service)

	admin := func(r chi.Router) chi.Router {
		if adminMiddleware != nil {
			return r.With(adminMiddleware)
		}
		return r
	}

	r.Route("/api/live-players", func(r chi.Router) {
		r.Get("/", h.ListLivePlayers)
		admin(r).Post("/", h.UpsertLivePlayer)

		r.Get("/active", h.ListActiveLivePlayers)
		r.Get("/player/{playerId}", h.GetLivePlayerByPlayer)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetLivePlayer)
			admin(r).Put("/", h.UpdateLivePlayer)
			admin(r).Put("/coordinates", h.UpdateLivePlayerCoordinates)
			admin(r).Delete("/", h.DeleteLivePlayer)
		})
	})

	return r
}

// toLivePlayerResponse はmodel.LivePlayerからAPIレスポンスに変換する。
func toLivePlayerResponse(lp *model.LivePlayer) livePlayerResponse {
	return livePlayerResponse{
		ID:          lp.ID,
		PlayerID:    lp.PlayerID,
		ImageURL:    lp.ImageURL,
		VideoURL:    lp.VideoURL,
		IsActive:    lp.IsActive,
		Coordinates: lp.Coordinates,
		LastSeen:    lp.LastSeen,
		CreatedAt:   lp.CreatedAt,
		UpdatedAt:   lp.UpdatedAt,
	}
}

func toLivePlayerResponses(players []*model.LivePlayer) []livePlayerResponse {
	resp := make([]livePlayerResponse, 0, len(players))
	for _, lp := range players {
		resp = append(resp, toLivePlayerResponse(lp))
	}
	return resp
}
