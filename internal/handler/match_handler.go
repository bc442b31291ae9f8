package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/match"
	"github.com/hitoshi/matchside/internal/model"
)

// MatchServiceInterface は試合ハンドラーが必要とするサービスインターフェース。
type MatchServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Match, error)
	List(ctx context.Context) ([]*model.Match, error)
	GetLive(ctx context.Context) (*model.Match, error)
	Create(ctx context.Context, input match.CreateInput) (*model.Match, error)
	Update(ctx context.Context, id string, input match.UpdateInput) (*model.Match, error)
	Delete(ctx context.Context, id string) error
	ListEvents(ctx context.Context, matchID string) ([]*model.MatchEvent, error)
	AddEvent(ctx context.Context, matchID string, input match.EventInput) (*model.MatchEvent, error)
	GetGameInfo(ctx context.Context) (*model.GameInfo, error)
	ListReplayMoments(ctx context.Context) ([]*model.ReplayMoment, error)
}

// MatchHandler は試合管理のHTTPハンドラー。
type MatchHandler struct {
	service MatchServiceInterface
}

// NewMatchHandler はMatchHandlerを生成する。
func NewMatchHandler(service MatchServiceInterface) *MatchHandler {
	return &MatchHandler{service: service}
}

// createMatchRequest は試合登録リクエストのボディ。
type createMatchRequest struct {
	Stadium  string    `json:"stadium"`
	Date     time.Time `json:"date"`
	HomeTeam string    `json:"homeTeam"`
	AwayTeam string    `json:"awayTeam"`
	Status   string    `json:"status"`
	ImageURL string    `json:"imageUrl"`
}

// updateMatchRequest は試合更新リクエストのボディ。nilのフィールドは変更しない。
type updateMatchRequest struct {
	Stadium   *string    `json:"stadium"`
	Date      *time.Time `json:"date"`
	HomeScore *int       `json:"homeScore"`
	AwayScore *int       `json:"awayScore"`
	Status    *string    `json:"status"`
	ImageURL  *string    `json:"imageUrl"`
}

// addEventRequest は試合イベント登録リクエストのボディ。
type addEventRequest struct {
	Minute      int    `json:"minute"`
	Type        string `json:"type"`
	Team        string `json:"team"`
	PlayerName  string `json:"playerName"`
	Description string `json:"description"`
}

// matchResponse は試合情報のAPIレスポンス。
type matchResponse struct {
	ID        string    `json:"id"`
	Stadium   string    `json:"stadium"`
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	HomeScore int       `json:"homeScore"`
	AwayScore int       `json:"awayScore"`
	Status    string    `json:"status"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// matchEventResponse は試合イベントのAPIレスポンス。
type matchEventResponse struct {
	ID          string    `json:"id"`
	MatchID     string    `json:"matchId"`
	Minute      int       `json:"minute"`
	Type        string    `json:"type"`
	Team        string    `json:"team"`
	PlayerName  string    `json:"playerName,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// gameInfoResponse はライブ画面向けの現在試合サマリのレスポンス。
type gameInfoResponse struct {
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	HomeScore   int    `json:"homeScore"`
	AwayScore   int    `json:"awayScore"`
	CurrentTime string `json:"currentTime"`
	MatchPhase  string `json:"matchPhase"`
}

// replayMomentResponse はリプレイ候補のレスポンス。
type replayMomentResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Minute   string `json:"minute"`
	Title    string `json:"title"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// ListMatches は全試合の一覧を返す。
// GET /api/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		resp = append(resp, toMatchResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLiveMatch は進行中の試合を返す。
// GET /api/matches/live
func (h *MatchHandler) GetLiveMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetLive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

// GetGameInfo はライブ画面向けの現在試合サマリを返す。
// GET /api/matches/live/game-info
func (h *MatchHandler) GetGameInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetGameInfo(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, gameInfoResponse{
		HomeTeam:    info.HomeTeam,
		AwayTeam:    info.AwayTeam,
		HomeScore:   info.HomeScore,
		AwayScore:   info.AwayScore,
		CurrentTime: info.CurrentTime,
		MatchPhase:  info.MatchPhase,
	})
}

// ListReplayMoments はライブ画面で提示するリプレイ候補を返す。
// GET /api/matches/live/replay-moments
func (h *MatchHandler) ListReplayMoments(w http.ResponseWriter, r *http.Request) {
	moments, err := h.service.ListReplayMoments(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]replayMomentResponse, 0, len(moments))
	for _, m := range moments {
		resp = append(resp, replayMomentResponse{
			ID:       m.ID,
			Type:     string(m.Type),
			Minute:   m.Minute,
			Title:    m.Title,
			VideoURL: m.VideoURL,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMatch はIDで試合を取得する。
// GET /api/matches/:id
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

// CreateMatch は試合を登録する。管理者専用。
// POST /api/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	m, err := h.service.Create(r.Context(), match.CreateInput{
		Stadium:  req.Stadium,
		Date:     req.Date,
		HomeTeam: req.HomeTeam,
		AwayTeam: req.AwayTeam,
		Status:   model.MatchStatus(req.Status),
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMatchResponse(m))
}

// UpdateMatch は試合を部分更新する。管理者専用。
// PATCH /api/matches/:id
func (h *MatchHandler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	var req updateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := match.UpdateInput{
		Stadium:   req.Stadium,
		Date:      req.Date,
		HomeScore: req.HomeScore,
		AwayScore: req.AwayScore,
		ImageURL:  req.ImageURL,
	}
	if req.Status != nil {
		status := model.MatchStatus(*req.Status)
		input.Status = &status
	}

	m, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

// DeleteMatch は試合を削除する。管理者専用。
// DELETE /api/matches/:id
func (h *MatchHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEvents は試合のイベントタイムラインを返す。
// GET /api/matches/:id/events
func (h *MatchHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]matchEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, toMatchEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddEvent は試合にイベントを追加する。管理者専用。
// POST /api/matches/:id/events
func (h *MatchHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	ev, err := h.service.AddEvent(r.Context(), chi.URLParam(r, "id"), match.EventInput{
		Minute:      req.Minute,
		Type:        req.Type,
		Team:        req.Team,
		PlayerName:  req.PlayerName,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMatchEventResponse(ev))
}

// SetupMatchRoutes は試合管理関連のルーティングを設定したchi.Routerを返す。
// adminMiddleware が nil でない場合、書き込み系ルートに管理者権限チェックを適用する。
//
// /api/matches/live 系のルートは /{id} より先に定義する必要がある
// （"live" が試合IDとして解釈されるのを防ぐ）。
func SetupMatchRoutes(service MatchServiceInterface, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewMatchHandler(service)

	admin := func(r chi.Router) chi.Router {
		if adminMiddleware != nil {
			return r.With(adminMiddleware)
		}
		return r
	}

	r.Route("/api/matches", func(r chi.Router) {
		r.Get("/", h.ListMatches)
		admin(r).Post("/", h.CreateMatch)

		r.Route("/live", func(r chi.Router) {
			r.Get("/", h.GetLiveMatch)
			r.Get("/game-info", h.GetGameInfo)
			r.Get("/replay-moments", h.ListReplayMoments)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetMatch)
			admin(r).Patch("/", h.UpdateMatch)
			admin(r).Delete("/", h.DeleteMatch)

			r.Get("/events", h.ListEvents)
			admin(r).Post("/events", h.AddEvent)
		})
	})

	return r
}

// toMatchResponse はmodel.MatchからAPIレスポンスに変換する。
func toMatchResponse(m *model.Match) matchResponse {
	return matchResponse{
		ID:        m.ID,
		Stadium:   m.Stadium,
		Date:      m.Date,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		HomeScore: m.HomeScore,
		AwayScore: m.AwayScore,
		Status:    string(m.Status),
		ImageURL:  m.ImageURL,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// toMatchEventResponse はmodel.MatchEventからAPIレスポンスに変換する。
func toMatchEventResponse(ev *model.MatchEvent) matchEventResponse {
	return matchEventResponse{
		ID:          ev.ID,
		MatchID:     ev.MatchID,
		Minute:      ev.Minute,
		Type:        ev.Type,
		Team:        ev.Team,
		PlayerName:  ev.PlayerName,
		Description: ev.Description,
		CreatedAt:   ev.CreatedAt,
	}
}
