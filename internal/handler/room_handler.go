package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matchside/internal/middleware"
	"github.com/hitoshi/matchside/internal/model"
	"github.com/hitoshi/matchside/internal/room"
)

// RoomServiceInterface はライブルームハンドラーが必要とするサービスインターフェース。
type RoomServiceInterface interface {
	List(ctx context.Context) ([]*model.LiveRoom, error)
	ListActive(ctx context.Context) ([]*model.LiveRoom, error)
	UpdateStatus(ctx context.Context, roomID string, status model.RoomStatus) (*model.LiveRoom, error)
	JoinAsSubscriber(ctx context.Context, name, userID string) (*room.JoinGrant, error)
	JoinAsPublisher(ctx context.Context, name, userID string) (*room.JoinGrant, error)
	SendCaption(ctx context.Context, roomID, text string) error
}

// RoomHandler はライブルームのHTTPハンドラー。
type RoomHandler struct {
	service RoomServiceInterface
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(service RoomServiceInterface) *RoomHandler {
	return &RoomHandler{service: service}
}

// joinRoomRequest はルーム参加トークン発行リクエストのボディ。
type joinRoomRequest struct {
	RoomName string `json:"roomName"`
}

// sendCaptionRequest は字幕配信リクエストのボディ。
type sendCaptionRequest struct {
	Text string `json:"text"`
}

// updateRoomStatusRequest はルームステータス更新リクエストのボディ。
type updateRoomStatusRequest struct {
	Status string `json:"status"`
}

// roomResponse はライブルームのAPIレスポンス。
type roomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RoomID    string    `json:"roomId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// joinGrantResponse は参加トークン発行のレスポンス。
type joinGrantResponse struct {
	Token string       `json:"token"`
	Room  roomResponse `json:"room"`
}

// ListRooms は全ルームの一覧を返す。activeクエリパラメータでACTIVEのみに絞り込める。
// GET /api/rooms
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	var (
		rooms []*model.LiveRoom
		err   error
	)
	if r.URL.Query().Get("active") == "true" {
		rooms, err = h.service.ListActive(r.Context())
	} else {
		rooms, err = h.service.List(r.Context())
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]roomResponse, 0, len(rooms))
	for _, rm := range rooms {
		resp = append(resp, toRoomResponse(rm))
	}
	writeJSON(w, http.StatusOK, resp)
}

// IssueToken は視聴者向けの参加トークンを発行する。
// ルームが存在しない場合は新規作成する。
// POST /api/rooms/token
func (h *RoomHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	h.issueToken(w, r, h.service.JoinAsSubscriber)
}

// IssuePublisherToken は配信者向けの参加トークンを発行する。
// POST /api/rooms/publisher-token
func (h *RoomHandler) IssuePublisherToken(w http.ResponseWriter, r *http.Request) {
	h.issueToken(w, r, h.service.JoinAsPublisher)
}

func (h *RoomHandler) issueToken(w http.ResponseWriter, r *http.Request, join func(ctx context.Context, name, userID string) (*room.JoinGrant, error)) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	grant, err := join(r.Context(), req.RoomName, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, joinGrantResponse{
		Token: grant.Token,
		Room:  toRoomResponse(grant.Room),
	})
}

// SendCaption はルームの参加者全員に字幕を配信する。
// POST /api/rooms/:roomId/captions
func (h *RoomHandler) SendCaption(w http.ResponseWriter, r *http.Request) {
	var req sendCaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.SendCaption(r.Context(), chi.URLParam(r, "roomId"), req.Text); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "字幕を配信しました。"})
}

// UpdateStatus はルームのステータスを更新する。配信終了時にENDEDへ遷移させる。
// PATCH /api/rooms/:roomId/status
func (h *RoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateRoomStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	rm, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "roomId"), model.RoomStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponse(rm))
}

// SetupRoomRoutes はライブルーム関連のルーティングを設定したchi.Routerを返す。
// adminMiddleware が nil でない場合、配信者トークン・字幕配信・ステータス更新に
// 管理者権限チェックを適用する。
func SetupRoomRoutes(service RoomServiceInterface, adminMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewRoomHandler(service)

	admin := func(r chi.Router) chi.Router {
		if adminMiddleware != nil {
			return r.With(adminMiddleware)
		}
		return r
	}

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", h.ListRooms)
		r.Post("/token", h.IssueToken)
		admin(r).Post("/publisher-token", h.IssuePublisherToken)

		r.Route("/{roomId}", func(r chi.Router) {
			admin(r).Post("/captions", h.SendCaption)
			admin(r).Patch("/status", h.UpdateStatus)
		})
	})

	return r
}

// toRoomResponse はmodel.LiveRoomからAPIレスポンスに変換する。
func toRoomResponse(rm *model.LiveRoom) roomResponse {
	return roomResponse{
		ID:        rm.ID,
		Name:      rm.Name,
		RoomID:    rm.RoomID,
		Status:    string(rm.Status),
		CreatedAt: rm.CreatedAt,
		UpdatedAt: rm.UpdatedAt,
	}
}
