package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/matchside/internal/metrics"
	"github.com/hitoshi/matchside/internal/middleware"
	"github.com/hitoshi/matchside/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService       AuthServiceInterface
	UserService       UserServiceInterface
	PlayerService     PlayerServiceInterface
	LivePlayerService LivePlayerServiceInterface
	MatchService      MatchServiceInterface
	RoomService       RoomServiceInterface
	VisionService     VisionServiceInterface
	PostService       PostServiceInterface
	AnalyticsService  AnalyticsServiceInterface

	// メトリクス
	VisionMetrics VisionMetricsRecorder
	HTTPMetrics   middleware.HTTPStatusRecorder
	Gatherer      prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeadersMiddleware → LoggingMiddleware → MetricsMiddleware
//	→ RecoveryMiddleware → AuthMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と /health・/metrics は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	playerHandler := NewPlayerHandler(deps.PlayerService)
	livePlayerHandler := NewLivePlayerHandler(deps.LivePlayerService)
	matchHandler := NewMatchHandler(deps.MatchService)
	roomHandler := NewRoomHandler(deps.RoomService)
	visionHandler := NewVisionHandler(deps.VisionService, deps.MatchService, deps.VisionMetrics)
	postHandler := NewPostHandler(deps.PostService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService)

	adminOnly := middleware.NewRequireRoleMiddleware(model.RoleAdmin)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh-token", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/social-login", authHandler.SocialLogin)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", userHandler.ListUsers)
				r.Post("/", userHandler.CreateUser)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.GetUser)
					r.Patch("/", userHandler.UpdateUser)
					r.Delete("/", userHandler.DeleteUser)
				})
			})
		})

		// 選手管理
		r.Route("/api/players", func(r chi.Router) {
			r.Get("/", playerHandler.ListPlayers)
			r.With(adminOnly).Post("/", playerHandler.CreatePlayer)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", playerHandler.GetPlayer)
				r.With(adminOnly).Patch("/", playerHandler.UpdatePlayer)
				r.With(adminOnly).Delete("/", playerHandler.DeletePlayer)

				r.Get("/performances", playerHandler.ListPerformances)
				r.With(adminOnly).Put("/performances", playerHandler.RecordPerformance)
			})
		})

		// ライブ出演情報
		// /active と /player 系は /{id} より先に定義する（パスセグメントをIDとして解釈させない）
		r.Route("/api/live-players", func(r chi.Router) {
			r.Get("/", livePlayerHandler.ListLivePlayers)
			r.With(adminOnly).Post("/", livePlayerHandler.UpsertLivePlayer)

			r.Get("/active", livePlayerHandler.ListActiveLivePlayers)
			r.Get("/player/{playerId}", livePlayerHandler.GetLivePlayerByPlayer)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", livePlayerHandler.GetLivePlayer)
				r.With(adminOnly).Put("/", livePlayerHandler.UpdateLivePlayer)
				r.With(adminOnly).Put("/coordinates", livePlayerHandler.UpdateLivePlayerCoordinates)
				r.With(adminOnly).Delete("/", livePlayerHandler.DeleteLivePlayer)
			})
		})

		// 試合管理
		// /live 系は /{id} より先に定義する（"live" を試合IDとして解釈させない）
		r.Route("/api/matches", func(r chi.Router) {
			r.Get("/", matchHandler.ListMatches)
			r.With(adminOnly).Post("/", matchHandler.CreateMatch)

			r.Route("/live", func(r chi.Router) {
				r.Get("/", matchHandler.GetLiveMatch)
				r.Get("/game-info", matchHandler.GetGameInfo)
				r.Get("/replay-moments", matchHandler.ListReplayMoments)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", matchHandler.GetMatch)
				r.With(adminOnly).Patch("/", matchHandler.UpdateMatch)
				r.With(adminOnly).Delete("/", matchHandler.DeleteMatch)

				r.Get("/events", matchHandler.ListEvents)
				r.With(adminOnly).Post("/events", matchHandler.AddEvent)
			})
		})

		// ライブルーム
		r.Route("/api/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.ListRooms)
			r.Post("/token", roomHandler.IssueToken)
			r.With(adminOnly).Post("/publisher-token", roomHandler.IssuePublisherToken)

			r.Route("/{roomId}", func(r chi.Router) {
				r.With(adminOnly).Post("/captions", roomHandler.SendCaption)
				r.With(adminOnly).Patch("/status", roomHandler.UpdateStatus)
			})
		})

		// 画像解析（専用レート制限を追加）
		r.Route("/api/vision", func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.VisionMiddleware()).Post("/analyze", visionHandler.Analyze)
			} else {
				r.Post("/analyze", visionHandler.Analyze)
			}
			r.Get("/memory", visionHandler.ListMemory)
		})

		// SNS投稿生成（画像解析と同じレート制限）
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.VisionMiddleware()).Post("/api/posts/generate", postHandler.Generate)
		} else {
			r.Post("/api/posts/generate", postHandler.Generate)
		}

		// 映像フレーム解析（画像解析と同じレート制限）
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.VisionMiddleware()).Post("/api/analytics/upload", analyticsHandler.UploadFrame)
		} else {
			r.Post("/api/analytics/upload", analyticsHandler.UploadFrame)
		}
	})

	return r
}
