// Package app はアプリケーションの起動・依存関係のワイヤリング・
// グレースフルシャットダウンを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/matchside/internal/analytics"
	"github.com/hitoshi/matchside/internal/auth"
	"github.com/hitoshi/matchside/internal/config"
	"github.com/hitoshi/matchside/internal/database"
	"github.com/hitoshi/matchside/internal/handler"
	"github.com/hitoshi/matchside/internal/liveplayer"
	"github.com/hitoshi/matchside/internal/logger"
	"github.com/hitoshi/matchside/internal/match"
	"github.com/hitoshi/matchside/internal/metrics"
	"github.com/hitoshi/matchside/internal/middleware"
	"github.com/hitoshi/matchside/internal/player"
	"github.com/hitoshi/matchside/internal/post"
	"github.com/hitoshi/matchside/internal/repository"
	"github.com/hitoshi/matchside/internal/room"
	"github.com/hitoshi/matchside/internal/security"
	"github.com/hitoshi/matchside/internal/token"
	"github.com/hitoshi/matchside/internal/user"
	"github.com/hitoshi/matchside/internal/vision"
	"github.com/hitoshi/matchside/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	refreshRepo := repository.NewPostgresRefreshTokenRepo(db)
	playerRepo := repository.NewPostgresPlayerRepo(db)
	perfRepo := repository.NewPostgresPerformanceRepo(db)
	matchRepo := repository.NewPostgresMatchRepo(db)
	eventRepo := repository.NewPostgresMatchEventRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)
	liveRepo := repository.NewPostgresLivePlayerRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. トークン発行基盤の初期化
	issuer := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	refreshMgr := token.NewRefreshManager(refreshRepo, cfg.RefreshTokenTTL)

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	textSanitizer := security.NewTextSanitizer()

	// 6. ドメインサービスの初期化
	verifiers := map[string]auth.SocialVerifier{
		"google": auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			TokenInfoURL: cfg.GoogleTokenInfoURL,
			ClientID:     cfg.GoogleClientID,
		}),
		"apple": auth.NewAppleVerifier(auth.AppleVerifierConfig{
			KeysURL:  cfg.AppleKeysURL,
			ClientID: cfg.AppleClientID,
		}),
	}
	authService := auth.NewService(userRepo, issuer, refreshMgr, verifiers)
	authService.SetMetrics(collector)

	userService := user.NewService(userRepo, refreshMgr)
	playerService := player.NewService(playerRepo, perfRepo)
	livePlayerService := liveplayer.NewService(liveRepo, playerRepo)
	matchService := match.NewService(matchRepo, eventRepo)

	minter := room.NewTokenMinter(cfg.RoomAPIKey, cfg.RoomAPISecret, cfg.RoomTokenTTL)
	captions := room.NewCaptionBroadcaster(cfg.RoomHost, minter)
	roomService := room.NewService(roomRepo, minter, captions, textSanitizer)

	visionClient := vision.NewClient(
		&http.Client{Timeout: cfg.VisionTimeout},
		slog.Default(), cfg.VisionEndpoint, cfg.VisionAPIKey, cfg.VisionModel,
	)
	imageFetcher := vision.NewImageFetcher(ssrfGuard, cfg.VisionTimeout, cfg.ImageFetchMax)
	visionService := vision.NewService(visionClient, imageFetcher, vision.NewMemory(0), slog.Default())

	postService := post.NewService(visionClient, textSanitizer, slog.Default())

	analyticsService := analytics.NewService(
		matchRepo, playerRepo, cfg.AnalyticsWebhookURL,
		&http.Client{Timeout: cfg.VisionTimeout}, slog.Default(),
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitVision),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     issuer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:       authService,
		UserService:       userService,
		PlayerService:     playerService,
		LivePlayerService: livePlayerService,
		MatchService:      matchService,
		RoomService:       roomService,
		VisionService:     visionService,
		PostService:       postService,
		AnalyticsService:  analyticsService,

		VisionMetrics: collector,
		HTTPMetrics:   collector,
		Gatherer:      registry,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れリフレッシュトークンと終了済みライブルームのクリーンアップジョブを
// 定期実行する。SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	refreshRepo := repository.NewPostgresRefreshTokenRepo(db)
	roomRepo := repository.NewPostgresRoomRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(refreshRepo, roomRepo, collector, slog.Default())
	cleanupJob.TokenRetention = cfg.TokenRetention
	cleanupJob.RoomRetention = cfg.RoomRetention

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("token_retention", cfg.TokenRetention),
		slog.Duration("room_retention", cfg.RoomRetention),
	)

	// 起動直後に1回実行し、以降は設定間隔で繰り返す
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
