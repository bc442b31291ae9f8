// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 失効・期限切れから猶予期間を過ぎたリフレッシュトークンと、
// 配信終了から保持期間を過ぎたライブルームを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/matchside/internal/repository"
)

// MetricsRecorder はクリーンアップ結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCleanupDeleted(kind string, count int64)
}

// CleanupJob は期限切れデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	tokenRepo repository.RefreshTokenRepository
	roomRepo  repository.RoomRepository
	metrics   MetricsRecorder
	logger    *slog.Logger

	// TokenRetention は期限切れトークンを物理削除するまでの猶予期間（デフォルト: 30日）。
	TokenRetention time.Duration
	// RoomRetention は終了済みルームを物理削除するまでの保持期間（デフォルト: 7日）。
	RoomRetention time.Duration

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(tokenRepo repository.RefreshTokenRepository, roomRepo repository.RoomRepository, metrics MetricsRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		tokenRepo:      tokenRepo,
		roomRepo:       roomRepo,
		metrics:        metrics,
		logger:         logger,
		TokenRetention: 30 * 24 * time.Hour,
		RoomRetention:  7 * 24 * time.Hour,
		now:            time.Now,
	}
}

// Run は保持期間を超過したトークンとルームを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
// 片方の削除が失敗してももう片方は実行し、最後にエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	var firstErr error

	// 1. 期限切れリフレッシュトークンの削除
	tokenCutoff := start.Add(-j.TokenRetention)
	tokensDeleted, err := j.tokenRepo.DeleteExpiredBefore(ctx, tokenCutoff)
	if err != nil {
		j.logger.Error("期限切れトークンの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", tokenCutoff),
		)
		firstErr = fmt.Errorf("期限切れトークンの削除に失敗: %w", err)
	} else if j.metrics != nil {
		j.metrics.RecordCleanupDeleted("refresh_tokens", tokensDeleted)
	}

	// 2. 終了済みルームの削除
	roomCutoff := start.Add(-j.RoomRetention)
	roomsDeleted, err := j.roomRepo.DeleteEndedBefore(ctx, roomCutoff)
	if err != nil {
		j.logger.Error("終了済みルームの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", roomCutoff),
		)
		if firstErr == nil {
			firstErr = fmt.Errorf("終了済みルームの削除に失敗: %w", err)
		}
	} else if j.metrics != nil {
		j.metrics.RecordCleanupDeleted("rooms", roomsDeleted)
	}

	if firstErr != nil {
		return firstErr
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("tokens_deleted", tokensDeleted),
		slog.Int64("rooms_deleted", roomsDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
