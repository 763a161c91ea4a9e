// Package cleanup は期限切れリフレッシュセッションの自動削除ジョブを提供する。
// 期限切れの行はセッション解決で既に無視されるため、削除は容量管理のためだけに行う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はクリーンアップの既定の実行間隔。
const DefaultInterval = 24 * time.Hour

// ExpiredSessionDeleter は期限切れセッションの一括削除インターフェース。
// repository.SessionRepositoryが実装する。
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Recorder は削除件数を記録する。metrics.Collectorが実装する。
type Recorder interface {
	RecordSessionsCleaned(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにしない。
type CleanupJob struct {
	sessions ExpiredSessionDeleter
	recorder Recorder
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions ExpiredSessionDeleter, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsCleaned(deletedCount)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後はintervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。Runの失敗はログに残して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	// エラーはRun内でログ済み
	_ = j.Run(ctx)
}
