package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vidmetrics/vidmetrics/internal/observability"
)

const (
	insertVideoSQL = `INSERT INTO videos (
	id, creator_id, video_created_at,
	views_count, likes_count, comments_count, reports_count,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

	insertSnapshotSQL = `INSERT INTO video_snapshots (
	id, video_id,
	views_count, likes_count, comments_count, reports_count,
	delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count,
	created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`
)

const (
	resultInserted = "inserted"
	resultSkipped  = "skipped"
	resultFailed   = "failed"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Summary counts rows per outcome. Skipped rows already existed.
type Summary struct {
	VideosInserted    int
	VideosSkipped     int
	VideosFailed      int
	SnapshotsInserted int
	SnapshotsSkipped  int
	SnapshotsFailed   int
}

func (s Summary) VideosOK() int {
	return s.VideosInserted + s.VideosSkipped
}

func (s Summary) SnapshotsOK() int {
	return s.SnapshotsInserted + s.SnapshotsSkipped
}

func (s Summary) LogAttrs() []any {
	return []any{
		slog.Int("videos_inserted", s.VideosInserted),
		slog.Int("videos_skipped", s.VideosSkipped),
		slog.Int("videos_failed", s.VideosFailed),
		slog.Int("snapshots_inserted", s.SnapshotsInserted),
		slog.Int("snapshots_skipped", s.SnapshotsSkipped),
		slog.Int("snapshots_failed", s.SnapshotsFailed),
	}
}

type Loader struct {
	db     Execer
	logger *slog.Logger
}

func NewLoader(db Execer, logger *slog.Logger) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("loader database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}, nil
}

// Load inserts every video and then its snapshots. Existing ids are left
// untouched. A row failure is logged and counted; a video that fails to
// insert takes its snapshots with it. Only context cancellation aborts the
// load.
func (l *Loader) Load(ctx context.Context, dataset Dataset) (Summary, error) {
	var summary Summary
	defer func() { recordSummary(summary) }()

	for _, invalid := range dataset.InvalidVideos {
		summary.VideosFailed++
		l.logger.WarnContext(ctx, "video_rejected", slog.String("id", invalid.ID), slog.Int("index", invalid.Index), slog.Any("error", invalid.Err))
	}

	for _, video := range dataset.Videos {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("load interrupted: %w", err)
		}

		inserted, err := l.insertVideo(ctx, video)
		if err != nil {
			if ctx.Err() != nil {
				return summary, fmt.Errorf("load interrupted: %w", ctx.Err())
			}
			summary.VideosFailed++
			summary.SnapshotsFailed += len(video.Snapshots) + len(video.InvalidSnapshots)
			l.logger.ErrorContext(ctx, "video_insert_failed",
				slog.Int64("video_id", video.ID),
				slog.Int("snapshots_skipped", len(video.Snapshots)),
				slog.Any("error", err),
			)
			continue
		}
		if inserted {
			summary.VideosInserted++
		} else {
			summary.VideosSkipped++
		}

		for _, invalid := range video.InvalidSnapshots {
			summary.SnapshotsFailed++
			l.logger.WarnContext(ctx, "snapshot_rejected", slog.Int64("video_id", video.ID), slog.String("id", invalid.ID), slog.Any("error", invalid.Err))
		}
		for _, snapshot := range video.Snapshots {
			inserted, err := l.insertSnapshot(ctx, video.ID, snapshot)
			if err != nil {
				if ctx.Err() != nil {
					return summary, fmt.Errorf("load interrupted: %w", ctx.Err())
				}
				summary.SnapshotsFailed++
				l.logger.ErrorContext(ctx, "snapshot_insert_failed",
					slog.Int64("video_id", video.ID),
					slog.Int64("snapshot_id", snapshot.ID),
					slog.Any("error", err),
				)
				continue
			}
			if inserted {
				summary.SnapshotsInserted++
			} else {
				summary.SnapshotsSkipped++
			}
		}
	}

	l.logger.InfoContext(ctx, "dataset_loaded", summary.LogAttrs()...)
	return summary, nil
}

func (l *Loader) insertVideo(ctx context.Context, video Video) (bool, error) {
	result, err := l.db.ExecContext(ctx, insertVideoSQL,
		video.ID,
		video.CreatorID,
		video.VideoCreatedAt.Time,
		video.ViewsCount,
		video.LikesCount,
		video.CommentsCount,
		video.ReportsCount,
		video.CreatedAt.Time,
		video.UpdatedAt.Time,
	)
	if err != nil {
		return false, fmt.Errorf("insert video %d: %w", video.ID, err)
	}
	return affectedRow(result), nil
}

func (l *Loader) insertSnapshot(ctx context.Context, videoID int64, snapshot Snapshot) (bool, error) {
	result, err := l.db.ExecContext(ctx, insertSnapshotSQL,
		snapshot.ID,
		videoID,
		snapshot.ViewsCount,
		snapshot.LikesCount,
		snapshot.CommentsCount,
		snapshot.ReportsCount,
		snapshot.DeltaViewsCount,
		snapshot.DeltaLikesCount,
		snapshot.DeltaCommentsCount,
		snapshot.DeltaReportsCount,
		snapshot.CreatedAt.Time,
		snapshot.UpdatedAt.Time,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot %d: %w", snapshot.ID, err)
	}
	return affectedRow(result), nil
}

// affectedRow reports whether the insert created a row. Drivers that cannot
// report affected rows count as inserted.
func affectedRow(result sql.Result) bool {
	if result == nil {
		return true
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return true
	}
	return rows > 0
}

func recordSummary(summary Summary) {
	observability.AddLoaderRows("videos", resultInserted, summary.VideosInserted)
	observability.AddLoaderRows("videos", resultSkipped, summary.VideosSkipped)
	observability.AddLoaderRows("videos", resultFailed, summary.VideosFailed)
	observability.AddLoaderRows("video_snapshots", resultInserted, summary.SnapshotsInserted)
	observability.AddLoaderRows("video_snapshots", resultSkipped, summary.SnapshotsSkipped)
	observability.AddLoaderRows("video_snapshots", resultFailed, summary.SnapshotsFailed)
}
