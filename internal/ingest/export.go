package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/vidmetrics/vidmetrics/internal/storage"
)

const (
	TableVideos    = "videos"
	TableSnapshots = "video_snapshots"
)

// VideoRow is the Parquet layout of the videos export. Timestamps are unix
// milliseconds in UTC.
type VideoRow struct {
	ID                   int64 `parquet:"id"`
	CreatorID            int64 `parquet:"creator_id"`
	VideoCreatedAtUnixMs int64 `parquet:"video_created_at_unix_ms"`
	ViewsCount           int64 `parquet:"views_count"`
	LikesCount           int64 `parquet:"likes_count"`
	CommentsCount        int64 `parquet:"comments_count"`
	ReportsCount         int64 `parquet:"reports_count"`
	CreatedAtUnixMs      int64 `parquet:"created_at_unix_ms"`
	UpdatedAtUnixMs      int64 `parquet:"updated_at_unix_ms"`
}

// SnapshotRow is the Parquet layout of the video_snapshots export.
type SnapshotRow struct {
	ID                 int64 `parquet:"id"`
	VideoID            int64 `parquet:"video_id"`
	ViewsCount         int64 `parquet:"views_count"`
	LikesCount         int64 `parquet:"likes_count"`
	CommentsCount      int64 `parquet:"comments_count"`
	ReportsCount       int64 `parquet:"reports_count"`
	DeltaViewsCount    int64 `parquet:"delta_views_count"`
	DeltaLikesCount    int64 `parquet:"delta_likes_count"`
	DeltaCommentsCount int64 `parquet:"delta_comments_count"`
	DeltaReportsCount  int64 `parquet:"delta_reports_count"`
	CreatedAtUnixMs    int64 `parquet:"created_at_unix_ms"`
	UpdatedAtUnixMs    int64 `parquet:"updated_at_unix_ms"`
}

type ExportedTable struct {
	Table      string
	ObjectPath string
	Rows       int
	SizeBytes  int64
}

// Rows flattens dataset into export rows. Duplicate ids keep their first
// occurrence, matching what the store keeps on conflict.
func Rows(dataset Dataset) ([]VideoRow, []SnapshotRow) {
	videos := make([]VideoRow, 0, len(dataset.Videos))
	snapshots := make([]SnapshotRow, 0, dataset.SnapshotCount())
	seenVideos := make(map[int64]struct{}, len(dataset.Videos))
	seenSnapshots := make(map[int64]struct{}, dataset.SnapshotCount())

	for _, video := range dataset.Videos {
		if _, ok := seenVideos[video.ID]; !ok {
			seenVideos[video.ID] = struct{}{}
			videos = append(videos, videoRow(video))
		}
		for _, snapshot := range video.Snapshots {
			if _, ok := seenSnapshots[snapshot.ID]; ok {
				continue
			}
			seenSnapshots[snapshot.ID] = struct{}{}
			snapshots = append(snapshots, SnapshotRow{
				ID:                 snapshot.ID,
				VideoID:            video.ID,
				ViewsCount:         snapshot.ViewsCount,
				LikesCount:         snapshot.LikesCount,
				CommentsCount:      snapshot.CommentsCount,
				ReportsCount:       snapshot.ReportsCount,
				DeltaViewsCount:    snapshot.DeltaViewsCount,
				DeltaLikesCount:    snapshot.DeltaLikesCount,
				DeltaCommentsCount: snapshot.DeltaCommentsCount,
				DeltaReportsCount:  snapshot.DeltaReportsCount,
				CreatedAtUnixMs:    snapshot.CreatedAt.UnixMilli(),
				UpdatedAtUnixMs:    snapshot.UpdatedAt.UnixMilli(),
			})
		}
	}
	return videos, snapshots
}

func videoRow(video Video) VideoRow {
	return VideoRow{
		ID:                   video.ID,
		CreatorID:            video.CreatorID,
		VideoCreatedAtUnixMs: video.VideoCreatedAt.UnixMilli(),
		ViewsCount:           video.ViewsCount,
		LikesCount:           video.LikesCount,
		CommentsCount:        video.CommentsCount,
		ReportsCount:         video.ReportsCount,
		CreatedAtUnixMs:      video.CreatedAt.UnixMilli(),
		UpdatedAtUnixMs:      video.UpdatedAt.UnixMilli(),
	}
}

// ExportParquet writes videos.parquet and video_snapshots.parquet under
// prefix for the embedded query engine.
func ExportParquet(ctx context.Context, dataset Dataset, store storage.ObjectStore, prefix string) ([]ExportedTable, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	videos, snapshots := Rows(dataset)

	videoData, err := EncodeParquet(videos)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TableVideos, err)
	}
	snapshotData, err := EncodeParquet(snapshots)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", TableSnapshots, err)
	}

	exported := make([]ExportedTable, 0, 2)
	for _, table := range []struct {
		name string
		data []byte
		rows int
	}{
		{name: TableVideos, data: videoData, rows: len(videos)},
		{name: TableSnapshots, data: snapshotData, rows: len(snapshots)},
	} {
		objectPath, err := storage.TablePath(prefix, table.name)
		if err != nil {
			return exported, err
		}
		info, err := store.Put(ctx, objectPath, bytes.NewReader(table.data), int64(len(table.data)), storage.PutOptions{
			ContentType: "application/octet-stream",
			Metadata: map[string]string{
				storage.MetaTable: table.name,
				storage.MetaRows:  strconv.Itoa(table.rows),
			},
		})
		if err != nil {
			return exported, fmt.Errorf("upload %s: %w", objectPath, err)
		}
		exported = append(exported, ExportedTable{
			Table:      table.name,
			ObjectPath: objectPath,
			Rows:       table.rows,
			SizeBytes:  info.Size,
		})
	}
	return exported, nil
}

// EncodeParquet writes rows as a single Parquet file. An empty slice still
// produces a valid file with the schema of T.
func EncodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
