package ingest

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestJobLoadsAndExportsGeneratedDataset(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newMemoryStore()
	job := &Job{
		Source:       GeneratedSource{Seed: 3, Config: GeneratorConfig{Videos: 2, Creators: 1, SnapshotsPerVideo: 1}},
		Strict:       true,
		Loader:       newTestLoader(t, db, nil),
		ExportStore:  store,
		ExportPrefix: "exports/latest",
	}

	expectVideo(mock, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	expectSnapshot(mock, 1, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	expectVideo(mock, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	expectSnapshot(mock, 2, 2).WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if result.Summary.VideosInserted != 2 || result.Summary.SnapshotsInserted != 2 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if len(result.Exported) != 2 {
		t.Fatalf("exported = %+v", result.Exported)
	}
	if !strings.HasPrefix(result.Source, "generated:seed=3") {
		t.Fatalf("source = %q", result.Source)
	}
	if _, ok := store.objects["exports/latest/videos.parquet"]; !ok {
		t.Fatal("videos.parquet was not written")
	}
	assertSQLMock(t, mock)
}

func TestJobRequiresTarget(t *testing.T) {
	job := &Job{Source: GeneratedSource{Config: DefaultGeneratorConfig()}}
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected missing target error")
	}
	job = &Job{ExportStore: newMemoryStore()}
	if _, err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected missing source error")
	}
}

func TestJobRejectsInvalidSchedule(t *testing.T) {
	job := &Job{Source: GeneratedSource{Config: DefaultGeneratorConfig()}, ExportStore: newMemoryStore()}
	err := job.RunScheduled(context.Background(), "every tuesday", false)
	if err == nil || !strings.Contains(err.Error(), "invalid schedule") {
		t.Fatalf("RunScheduled() error = %v", err)
	}
}

func TestJobRunScheduledRunsAtStartAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &cancellingSource{
		inner:  GeneratedSource{Seed: 1, Config: GeneratorConfig{Videos: 1, Creators: 1, SnapshotsPerVideo: 2}},
		cancel: cancel,
	}
	store := newMemoryStore()
	job := &Job{Source: source, ExportStore: store, ExportPrefix: "exports/latest"}

	if err := job.RunScheduled(ctx, "0 * * * *", true); err != nil {
		t.Fatalf("RunScheduled() error = %v", err)
	}
	if got := source.reads.Load(); got != 1 {
		t.Fatalf("reads = %d, want 1", got)
	}
	if _, ok := store.objects["exports/latest/video_snapshots.parquet"]; !ok {
		t.Fatal("video_snapshots.parquet was not written")
	}
}

// cancellingSource cancels the job context after its first read.
type cancellingSource struct {
	inner  Source
	cancel context.CancelFunc
	reads  atomic.Int32
}

func (s *cancellingSource) Read(ctx context.Context) ([]byte, error) {
	s.reads.Add(1)
	defer s.cancel()
	return s.inner.Read(ctx)
}

func (s *cancellingSource) String() string {
	return "cancelling:" + s.inner.String()
}
