package ingest

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	cfg := GeneratorConfig{Videos: 5, Creators: 2, SnapshotsPerVideo: 3}
	g1, err := NewGenerator(42, cfg)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	g2, err := NewGenerator(42, cfg)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	d1, d2 := g1.Generate(), g2.Generate()
	if !reflect.DeepEqual(d1, d2) {
		t.Fatal("datasets differ for the same seed")
	}
}

func TestGeneratorKeepsCountersConsistent(t *testing.T) {
	g, err := NewGenerator(7, GeneratorConfig{Videos: 20, Creators: 4, SnapshotsPerVideo: 6})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	dataset := g.Generate()
	if len(dataset.Videos) != 20 || dataset.SnapshotCount() != 120 {
		t.Fatalf("dataset = %d videos, %d snapshots", len(dataset.Videos), dataset.SnapshotCount())
	}

	seen := map[int64]struct{}{}
	for _, video := range dataset.Videos {
		if video.CreatorID < 1 || video.CreatorID > 4 {
			t.Fatalf("creator_id = %d", video.CreatorID)
		}
		var views int64
		for i, snapshot := range video.Snapshots {
			if _, ok := seen[snapshot.ID]; ok {
				t.Fatalf("duplicate snapshot id %d", snapshot.ID)
			}
			seen[snapshot.ID] = struct{}{}
			views += snapshot.DeltaViewsCount
			if snapshot.ViewsCount != views {
				t.Fatalf("video %d snapshot %d views = %d, want %d", video.ID, i, snapshot.ViewsCount, views)
			}
			if !snapshot.CreatedAt.After(video.VideoCreatedAt.Time) {
				t.Fatalf("snapshot %d measured before publication", snapshot.ID)
			}
		}
		if video.ViewsCount != views {
			t.Fatalf("video %d views = %d, want %d", video.ID, video.ViewsCount, views)
		}
	}
}

func TestGeneratedDatasetRoundTripsThroughSchema(t *testing.T) {
	g, err := NewGenerator(1, GeneratorConfig{Videos: 3, Creators: 1, SnapshotsPerVideo: 2})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	raw, err := json.Marshal(g.Generate())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if err := ValidateDocument(raw); err != nil {
		t.Fatalf("ValidateDocument() error = %v", err)
	}
	dataset, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(dataset.Videos) != 3 || len(dataset.InvalidVideos) != 0 {
		t.Fatalf("dataset = %+v", dataset)
	}
}

func TestNewGeneratorValidatesConfig(t *testing.T) {
	for _, cfg := range []GeneratorConfig{
		{Videos: -1, Creators: 1},
		{Videos: 1, Creators: 0},
		{Videos: 1, Creators: 1, SnapshotsPerVideo: -1},
	} {
		if _, err := NewGenerator(1, cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
