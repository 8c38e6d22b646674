package ingest

import (
	"fmt"
	"math/rand"
	"time"
)

type GeneratorConfig struct {
	Videos            int
	Creators          int
	SnapshotsPerVideo int
	Start             time.Time
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Videos:            100,
		Creators:          10,
		SnapshotsPerVideo: 24,
		Start:             time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Generator builds synthetic datasets with hourly snapshots. The same seed
// and config always yield the same dataset.
type Generator struct {
	rnd *rand.Rand
	cfg GeneratorConfig
}

func NewGenerator(seed int64, cfg GeneratorConfig) (*Generator, error) {
	if cfg.Videos < 0 {
		return nil, fmt.Errorf("video count must be >= 0")
	}
	if cfg.Creators <= 0 {
		return nil, fmt.Errorf("creator count must be > 0")
	}
	if cfg.SnapshotsPerVideo < 0 {
		return nil, fmt.Errorf("snapshots per video must be >= 0")
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultGeneratorConfig().Start
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), cfg: cfg}, nil
}

func (g *Generator) Generate() Dataset {
	dataset := Dataset{Videos: make([]Video, 0, g.cfg.Videos)}
	snapshotID := int64(0)
	for i := 1; i <= g.cfg.Videos; i++ {
		publishedAt := g.cfg.Start.Add(time.Duration(g.rnd.Intn(30*24)) * time.Hour)
		video := Video{
			ID:             int64(i),
			CreatorID:      int64(g.rnd.Intn(g.cfg.Creators) + 1),
			VideoCreatedAt: Timestamp{Time: publishedAt},
			CreatedAt:      Timestamp{Time: publishedAt},
			Snapshots:      make([]Snapshot, 0, g.cfg.SnapshotsPerVideo),
		}

		reach := g.pickReach()
		var views, likes, comments, reports int64
		measuredAt := publishedAt.Truncate(time.Hour)
		for s := 0; s < g.cfg.SnapshotsPerVideo; s++ {
			measuredAt = measuredAt.Add(time.Hour)
			deltaViews := int64(g.rnd.Intn(reach + 1))
			deltaLikes := deltaViews / int64(10+g.rnd.Intn(40))
			deltaComments := deltaLikes / int64(5+g.rnd.Intn(20))
			deltaReports := int64(0)
			if g.rnd.Intn(100) == 0 {
				deltaReports = 1
			}
			views += deltaViews
			likes += deltaLikes
			comments += deltaComments
			reports += deltaReports

			snapshotID++
			video.Snapshots = append(video.Snapshots, Snapshot{
				ID:                 snapshotID,
				ViewsCount:         views,
				LikesCount:         likes,
				CommentsCount:      comments,
				ReportsCount:       reports,
				DeltaViewsCount:    deltaViews,
				DeltaLikesCount:    deltaLikes,
				DeltaCommentsCount: deltaComments,
				DeltaReportsCount:  deltaReports,
				CreatedAt:          Timestamp{Time: measuredAt},
				UpdatedAt:          Timestamp{Time: measuredAt},
			})
		}

		video.ViewsCount = views
		video.LikesCount = likes
		video.CommentsCount = comments
		video.ReportsCount = reports
		video.UpdatedAt = Timestamp{Time: measuredAt}
		dataset.Videos = append(dataset.Videos, video)
	}
	return dataset
}

// pickReach returns the upper bound of hourly view growth for one video.
func (g *Generator) pickReach() int {
	p := g.rnd.Intn(100)
	switch {
	case p < 60:
		return 50
	case p < 85:
		return 500
	case p < 97:
		return 5000
	default:
		return 20000
	}
}
