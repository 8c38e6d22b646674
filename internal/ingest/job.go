package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vidmetrics/vidmetrics/internal/storage"
)

// GeneratedSource serves a synthetic document built by Generator.
type GeneratedSource struct {
	Seed   int64
	Config GeneratorConfig
}

func (s GeneratedSource) Read(_ context.Context) ([]byte, error) {
	generator, err := NewGenerator(s.Seed, s.Config)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(generator.Generate())
	if err != nil {
		return nil, fmt.Errorf("encode generated dataset: %w", err)
	}
	return payload, nil
}

func (s GeneratedSource) String() string {
	return fmt.Sprintf("generated:seed=%d,videos=%d", s.Seed, s.Config.Videos)
}

// Job reads one document and hands it to the relational loader, the parquet
// export, or both.
type Job struct {
	Source       Source
	Strict       bool
	Loader       *Loader
	ExportStore  storage.ObjectStore
	ExportPrefix string
	Logger       *slog.Logger
}

type JobResult struct {
	Source   string
	Summary  Summary
	Exported []ExportedTable
	Duration time.Duration
}

func (j *Job) validate() error {
	if j.Source == nil {
		return errors.New("dataset source is required")
	}
	if j.Loader == nil && j.ExportStore == nil {
		return errors.New("job needs a loader or an export store")
	}
	return nil
}

func (j *Job) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *Job) RunOnce(ctx context.Context) (JobResult, error) {
	if err := j.validate(); err != nil {
		return JobResult{}, err
	}
	started := time.Now()
	result := JobResult{Source: j.Source.String()}

	dataset, err := ReadDataset(ctx, j.Source, j.Strict)
	if err != nil {
		return result, err
	}
	if j.Loader != nil {
		summary, err := j.Loader.Load(ctx, dataset)
		result.Summary = summary
		if err != nil {
			return result, err
		}
	}
	if j.ExportStore != nil {
		exported, err := ExportParquet(ctx, dataset, j.ExportStore, j.ExportPrefix)
		result.Exported = exported
		if err != nil {
			return result, fmt.Errorf("export parquet: %w", err)
		}
		for _, table := range exported {
			j.logger().InfoContext(ctx, "table_exported",
				slog.String("table", table.Table),
				slog.String("object_path", table.ObjectPath),
				slog.Int("rows", table.Rows),
				slog.Int64("size_bytes", table.SizeBytes),
			)
		}
	}
	result.Duration = time.Since(started)
	return result, nil
}

// RunScheduled runs the job on a standard five-field cron schedule in UTC
// until ctx is cancelled. A run still in progress when the next one fires is
// skipped. With runAtStart the first run happens immediately.
func (j *Job) RunScheduled(ctx context.Context, schedule string, runAtStart bool) error {
	if err := j.validate(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, func() { j.runLogged(ctx) }); err != nil {
		return fmt.Errorf("schedule load job: %w", err)
	}
	if runAtStart {
		j.runLogged(ctx)
	}

	c.Start()
	j.logger().InfoContext(ctx, "load job scheduled", slog.String("schedule", schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (j *Job) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := j.RunOnce(ctx)
	if err != nil {
		j.logger().ErrorContext(ctx, "load cycle failed", slog.String("source", result.Source), slog.Any("error", err))
		return
	}
	j.logger().InfoContext(ctx, "load cycle completed",
		slog.String("source", result.Source),
		slog.Duration("duration", result.Duration),
		slog.Int("tables_exported", len(result.Exported)),
	)
}
