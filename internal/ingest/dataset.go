package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDocument = errors.New("invalid dataset document")

// Timestamp accepts ISO 8601 with a Z suffix, a numeric offset or no zone.
// Zoneless values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func ParseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: parsed.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", raw)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

type Video struct {
	ID             int64      `json:"id"`
	CreatorID      int64      `json:"creator_id"`
	VideoCreatedAt Timestamp  `json:"video_created_at"`
	ViewsCount     int64      `json:"views_count"`
	LikesCount     int64      `json:"likes_count"`
	CommentsCount  int64      `json:"comments_count"`
	ReportsCount   int64      `json:"reports_count"`
	CreatedAt      Timestamp  `json:"created_at"`
	UpdatedAt      Timestamp  `json:"updated_at"`
	Snapshots      []Snapshot `json:"snapshots"`

	// InvalidSnapshots holds snapshots of this video that could not be
	// decoded. They count as failed rows.
	InvalidSnapshots []RowError `json:"-"`
}

type Snapshot struct {
	ID                 int64     `json:"id"`
	ViewsCount         int64     `json:"views_count"`
	LikesCount         int64     `json:"likes_count"`
	CommentsCount      int64     `json:"comments_count"`
	ReportsCount       int64     `json:"reports_count"`
	DeltaViewsCount    int64     `json:"delta_views_count"`
	DeltaLikesCount    int64     `json:"delta_likes_count"`
	DeltaCommentsCount int64     `json:"delta_comments_count"`
	DeltaReportsCount  int64     `json:"delta_reports_count"`
	CreatedAt          Timestamp `json:"created_at"`
	UpdatedAt          Timestamp `json:"updated_at"`
}

// RowError describes one row of the document that was skipped.
type RowError struct {
	Table string
	Index int
	ID    string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s[%d] id=%s: %v", e.Table, e.Index, e.ID, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Dataset is a decoded {"videos": [...]} document. Videos that could not be
// decoded are kept in InvalidVideos together with their snapshot count.
type Dataset struct {
	Videos        []Video    `json:"videos"`
	InvalidVideos []RowError `json:"-"`
}

type videoDocument struct {
	ID             *int64            `json:"id"`
	CreatorID      *int64            `json:"creator_id"`
	VideoCreatedAt Timestamp         `json:"video_created_at"`
	ViewsCount     int64             `json:"views_count"`
	LikesCount     int64             `json:"likes_count"`
	CommentsCount  int64             `json:"comments_count"`
	ReportsCount   int64             `json:"reports_count"`
	CreatedAt      Timestamp         `json:"created_at"`
	UpdatedAt      Timestamp         `json:"updated_at"`
	Snapshots      []json.RawMessage `json:"snapshots"`
}

type snapshotDocument struct {
	ID                 *int64    `json:"id"`
	ViewsCount         int64     `json:"views_count"`
	LikesCount         int64     `json:"likes_count"`
	CommentsCount      int64     `json:"comments_count"`
	ReportsCount       int64     `json:"reports_count"`
	DeltaViewsCount    int64     `json:"delta_views_count"`
	DeltaLikesCount    int64     `json:"delta_likes_count"`
	DeltaCommentsCount int64     `json:"delta_comments_count"`
	DeltaReportsCount  int64     `json:"delta_reports_count"`
	CreatedAt          Timestamp `json:"created_at"`
	UpdatedAt          Timestamp `json:"updated_at"`
}

// Parse decodes a dataset document. Only a malformed top level is fatal; a
// video or snapshot that fails to decode is recorded and skipped. Missing
// counters decode as 0.
func Parse(raw []byte) (Dataset, error) {
	var document struct {
		Videos *[]json.RawMessage `json:"videos"`
	}
	if err := json.Unmarshal(raw, &document); err != nil {
		return Dataset{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if document.Videos == nil {
		return Dataset{}, fmt.Errorf("%w: videos array is required", ErrInvalidDocument)
	}

	dataset := Dataset{Videos: make([]Video, 0, len(*document.Videos))}
	for i, rawVideo := range *document.Videos {
		video, err := parseVideo(rawVideo)
		if err != nil {
			dataset.InvalidVideos = append(dataset.InvalidVideos, RowError{Table: "videos", Index: i, ID: rawID(rawVideo), Err: err})
			continue
		}
		dataset.Videos = append(dataset.Videos, video)
	}
	return dataset, nil
}

func parseVideo(raw json.RawMessage) (Video, error) {
	var doc videoDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Video{}, err
	}
	switch {
	case doc.ID == nil:
		return Video{}, missingField("id")
	case doc.CreatorID == nil:
		return Video{}, missingField("creator_id")
	case doc.VideoCreatedAt.IsZero():
		return Video{}, missingField("video_created_at")
	case doc.CreatedAt.IsZero():
		return Video{}, missingField("created_at")
	case doc.UpdatedAt.IsZero():
		return Video{}, missingField("updated_at")
	}

	video := Video{
		ID:             *doc.ID,
		CreatorID:      *doc.CreatorID,
		VideoCreatedAt: doc.VideoCreatedAt,
		ViewsCount:     doc.ViewsCount,
		LikesCount:     doc.LikesCount,
		CommentsCount:  doc.CommentsCount,
		ReportsCount:   doc.ReportsCount,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		Snapshots:      make([]Snapshot, 0, len(doc.Snapshots)),
	}
	for i, rawSnapshot := range doc.Snapshots {
		snapshot, err := parseSnapshot(rawSnapshot)
		if err != nil {
			video.InvalidSnapshots = append(video.InvalidSnapshots, RowError{Table: "video_snapshots", Index: i, ID: rawID(rawSnapshot), Err: err})
			continue
		}
		video.Snapshots = append(video.Snapshots, snapshot)
	}
	return video, nil
}

func parseSnapshot(raw json.RawMessage) (Snapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Snapshot{}, err
	}
	switch {
	case doc.ID == nil:
		return Snapshot{}, missingField("id")
	case doc.CreatedAt.IsZero():
		return Snapshot{}, missingField("created_at")
	case doc.UpdatedAt.IsZero():
		return Snapshot{}, missingField("updated_at")
	}
	return Snapshot{
		ID:                 *doc.ID,
		ViewsCount:         doc.ViewsCount,
		LikesCount:         doc.LikesCount,
		CommentsCount:      doc.CommentsCount,
		ReportsCount:       doc.ReportsCount,
		DeltaViewsCount:    doc.DeltaViewsCount,
		DeltaLikesCount:    doc.DeltaLikesCount,
		DeltaCommentsCount: doc.DeltaCommentsCount,
		DeltaReportsCount:  doc.DeltaReportsCount,
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("missing field %s", name)
}

// rawID recovers the id of a row that failed to decode, for diagnostics.
func rawID(raw json.RawMessage) string {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.ID) == 0 {
		return "UNKNOWN"
	}
	return strings.Trim(string(envelope.ID), `"`)
}

// SnapshotCount returns the number of decoded snapshots across all videos.
func (d Dataset) SnapshotCount() int {
	total := 0
	for _, video := range d.Videos {
		total += len(video.Snapshots)
	}
	return total
}
