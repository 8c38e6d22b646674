package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vidmetrics/vidmetrics/internal/storage"
)

// maxDocumentBytes bounds how much of a dataset document is read.
const maxDocumentBytes = 512 << 20

// Source yields the raw bytes of a dataset document.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

type FileSource struct {
	Path string
}

func (s FileSource) Read(_ context.Context) ([]byte, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.Path, err)
	}
	defer func() { _ = file.Close() }()
	return readLimited(file, s.Path)
}

func (s FileSource) String() string {
	return "file:" + s.Path
}

type ObjectSource struct {
	Store storage.ObjectStore
	Key   string
}

func (s ObjectSource) Read(ctx context.Context) ([]byte, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(s.Key) == "" {
		return nil, fmt.Errorf("dataset object key is required")
	}
	body, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", s.Key, err)
	}
	defer func() { _ = body.Close() }()
	return readLimited(body, s.Key)
}

func (s ObjectSource) String() string {
	return "object:" + s.Key
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}
	if len(payload) > maxDocumentBytes {
		return nil, fmt.Errorf("dataset %s exceeds %d bytes", name, maxDocumentBytes)
	}
	return payload, nil
}

// ReadDataset reads and parses a document from source. With strict set the
// whole document must match the dataset schema before any row is accepted.
func ReadDataset(ctx context.Context, source Source, strict bool) (Dataset, error) {
	if source == nil {
		return Dataset{}, errors.New("dataset source is required")
	}
	raw, err := source.Read(ctx)
	if err != nil {
		return Dataset{}, err
	}
	if strict {
		if err := ValidateDocument(raw); err != nil {
			return Dataset{}, fmt.Errorf("validate %s: %w", source, err)
		}
	}
	dataset, err := Parse(raw)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse %s: %w", source, err)
	}
	return dataset, nil
}
