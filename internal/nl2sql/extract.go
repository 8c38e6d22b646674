package nl2sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vidmetrics/vidmetrics/internal/query"
)

// openingFence matches a code fence and its optional language tag line
// ("```sql", "```SQL", "```postgresql").
var openingFence = regexp.MustCompile("(?i)```(?:[a-z][a-z0-9_+-]*[ \\t]*\\r?\\n)?")

const fence = "```"

type ExtractOptions struct {
	// RejectMultiple fails extraction when anything but whitespace follows
	// the first statement terminator.
	RejectMultiple bool
}

// Extract pulls the first SQL statement out of a model completion.
func Extract(completion string) (query.Statement, error) {
	return ExtractWithOptions(completion, ExtractOptions{})
}

func ExtractWithOptions(completion string, opts ExtractOptions) (query.Statement, error) {
	text := strings.TrimSpace(fencedBody(completion))

	truncated := false
	if head, rest, found := strings.Cut(text, ";"); found {
		text = head
		truncated = strings.TrimSpace(rest) != ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return query.Statement{}, fmt.Errorf("%w: %w", ErrExtraction, query.ErrEmptyStatement)
	}
	if truncated && opts.RejectMultiple {
		return query.Statement{}, fmt.Errorf("%w: %w", ErrExtraction, query.ErrMultipleStatement)
	}

	stmt, err := query.ParseReadOnly(text + ";")
	if err != nil {
		return query.Statement{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return stmt.WithTruncated(truncated), nil
}

// fencedBody returns the contents of the first fenced block, or the whole
// completion when it has no fence. Text around the block is dropped.
func fencedBody(completion string) string {
	loc := openingFence.FindStringIndex(completion)
	if loc == nil {
		return completion
	}
	body := completion[loc[1]:]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return body
}
