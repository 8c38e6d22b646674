package query

import (
	"errors"
	"testing"
)

func TestParseReadOnlyAcceptsSelect(t *testing.T) {
	for _, text := range []string{
		"SELECT COUNT(*) FROM videos;",
		"select count(*) from videos;",
		"  SeLeCt 1;  ",
		"SELECT\n  SUM(delta_views_count)\nFROM video_snapshots;",
	} {
		stmt, err := ParseReadOnly(text)
		if err != nil {
			t.Fatalf("ParseReadOnly(%q) error = %v", text, err)
		}
		if stmt.IsZero() {
			t.Fatalf("ParseReadOnly(%q) returned zero statement", text)
		}
	}
}

func TestParseReadOnlyRejects(t *testing.T) {
	cases := []struct {
		text string
		want error
	}{
		{text: "", want: ErrEmptyStatement},
		{text: "  ;  ", want: ErrEmptyStatement},
		{text: "SELECT 1", want: ErrUnterminated},
		{text: "SELECT 1; SELECT 2;", want: ErrMultipleStatement},
		{text: "DELETE FROM videos;", want: ErrNotReadOnly},
		{text: "WITH x AS (DELETE FROM videos RETURNING 1) SELECT COUNT(*) FROM x;", want: ErrNotReadOnly},
		{text: "SELECTED;", want: ErrNotReadOnly},
		{text: "-- SELECT\nDROP TABLE videos;", want: ErrNotReadOnly},
	}
	for _, tc := range cases {
		_, err := ParseReadOnly(tc.text)
		if !errors.Is(err, tc.want) {
			t.Fatalf("ParseReadOnly(%q) error = %v, want %v", tc.text, err, tc.want)
		}
	}
}

func TestStatementTruncatedFlag(t *testing.T) {
	stmt, err := ParseReadOnly("SELECT 1;")
	if err != nil {
		t.Fatalf("ParseReadOnly() error = %v", err)
	}
	if stmt.Truncated() {
		t.Fatal("fresh statement should not be truncated")
	}
	marked := stmt.WithTruncated(true)
	if !marked.Truncated() || marked.SQL() != "SELECT 1;" {
		t.Fatalf("marked = %+v", marked)
	}
	if stmt.Truncated() {
		t.Fatal("WithTruncated mutated the receiver")
	}
}
