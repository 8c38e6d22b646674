package query

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyStatement    = errors.New("statement is empty")
	ErrNotReadOnly       = errors.New("statement must start with SELECT")
	ErrUnterminated      = errors.New("statement must end with exactly one semicolon")
	ErrMultipleStatement = errors.New("statement contains more than one terminator")
)

var selectKeyword = regexp.MustCompile(`(?i)^select\b`)

// Statement is a single read-only SQL statement that passed the allow-list.
// The zero value is not executable.
type Statement struct {
	text      string
	truncated bool
}

// ParseReadOnly checks that text is one SELECT statement terminated by
// exactly one semicolon.
func ParseReadOnly(text string) (Statement, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == ";" {
		return Statement{}, ErrEmptyStatement
	}
	if !strings.HasSuffix(trimmed, ";") {
		return Statement{}, ErrUnterminated
	}
	if strings.Count(trimmed, ";") > 1 {
		return Statement{}, ErrMultipleStatement
	}
	if !selectKeyword.MatchString(trimmed) {
		return Statement{}, ErrNotReadOnly
	}
	return Statement{text: trimmed}, nil
}

// WithTruncated marks a statement whose source text held further statements
// or trailing prose that was discarded.
func (s Statement) WithTruncated(truncated bool) Statement {
	s.truncated = truncated
	return s
}

func (s Statement) SQL() string {
	return s.text
}

func (s Statement) Truncated() bool {
	return s.truncated
}

func (s Statement) IsZero() bool {
	return s.text == ""
}

func (s Statement) String() string {
	return s.text
}
