package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	ErrExecution = errors.New("statement execution failed")
	ErrCoercion  = errors.New("scalar value is not an integer")
)

// ExecutionError keeps the rejected statement for operator diagnostics.
type ExecutionError struct {
	Statement string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.Statement, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

type Executor struct {
	engine Engine
}

func NewExecutor(engine Engine) (*Executor, error) {
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	return &Executor{engine: engine}, nil
}

// Run executes stmt once and reduces the result set to one integer.
func (e *Executor) Run(ctx context.Context, stmt Statement) (int64, error) {
	if stmt.IsZero() {
		return 0, &ExecutionError{Statement: "", Err: ErrEmptyStatement}
	}
	result, err := e.engine.Execute(ctx, Request{SQL: stmt.SQL()})
	if err != nil {
		return 0, &ExecutionError{Statement: stmt.SQL(), Err: err}
	}
	return Reduce(result)
}

// Reduce collapses a result set to column 0 of row 0. No rows and NULL both
// reduce to 0.
func Reduce(result Result) (int64, error) {
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, nil
	}
	return ToInt64(result.Rows[0][0])
}

// ToInt64 converts a scanned driver value. Fractional values truncate toward
// zero; anything non-numeric is ErrCoercion.
func ToInt64(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, coercionError(value)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, coercionError(value)
		}
		return int64(v), nil
	case float64:
		return floatToInt64(v, value)
	case float32:
		return floatToInt64(float64(v), value)
	case *big.Int:
		if v == nil {
			return 0, nil
		}
		if !v.IsInt64() {
			return 0, coercionError(value)
		}
		return v.Int64(), nil
	case *big.Float:
		if v == nil {
			return 0, nil
		}
		if v.IsInf() {
			return 0, coercionError(value)
		}
		truncated, _ := v.Int(nil)
		return ToInt64(truncated)
	case *big.Rat:
		if v == nil {
			return 0, nil
		}
		return ToInt64(new(big.Int).Quo(v.Num(), v.Denom()))
	case string:
		return parseNumeric(v, value)
	case []byte:
		return parseNumeric(string(v), value)
	default:
		return 0, coercionError(value)
	}
}

func parseNumeric(raw string, original any) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, coercionError(original)
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n, nil
	}
	f, ok := new(big.Float).SetString(trimmed)
	if !ok {
		return 0, coercionError(original)
	}
	if f.IsInf() {
		return 0, coercionError(original)
	}
	truncated, _ := f.Int(nil)
	return ToInt64(truncated)
}

func floatToInt64(f float64, original any) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, coercionError(original)
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, coercionError(original)
	}
	return int64(t), nil
}

func coercionError(value any) error {
	return fmt.Errorf("%w: %T(%v)", ErrCoercion, value, value)
}
