package ingest

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/dataset.schema.json
var datasetSchema []byte

var ErrSchemaViolation = errors.New("dataset does not match schema")

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(datasetSchema))
})

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrSchemaViolation, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaViolation
}

// ValidateDocument checks raw against the embedded dataset schema.
func ValidateDocument(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile dataset schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		violations[i] = desc.String()
	}
	return &ValidationError{Violations: violations}
}
