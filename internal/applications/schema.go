package applications

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/application.json
var applicationSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(applicationSchema)

// validateSubmission checks a decoded submission against the embedded schema.
func validateSubmission(doc any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if result.Valid() {
		return nil
	}
	fields := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		fields = append(fields, desc.String())
	}
	return &ValidationError{Fields: fields}
}
