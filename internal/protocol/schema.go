package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	//go:embed schemas/report.schema.json
	reportSchemaJSON string
	//go:embed schemas/submit.schema.json
	submitSchemaJSON string
)

var (
	schemasOnce  sync.Once
	reportSchema *jsonschema.Schema
	submitSchema *jsonschema.Schema
	schemasErr   error
)

func compileSchemas() {
	reportSchema, schemasErr = jsonschema.CompileString("report.schema.json", reportSchemaJSON)
	if schemasErr != nil {
		return
	}
	submitSchema, schemasErr = jsonschema.CompileString("submit.schema.json", submitSchemaJSON)
}

// ValidateReport checks an encoded REPORT against the embedded schema.
func ValidateReport(b []byte) error {
	return validate(b, func() *jsonschema.Schema { return reportSchema })
}

// ValidateSubmit checks an encoded SUBMIT against the embedded schema.
func ValidateSubmit(b []byte) error {
	return validate(b, func() *jsonschema.Schema { return submitSchema })
}

func validate(b []byte, pick func() *jsonschema.Schema) error {
	schemasOnce.Do(compileSchemas)
	if schemasErr != nil {
		return fmt.Errorf("compile schemas: %w", schemasErr)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return pick().Validate(v)
}
