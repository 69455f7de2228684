package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/heraldhq/herald/catalog"
)

func TestValidatorEmptySchema(t *testing.T) {
	v := catalog.NewValidator()

	if err := v.Validate(nil, map[string]any{"key": "value"}); err != nil {
		t.Fatal("empty schema should skip validation, got:", err)
	}
}

func TestValidatorValidPayload(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"amount":   {"type": "number"},
			"currency": {"type": "string"}
		},
		"required": ["amount", "currency"]
	}`)

	data := map[string]any{
		"amount":   100.50,
		"currency": "USD",
	}

	if err := v.Validate(schema, data); err != nil {
		t.Fatal("valid payload should pass, got:", err)
	}
}

func TestValidatorMissingRequired(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)

	if err := v.Validate(schema, map[string]any{"other": "value"}); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestValidatorWrongType(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"count": {"type": "integer"}}
	}`)

	if err := v.Validate(schema, map[string]any{"count": "not-a-number"}); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
}

func TestValidatorStructPayload(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"amount": {"type": "number"}},
		"required": ["amount"]
	}`)

	payload := struct {
		Amount float64 `json:"amount"`
	}{Amount: 12.5}

	if err := v.Validate(schema, payload); err != nil {
		t.Fatal("struct payload should normalize and pass, got:", err)
	}
}

func TestValidatorRawPayload(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"required": ["id"]
	}`)

	if err := v.Validate(schema, json.RawMessage(`{"id": "x"}`)); err != nil {
		t.Fatal("raw payload should pass, got:", err)
	}
	if err := v.Validate(schema, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected validation error for missing id")
	}
}

func TestValidatorBadSchema(t *testing.T) {
	v := catalog.NewValidator()

	if err := v.CheckSchema(json.RawMessage(`not json`)); err == nil {
		t.Fatal("expected error for malformed schema JSON")
	}
}

func TestValidatorCaching(t *testing.T) {
	v := catalog.NewValidator()

	schema := json.RawMessage(`{"type": "object"}`)

	// Same schema content validates repeatedly through the cache.
	for i := 0; i < 3; i++ {
		if err := v.Validate(schema, map[string]any{}); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
}
