package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
)

// payloadSchema accepts a flat object whose values are strings or null.
var payloadSchema = map[string]any{
	"$schema":              "http://json-schema.org/draft-07/schema#",
	"type":                 "object",
	"additionalProperties": map[string]any{"type": []any{"string", "null"}},
}

func compilePayloadSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(payloadSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("payload.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// payload is the persisted form of a structured entry.
type payload struct {
	entity.Fields
	Categoria string `json:"categoria"`
	Origen    string `json:"origen"`
}

// encodePayload writes indented UTF-8 JSON without HTML or ASCII escaping.
func encodePayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodePayload parses and validates a structured entry.
func (s *Store) decodePayload(data []byte) (map[string]any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("payload does not match schema: %w", err)
	}
	return raw.(map[string]any), nil
}

// fieldsFromPayload copies the known field keys; other keys are ignored.
func fieldsFromPayload(m map[string]any) entity.Fields {
	get := func(k string) *string {
		if v, ok := m[k].(string); ok {
			return &v
		}
		return nil
	}
	return entity.Fields{
		FolioFiscal:      get("folio_fiscal"),
		RFCEmisor:        get("rfc_emisor"),
		RFCReceptor:      get("rfc_receptor"),
		NombreEmisor:     get("nombre_emisor"),
		NombreReceptor:   get("nombre_receptor"),
		Puesto:           get("puesto"),
		Subtotal:         get("subtotal"),
		TotalDeducciones: get("total_deducciones"),
		TotalNeto:        get("total_neto"),
	}
}
