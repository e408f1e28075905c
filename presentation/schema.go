package presentation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchema is returned when a JSON presentation does not match the wire schema
var ErrSchema = errors.New("presentation does not match schema")

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["session_header", "transcript_proof", "signature"],
  "definitions": {
    "bytes": {
      "anyOf": [
        {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 255}},
        {"type": "string", "pattern": "^(0x)?([0-9a-fA-F]{2})*$"}
      ]
    },
    "uint": {"type": "integer", "minimum": 0}
  },
  "properties": {
    "version": {"type": "string"},
    "notary_attestation": {"type": "string"},
    "session_header": {
      "type": "object",
      "additionalProperties": false,
      "required": ["server_name", "handshake_hash"],
      "properties": {
        "server_name": {"type": "string", "minLength": 1},
        "handshake_hash": {"$ref": "#/definitions/bytes"},
        "time": {"$ref": "#/definitions/uint"}
      }
    },
    "transcript_proof": {
      "type": "object",
      "additionalProperties": false,
      "required": ["ranges"],
      "properties": {
        "sent": {"$ref": "#/definitions/bytes"},
        "received": {"$ref": "#/definitions/bytes"},
        "sent_len": {"$ref": "#/definitions/uint"},
        "received_len": {"$ref": "#/definitions/uint"},
        "tree_size": {"$ref": "#/definitions/uint"},
        "ranges": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["start", "end"],
            "properties": {
              "start": {"$ref": "#/definitions/uint"},
              "end": {"$ref": "#/definitions/uint"},
              "direction": {"enum": ["sent", "received"]},
              "leaf_index": {"$ref": "#/definitions/uint"},
              "blinder": {"$ref": "#/definitions/bytes"},
              "path": {"type": "array", "items": {"$ref": "#/definitions/bytes"}},
              "empty": {"type": "boolean"}
            }
          }
        }
      }
    },
    "signature": {
      "anyOf": [
        {"$ref": "#/definitions/bytes"},
        {
          "type": "object",
          "additionalProperties": false,
          "required": ["value"],
          "properties": {
            "value": {"$ref": "#/definitions/bytes"},
            "public_key": {"$ref": "#/definitions/bytes"},
            "scheme": {"type": "string"}
          }
        }
      ]
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func presentationSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return compiledSchema, schemaErr
}

// ValidateSchema checks a JSON document against the presentation wire schema
func ValidateSchema(data []byte) error {
	schema, err := presentationSchema()
	if err != nil {
		return fmt.Errorf("failed to compile presentation schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		var b strings.Builder
		for _, e := range result.Errors() {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, b.String())
	}
	return nil
}
