package node

import (
	"encoding/json"
	"fmt"
)

// schemaEntry is the persisted form of one FieldDefault. The value kind
// travels with the payload so defaults decode without a field lookup.
type schemaEntry struct {
	Field   string          `json:"field"`
	Kind    string          `json:"kind,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
}

func kindOf(v Value) (string, error) {
	switch v.(type) {
	case Text:
		return "text", nil
	case Number:
		return "number", nil
	case Bool:
		return "boolean", nil
	case JSON:
		return "json", nil
	case NodeRef:
		return "node", nil
	case NodeRefList:
		return "nodes", nil
	default:
		return "", fmt.Errorf("unknown value type %T", v)
	}
}

func decodeKind(kind string, data []byte) (Value, error) {
	switch kind {
	case "text":
		return DecodeValue(FieldText, data)
	case "number":
		return DecodeValue(FieldNumber, data)
	case "boolean":
		return DecodeValue(FieldBoolean, data)
	case "json":
		return DecodeValue(FieldJSON, data)
	case "node":
		return DecodeValue(FieldNode, data)
	case "nodes":
		return DecodeValue(FieldNodes, data)
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}

// EncodeFieldSchema serializes a supertag's ordered field schema to its
// stored JSON form.
func EncodeFieldSchema(schema []FieldDefault) ([]byte, error) {
	if len(schema) == 0 {
		return []byte("[]"), nil
	}
	entries := make([]schemaEntry, 0, len(schema))
	for _, def := range schema {
		entry := schemaEntry{Field: def.FieldSystemID}
		if def.Default != nil {
			kind, err := kindOf(def.Default)
			if err != nil {
				return nil, fmt.Errorf("schema field %q: %w", def.FieldSystemID, err)
			}
			data, err := EncodeValue(def.Default)
			if err != nil {
				return nil, fmt.Errorf("schema field %q: %w", def.FieldSystemID, err)
			}
			entry.Kind = kind
			entry.Default = json.RawMessage(data)
		}
		entries = append(entries, entry)
	}
	return json.Marshal(entries)
}

// DecodeFieldSchema parses the stored JSON form back into the ordered
// default list.
func DecodeFieldSchema(data []byte) ([]FieldDefault, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []schemaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode field schema: %w", err)
	}
	out := make([]FieldDefault, 0, len(entries))
	for _, entry := range entries {
		def := FieldDefault{FieldSystemID: entry.Field}
		if len(entry.Default) > 0 {
			val, err := decodeKind(entry.Kind, entry.Default)
			if err != nil {
				return nil, fmt.Errorf("schema field %q: %w", entry.Field, err)
			}
			def.Default = val
		}
		out = append(out, def)
	}
	return out, nil
}
