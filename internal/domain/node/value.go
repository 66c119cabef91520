package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// FieldType declares how a field's bound values are decoded at the
// engine boundary. Select fields store plain text; node and nodes are
// the single- and multi-node-reference types.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldSelect  FieldType = "select"
	FieldJSON    FieldType = "json"
	FieldNode    FieldType = "node"
	FieldNodes   FieldType = "nodes"
)

// ValidFieldType reports whether t is one of the declared field types.
func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldText, FieldNumber, FieldBoolean, FieldSelect, FieldJSON, FieldNode, FieldNodes:
		return true
	default:
		return false
	}
}

// Value is a sealed union over the payload types a property binding can
// carry. Only Text, Number, Bool, JSON, NodeRef, and NodeRefList
// implement it. Engines persist values as JSON and decode them back
// through DecodeValue keyed by the owning field's declared type, so no
// untyped data crosses the core.
type Value interface {
	value()
}

type Text string

func (Text) value() {}

type Number float64

func (Number) value() {}

type Bool bool

func (Bool) value() {}

// JSON holds a raw document for fields of type json. The payload is
// kept verbatim; equality is structural, not byte-exact.
type JSON json.RawMessage

func (JSON) value() {}

// NodeRef is a reference to another node by id.
type NodeRef string

func (NodeRef) value() {}

type NodeRefList []string

func (NodeRefList) value() {}

// EncodeValue serializes a Value to its JSON wire form.
func EncodeValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Text:
		return json.Marshal(string(val))
	case Number:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case JSON:
		if len(val) == 0 {
			return []byte("null"), nil
		}
		if !json.Valid([]byte(val)) {
			return nil, fmt.Errorf("invalid json payload")
		}
		return []byte(val), nil
	case NodeRef:
		return json.Marshal(string(val))
	case NodeRefList:
		return json.Marshal([]string(val))
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return nil, fmt.Errorf("unknown value type %T", v)
	}
}

// DecodeValue deserializes a stored payload according to the field's
// declared type. Malformed payloads error out rather than coercing.
func DecodeValue(t FieldType, data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload for %s field", t)
	}
	switch t {
	case FieldText, FieldSelect:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode %s value: %w", t, err)
		}
		return Text(s), nil
	case FieldNumber:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("decode number value: %w", err)
		}
		return Number(n), nil
	case FieldBoolean:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode boolean value: %w", err)
		}
		return Bool(b), nil
	case FieldJSON:
		if !json.Valid(data) {
			return nil, fmt.Errorf("decode json value: invalid payload")
		}
		out := make(JSON, len(data))
		copy(out, data)
		return out, nil
	case FieldNode:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode node reference: %w", err)
		}
		return NodeRef(s), nil
	case FieldNodes:
		// A multi-reference binding row holds either one id or a list.
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			var ids []string
			if err := json.Unmarshal(data, &ids); err != nil {
				return nil, fmt.Errorf("decode node reference list: %w", err)
			}
			return NodeRefList(ids), nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode node reference: %w", err)
		}
		return NodeRef(s), nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// ValueEqual compares two values. JSON payloads compare structurally.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case NodeRef:
		bv, ok := b.(NodeRef)
		return ok && av == bv
	case NodeRefList:
		bv, ok := b.(NodeRefList)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case JSON:
		bv, ok := b.(JSON)
		if !ok {
			return false
		}
		var am, bm any
		if err := json.Unmarshal(av, &am); err != nil {
			return false
		}
		if err := json.Unmarshal(bv, &bm); err != nil {
			return false
		}
		return reflect.DeepEqual(am, bm)
	default:
		return false
	}
}

// ValueString renders a value for event payloads and logs.
func ValueString(v Value) string {
	data, err := EncodeValue(v)
	if err != nil {
		return ""
	}
	return string(data)
}
