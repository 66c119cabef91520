package node

import (
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ft   FieldType
		in   Value
	}{
		{"text", FieldText, Text("hello")},
		{"empty text", FieldText, Text("")},
		{"select", FieldSelect, Text("active")},
		{"number", FieldNumber, Number(42.5)},
		{"boolean", FieldBoolean, Bool(true)},
		{"json", FieldJSON, JSON(`{"k":[1,2]}`)},
		{"node ref", FieldNode, NodeRef("abc-123")},
		{"node ref list", FieldNodes, NodeRefList{"a", "b"}},
	}
	for _, tc := range cases {
		data, err := EncodeValue(tc.in)
		if err != nil {
			t.Fatalf("%s: encode: %v", tc.name, err)
		}
		got, err := DecodeValue(tc.ft, data)
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if !ValueEqual(tc.in, got) {
			t.Fatalf("%s: round trip mismatch: %#v != %#v", tc.name, tc.in, got)
		}
	}
}

func TestDecodeSingleRefForMultiField(t *testing.T) {
	got, err := DecodeValue(FieldNodes, []byte(`"n1"`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ref, ok := got.(NodeRef); !ok || ref != "n1" {
		t.Fatalf("expected NodeRef(n1), got %#v", got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := DecodeValue(FieldNumber, []byte(`"nope"`)); err == nil {
		t.Fatalf("expected error decoding string as number")
	}
	if _, err := DecodeValue(FieldBoolean, []byte(`7`)); err == nil {
		t.Fatalf("expected error decoding number as boolean")
	}
	if _, err := DecodeValue(FieldJSON, []byte(`{broken`)); err == nil {
		t.Fatalf("expected error decoding invalid json")
	}
	if _, err := DecodeValue(FieldText, nil); err == nil {
		t.Fatalf("expected error decoding empty payload")
	}
}

func TestEncodeRejectsInvalidJSON(t *testing.T) {
	if _, err := EncodeValue(JSON(`{broken`)); err == nil {
		t.Fatalf("expected error encoding invalid json payload")
	}
	if _, err := EncodeValue(nil); err == nil {
		t.Fatalf("expected error encoding nil value")
	}
}

func TestValueEqual(t *testing.T) {
	if !ValueEqual(JSON(`{"a":1,"b":2}`), JSON(`{"b":2,"a":1}`)) {
		t.Fatalf("json equality should be structural")
	}
	if ValueEqual(Text("1"), Number(1)) {
		t.Fatalf("values of different kinds must not compare equal")
	}
	if ValueEqual(NodeRefList{"a"}, NodeRefList{"a", "b"}) {
		t.Fatalf("ref lists of different length must not compare equal")
	}
	if !ValueEqual(Text(""), Text("")) {
		t.Fatalf("empty strings should compare equal")
	}
}

func TestValidFieldType(t *testing.T) {
	if !ValidFieldType(FieldSelect) {
		t.Fatalf("select should be valid")
	}
	if ValidFieldType(FieldType("blob")) {
		t.Fatalf("blob should be invalid")
	}
}
