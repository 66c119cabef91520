package node

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestAssembleGroupsByFieldName(t *testing.T) {
	now := time.Now().UTC()
	rec := &NodeRecord{ID: "n1", Content: strPtr("Ripgrep"), CreatedAt: now, UpdatedAt: now}

	props := []PropertyRecord{
		{NodeID: "n1", FieldID: "f1", FieldSystemID: "sys/field/tag", FieldName: "tag", Value: Text("cli"), Order: 0},
		{NodeID: "n1", FieldID: "f1", FieldSystemID: "sys/field/tag", FieldName: "tag", Value: Text("search"), Order: 1},
		{NodeID: "n1", FieldID: "f2", FieldSystemID: "sys/field/stars", FieldName: "stars", Value: Number(48000), Order: 0},
	}
	memberships := []MembershipRecord{
		{NodeID: "n1", SupertagID: "sys/tag/tool", Content: "Tool", Order: 0},
	}

	got := Assemble(rec, props, memberships)
	if got == nil {
		t.Fatalf("expected assembled node")
	}
	if got.ID != "n1" || got.Content == nil || *got.Content != "Ripgrep" {
		t.Fatalf("identity fields wrong: %+v", got)
	}
	tags := got.Property("tag")
	if len(tags) != 2 || tags[0].Value != Text("cli") || tags[1].Value != Text("search") {
		t.Fatalf("tag entries wrong: %+v", tags)
	}
	if tags[0].FieldSystemID != "sys/field/tag" {
		t.Fatalf("entry should carry field systemId, got %q", tags[0].FieldSystemID)
	}
	if len(got.Property("stars")) != 1 {
		t.Fatalf("stars entries wrong")
	}
	if !got.HasSupertag("sys/tag/tool") {
		t.Fatalf("membership missing")
	}
}

func TestAssembleZeroPropertiesYieldsEmptyMap(t *testing.T) {
	got := Assemble(&NodeRecord{ID: "n1"}, nil, nil)
	if got.Properties == nil {
		t.Fatalf("properties map must be empty, not nil")
	}
	if len(got.Properties) != 0 {
		t.Fatalf("expected no properties, got %v", got.Properties)
	}
	if len(got.Supertags) != 0 {
		t.Fatalf("expected no supertags")
	}
}

func TestAssembleCarriesDeletedAt(t *testing.T) {
	now := time.Now().UTC()
	got := Assemble(&NodeRecord{ID: "n1", DeletedAt: &now}, nil, nil)
	if got.DeletedAt == nil || !got.DeletedAt.Equal(now) {
		t.Fatalf("deletion marker lost: %+v", got.DeletedAt)
	}
	if live := Assemble(&NodeRecord{ID: "n2"}, nil, nil); live.DeletedAt != nil {
		t.Fatalf("live node grew a deletion marker: %+v", live.DeletedAt)
	}

	dto := ToDTO(got)
	if dto.DeletedAt == nil || *dto.DeletedAt != now.Format(time.RFC3339Nano) {
		t.Fatalf("dto deletion marker wrong: %+v", dto.DeletedAt)
	}
}

func TestAssembleNilRecord(t *testing.T) {
	if Assemble(nil, nil, nil) != nil {
		t.Fatalf("nil record must assemble to nil")
	}
}

func TestToDTO(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &AssembledNode{
		ID:        "n1",
		Content:   strPtr("X"),
		CreatedAt: created,
		UpdatedAt: created,
		Properties: map[string][]PropertyEntry{
			"status": {{Value: Text("active"), Order: 0, FieldSystemID: "sys/field/status", FieldName: "status"}},
		},
		Supertags: []SupertagRef{{SystemID: "sys/tag/item", Content: "Item", Order: 0}},
	}

	dto := ToDTO(a)
	if dto.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("expected RFC3339 date, got %q", dto.CreatedAt)
	}
	entries := dto.Properties["status"]
	if len(entries) != 1 || string(entries[0].Value) != `"active"` {
		t.Fatalf("property wire form wrong: %+v", entries)
	}
	if len(dto.Supertags) != 1 || dto.Supertags[0].SystemID != "sys/tag/item" {
		t.Fatalf("supertag wire form wrong: %+v", dto.Supertags)
	}
	if ToDTO(nil) != nil {
		t.Fatalf("nil assembled node must map to nil DTO")
	}
}
