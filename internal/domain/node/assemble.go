package node

import "time"

// PropertyEntry is one value of a field on an assembled node.
type PropertyEntry struct {
	Value         Value
	Order         int
	FieldSystemID string
	FieldName     string
}

// SupertagRef is one supertag membership on an assembled node.
type SupertagRef struct {
	SystemID string
	Content  string
	Order    int
}

// AssembledNode is the materialized read model of a node: display
// content plus properties grouped by field display name plus ordered
// supertags. It is derived on every read and never persisted or cached
// at the engine layer.
type AssembledNode struct {
	ID         string
	Content    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
	Properties map[string][]PropertyEntry
	Supertags  []SupertagRef
}

// Property returns the entries bound under the given field display
// name, nil when the field is absent.
func (a *AssembledNode) Property(fieldName string) []PropertyEntry {
	if a == nil {
		return nil
	}
	return a.Properties[fieldName]
}

// HasSupertag reports membership by supertag systemId.
func (a *AssembledNode) HasSupertag(systemID string) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Supertags {
		if s.SystemID == systemID {
			return true
		}
	}
	return false
}

// Assemble builds the read model from raw records. It is a pure
// transformation shared by both engines. Entries keep the order they
// arrive in; callers needing determinism across concurrent writers sort
// by Order themselves. A node with zero properties gets an empty map,
// not a nil one. Soft-deleted nodes are the caller's concern: Assemble
// does not filter.
func Assemble(rec *NodeRecord, props []PropertyRecord, memberships []MembershipRecord) *AssembledNode {
	if rec == nil {
		return nil
	}

	out := &AssembledNode{
		ID:         rec.ID,
		Content:    rec.Content,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		DeletedAt:  rec.DeletedAt,
		Properties: make(map[string][]PropertyEntry),
		Supertags:  make([]SupertagRef, 0, len(memberships)),
	}

	for _, p := range props {
		out.Properties[p.FieldName] = append(out.Properties[p.FieldName], PropertyEntry{
			Value:         p.Value,
			Order:         p.Order,
			FieldSystemID: p.FieldSystemID,
			FieldName:     p.FieldName,
		})
	}

	for _, m := range memberships {
		out.Supertags = append(out.Supertags, SupertagRef{
			SystemID: m.SupertagID,
			Content:  m.Content,
			Order:    m.Order,
		})
	}

	return out
}
