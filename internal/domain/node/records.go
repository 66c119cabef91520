// Package node defines the canonical types of the node/property-graph
// store: raw engine records, the tagged property value union, the
// assembled read model, and the Engine contract both storage backends
// implement. These types are the single source of truth shared by the
// relational and graph engines, the facade, and the seeding tooling.
package node

import (
	"strings"
	"time"
)

// NodeRecord is a raw node row as the engines persist it. DeletedAt is
// the soft-delete marker; finds return soft-deleted records unchanged,
// assembly and queries filter them out.
type NodeRecord struct {
	ID           string
	Content      *string
	ContentPlain string
	SystemID     *string
	OwnerID      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Active reports whether the node is not soft-deleted.
func (r *NodeRecord) Active() bool {
	return r != nil && r.DeletedAt == nil
}

// ContentOrEmpty returns the display text, empty when unset.
func (r *NodeRecord) ContentOrEmpty() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return *r.Content
}

// PlainContent lowercases display text for the substring-search index.
func PlainContent(content string) string {
	return strings.ToLower(content)
}

// FieldRecord is a field definition: schema metadata, not user content.
type FieldRecord struct {
	ID        string
	SystemID  string
	Name      string
	Type      FieldType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldDefault is one entry of a supertag's ordered field schema.
type FieldDefault struct {
	FieldSystemID string
	Default       Value
}

// SupertagRecord is a classification tag definition. ExtendsSystemID
// points at the single parent tag, forming a chain rather than a DAG.
type SupertagRecord struct {
	ID              string
	SystemID        string
	Name            string
	ExtendsSystemID *string
	FieldSchema     []FieldDefault
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PropertyRecord is one stored binding (nodeId, field) -> value with
// its position among the field's values on that node.
type PropertyRecord struct {
	NodeID        string
	FieldID       string
	FieldSystemID string
	FieldName     string
	Value         Value
	Order         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MembershipRecord is one node<->supertag edge. SupertagID carries the
// supertag's stable systemId, Content its display name.
type MembershipRecord struct {
	NodeID     string
	SupertagID string
	Content    string
	Order      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateNodeOptions drives node creation. When SupertagID names a
// supertag systemId the membership is established in the same call.
type CreateNodeOptions struct {
	Content    *string
	SystemID   *string
	OwnerID    *string
	SupertagID *string
}

// FieldDefinition is a resolved schema entry after walking the extends
// chain: the nearest ancestor's default wins.
type FieldDefinition struct {
	FieldID       string
	FieldSystemID string
	FieldName     string
	Default       Value
}
