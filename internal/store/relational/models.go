package relational

import (
	"time"

	"gorm.io/datatypes"
)

// NodeRow is the flat nodes table. DeletedAt is a plain timestamp, not
// gorm.DeletedAt: finds must return soft-deleted rows unchanged, so the
// engine controls the filter itself instead of letting GORM hide rows.
type NodeRow struct {
	ID           string     `gorm:"type:uuid;primaryKey"`
	Content      *string    `gorm:"column:content"`
	ContentPlain string     `gorm:"column:content_plain;index"`
	SystemID     *string    `gorm:"column:system_id;uniqueIndex"`
	OwnerID      *string    `gorm:"column:owner_id;index"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	DeletedAt    *time.Time `gorm:"index"`
}

func (NodeRow) TableName() string { return "nodes" }

type FieldRow struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	SystemID  string    `gorm:"column:system_id;uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	Type      string    `gorm:"column:value_type;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (FieldRow) TableName() string { return "fields" }

// SupertagRow holds a tag definition. FieldSchema is the ordered JSON
// list of schemaEntry documents; ExtendsSystemID is the single-parent
// chain edge.
type SupertagRow struct {
	ID              string         `gorm:"type:uuid;primaryKey"`
	SystemID        string         `gorm:"column:system_id;uniqueIndex;not null"`
	Name            string         `gorm:"not null"`
	ExtendsSystemID *string        `gorm:"column:extends_system_id;index"`
	FieldSchema     datatypes.JSON `gorm:"column:field_schema;type:text"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

func (SupertagRow) TableName() string { return "supertags" }

// PropertyRow is one (node, field) -> value binding. Value holds the
// canonical JSON wire form of the tagged value union; SortOrder keeps
// insertion order within a field. The column is forced to text: a
// JSON-declared column gets NUMERIC affinity in SQLite, which coerces
// scalar payloads like `2` to integers and breaks the read-back scan.
type PropertyRow struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	NodeID    string         `gorm:"column:node_id;index:idx_properties_node_field;not null"`
	FieldID   string         `gorm:"column:field_id;index:idx_properties_node_field;not null"`
	Value     datatypes.JSON `gorm:"type:text;not null"`
	SortOrder int            `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (PropertyRow) TableName() string { return "properties" }

// MembershipRow is one node<->supertag edge, unique per pair.
type MembershipRow struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	NodeID     string    `gorm:"column:node_id;uniqueIndex:idx_memberships_node_supertag;not null"`
	SupertagID string    `gorm:"column:supertag_id;uniqueIndex:idx_memberships_node_supertag;not null"`
	SortOrder  int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (MembershipRow) TableName() string { return "node_supertags" }
