package node

import "context"

// Engine is the storage contract implemented by both backends. The two
// implementations must be behaviorally identical: the same operation
// sequence yields assembled nodes with equal content, properties, and
// supertags, id formats aside. Field and supertag arguments are stable
// systemIds; node arguments are engine-issued ids.
//
// Error conventions: missing nodes surface storeerr.NotFound where the
// operation requires existence, unknown field/supertag systemIds
// surface storeerr.FieldNotFound / storeerr.SupertagNotFound, duplicate
// unique keys surface storeerr.Conflict, and opaque client failures are
// wrapped as storeerr.Engine. Finds return (nil, nil) for absent rows
// and do not filter soft-deleted records.
type Engine interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	// Save is the durability hook. Engines that persist synchronously
	// implement it as a no-op.
	Save(ctx context.Context) error

	CreateNode(ctx context.Context, opts CreateNodeOptions) (string, error)
	FindNodeByID(ctx context.Context, id string) (*NodeRecord, error)
	FindNodeBySystemID(ctx context.Context, systemID string) (*NodeRecord, error)
	UpdateNodeContent(ctx context.Context, id, content string) error

	// DeleteNode soft-deletes; idempotent. PurgeNode is the admin
	// cleanup path: it hard-removes the node with its bindings and
	// memberships, bypassing the soft-delete convention.
	DeleteNode(ctx context.Context, id string) error
	PurgeNode(ctx context.Context, id string) error

	CreateField(ctx context.Context, rec FieldRecord) (string, error)
	FindFieldBySystemID(ctx context.Context, systemID string) (*FieldRecord, error)
	CreateSupertag(ctx context.Context, rec SupertagRecord) (string, error)
	FindSupertagBySystemID(ctx context.Context, systemID string) (*SupertagRecord, error)
	ListSupertags(ctx context.Context) ([]SupertagRecord, error)

	ListProperties(ctx context.Context, nodeID string) ([]PropertyRecord, error)

	// ReplaceProperty discards every prior value of the field on the
	// node and writes the single new value at order 0. AppendProperty
	// preserves insertion order by taking the next order slot.
	ReplaceProperty(ctx context.Context, nodeID, fieldSystemID string, value Value) error
	AppendProperty(ctx context.Context, nodeID, fieldSystemID string, value Value) error
	ClearProperty(ctx context.Context, nodeID, fieldSystemID string) error

	// AddSupertag returns false (no error) when the node already holds
	// the tag; RemoveSupertag returns false when it does not.
	AddSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error)
	RemoveSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error)
	NodeSupertags(ctx context.Context, nodeID string) ([]MembershipRecord, error)

	// NodesBySupertags matches any of the given tags by default, all of
	// them when matchAll is set. Soft-deleted nodes are excluded.
	NodesBySupertags(ctx context.Context, supertagSystemIDs []string, matchAll bool) ([]NodeRecord, error)

	// ActiveNodes lists every non-deleted node; the query evaluator's
	// candidate scan when no supertag filter narrows the set.
	ActiveNodes(ctx context.Context) ([]NodeRecord, error)
}
