package store

import (
	"context"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
)

// defaultMaxDepth bounds extends-chain walks when the caller does not
// supply a limit. Chains deeper than this are treated as configuration
// errors, not followed to infinity.
const defaultMaxDepth = 32

// ancestorSupertags walks the extends chain of the given supertag,
// nearest ancestor first. A visited set guards against cyclic chains. A
// dangling extends reference ends the walk with the ancestors resolved
// so far.
func ancestorSupertags(ctx context.Context, e node.Engine, systemID string, maxDepth int) ([]node.SupertagRecord, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	cur, err := e.FindSupertagBySystemID(ctx, systemID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, storeerr.SupertagNotFound(systemID)
	}

	visited := map[string]bool{cur.SystemID: true}
	out := make([]node.SupertagRecord, 0, 4)

	for depth := 0; depth < maxDepth; depth++ {
		if cur.ExtendsSystemID == nil || *cur.ExtendsSystemID == "" {
			break
		}
		parentID := *cur.ExtendsSystemID
		if visited[parentID] {
			break
		}
		parent, err := e.FindSupertagBySystemID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		visited[parent.SystemID] = true
		out = append(out, *parent)
		cur = parent
	}

	return out, nil
}

// supertagFieldDefinitions resolves the merged field schema of a
// supertag: its own entries plus every ancestor's, closest definition
// winning when the same field appears more than once in the chain.
func supertagFieldDefinitions(ctx context.Context, e node.Engine, systemID string) (map[string]node.FieldDefinition, error) {
	self, err := e.FindSupertagBySystemID(ctx, systemID)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return nil, storeerr.SupertagNotFound(systemID)
	}

	ancestors, err := ancestorSupertags(ctx, e, systemID, 0)
	if err != nil {
		return nil, err
	}

	chain := append([]node.SupertagRecord{*self}, ancestors...)
	out := make(map[string]node.FieldDefinition)
	for _, tag := range chain {
		for _, def := range tag.FieldSchema {
			if _, seen := out[def.FieldSystemID]; seen {
				continue
			}
			field, err := e.FindFieldBySystemID(ctx, def.FieldSystemID)
			if err != nil {
				return nil, err
			}
			if field == nil {
				return nil, storeerr.FieldNotFound(def.FieldSystemID)
			}
			out[def.FieldSystemID] = node.FieldDefinition{
				FieldID:       field.ID,
				FieldSystemID: field.SystemID,
				FieldName:     field.Name,
				Default:       def.Default,
			}
		}
	}
	return out, nil
}

// descendantSupertags computes the "is-a" closure of a supertag: the
// tag itself plus every tag whose extends chain reaches it.
func descendantSupertags(ctx context.Context, e node.Engine, systemID string) ([]string, error) {
	target, err := e.FindSupertagBySystemID(ctx, systemID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, storeerr.SupertagNotFound(systemID)
	}

	all, err := e.ListSupertags(ctx)
	if err != nil {
		return nil, err
	}

	out := []string{target.SystemID}
	for _, tag := range all {
		if tag.SystemID == target.SystemID {
			continue
		}
		ancestors, err := ancestorSupertags(ctx, e, tag.SystemID, 0)
		if err != nil {
			return nil, err
		}
		for _, anc := range ancestors {
			if anc.SystemID == target.SystemID {
				out = append(out, tag.SystemID)
				break
			}
		}
	}
	return out, nil
}

// assembleWithInheritance assembles the node, then fills each schema
// field that carries a default and has no binding on the node. The
// node's own value, even an empty string, always wins over a default.
func assembleWithInheritance(ctx context.Context, e node.Engine, nodeID string) (*node.AssembledNode, error) {
	assembled, err := assembleNode(ctx, e, nodeID)
	if err != nil || assembled == nil {
		return assembled, err
	}

	bound := make(map[string]bool)
	for _, entries := range assembled.Properties {
		for _, entry := range entries {
			bound[entry.FieldSystemID] = true
		}
	}

	// Membership order decides which tag's schema fills a gap first.
	seen := make(map[string]bool)
	for _, ref := range assembled.Supertags {
		defs, err := supertagFieldDefinitions(ctx, e, ref.SystemID)
		if err != nil {
			return nil, err
		}
		for fieldSystemID, def := range defs {
			if def.Default == nil || bound[fieldSystemID] || seen[fieldSystemID] {
				continue
			}
			seen[fieldSystemID] = true
			assembled.Properties[def.FieldName] = append(assembled.Properties[def.FieldName], node.PropertyEntry{
				Value:         def.Default,
				Order:         0,
				FieldSystemID: def.FieldSystemID,
				FieldName:     def.FieldName,
			})
		}
	}
	return assembled, nil
}

// assembleNode materializes the read model, returning nil for missing
// and soft-deleted nodes.
func assembleNode(ctx context.Context, e node.Engine, nodeID string) (*node.AssembledNode, error) {
	rec, err := e.FindNodeByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Active() {
		return nil, nil
	}
	props, err := e.ListProperties(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	memberships, err := e.NodeSupertags(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return node.Assemble(rec, props, memberships), nil
}
