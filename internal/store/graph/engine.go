// Package graph implements the node store contract on Neo4j. Nodes,
// fields, and supertags are labeled graph nodes; property bindings and
// supertag memberships are relationships carrying the value payload and
// sort order. Timestamps travel as RFC3339Nano strings, the backend's
// convention for graph properties.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/platform/neo4jdb"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
)

// Engine is the graph-native storage engine.
type Engine struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func New(client *neo4jdb.Client, baseLog *logger.Logger) *Engine {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Engine{client: client, log: baseLog.With("engine", "Graph")}
}

func (e *Engine) Init(ctx context.Context) error {
	if e.client == nil || e.client.Driver == nil {
		return storeerr.Engine(fmt.Errorf("graph: no client"))
	}
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	// Best-effort schema helpers; restricted users may not hold the
	// privilege, which is tolerable.
	constraints := []string{
		`CREATE CONSTRAINT node_id_unique IF NOT EXISTS FOR (n:Node) REQUIRE n.id IS UNIQUE`,
		`CREATE CONSTRAINT node_system_id_unique IF NOT EXISTS FOR (n:Node) REQUIRE n.system_id IS UNIQUE`,
		`CREATE CONSTRAINT field_system_id_unique IF NOT EXISTS FOR (f:Field) REQUIRE f.system_id IS UNIQUE`,
		`CREATE CONSTRAINT supertag_system_id_unique IF NOT EXISTS FOR (t:Supertag) REQUIRE t.system_id IS UNIQUE`,
	}
	for _, stmt := range constraints {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			e.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
	return nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.client.Close(ctx)
}

// Save is a no-op: every operation commits its own transaction.
func (e *Engine) Save(ctx context.Context) error { return nil }

func (e *Engine) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return e.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: e.client.Database,
	})
}

// --- nodes ---

func (e *Engine) CreateNode(ctx context.Context, opts node.CreateNodeOptions) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		withSupertag := opts.SupertagID != nil && *opts.SupertagID != ""
		if withSupertag {
			n, err := count(ctx, tx, `MATCH (t:Supertag {system_id: $sid}) RETURN count(t) AS c`,
				map[string]any{"sid": *opts.SupertagID})
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, storeerr.SupertagNotFound(*opts.SupertagID)
			}
		}
		if opts.SystemID != nil {
			n, err := count(ctx, tx, `MATCH (n:Node {system_id: $sid}) RETURN count(n) AS c`,
				map[string]any{"sid": *opts.SystemID})
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, storeerr.Conflict("node systemId", *opts.SystemID)
			}
		}

		params := map[string]any{
			"id":            id,
			"content":       strOrNil(opts.Content),
			"content_plain": plainOrEmpty(opts.Content),
			"system_id":     strOrNil(opts.SystemID),
			"owner_id":      strOrNil(opts.OwnerID),
			"now":           now,
		}
		res, err := tx.Run(ctx, `
CREATE (n:Node {
  id: $id,
  content: $content,
  content_plain: $content_plain,
  system_id: $system_id,
  owner_id: $owner_id,
  created_at: $now,
  updated_at: $now
})`, params)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}

		if withSupertag {
			res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})
MATCH (t:Supertag {system_id: $sid})
CREATE (n)-[:HAS_SUPERTAG {sort_order: 0, created_at: $now, updated_at: $now}]->(t)`,
				map[string]any{"id": id, "sid": *opts.SupertagID, "now": now})
			if err != nil {
				return nil, storeerr.Engine(err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, storeerr.Engine(err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) FindNodeByID(ctx context.Context, id string) (*node.NodeRecord, error) {
	return e.findNode(ctx, `MATCH (n:Node {id: $key}) RETURN n`, id)
}

func (e *Engine) FindNodeBySystemID(ctx context.Context, systemID string) (*node.NodeRecord, error) {
	return e.findNode(ctx, `MATCH (n:Node {system_id: $key}) RETURN n`, systemID)
}

func (e *Engine) findNode(ctx context.Context, query, key string) (*node.NodeRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"key": key})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if len(records) == 0 {
			return (*node.NodeRecord)(nil), nil
		}
		return nodeFromRecord(records[0], "n")
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(*node.NodeRecord)
	return rec, nil
}

func (e *Engine) UpdateNodeContent(ctx context.Context, id, content string) error {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `
MATCH (n:Node {id: $id})
SET n.content = $content, n.content_plain = $plain, n.updated_at = $now
RETURN count(n) AS c`,
			map[string]any{
				"id":      id,
				"content": content,
				"plain":   node.PlainContent(content),
				"now":     time.Now().UTC().Format(time.RFC3339Nano),
			})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, storeerr.NotFound("node", id)
		}
		return nil, nil
	})
	return err
}

func (e *Engine) DeleteNode(ctx context.Context, id string) error {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})
WHERE n.deleted_at IS NULL
SET n.deleted_at = $now, n.updated_at = $now`,
			map[string]any{"id": id, "now": now})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	return err
}

func (e *Engine) PurgeNode(ctx context.Context, id string) error {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Node {id: $id}) DETACH DELETE n`, map[string]any{"id": id})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	return err
}

// --- fields and supertags ---

func (e *Engine) CreateField(ctx context.Context, rec node.FieldRecord) (string, error) {
	if !node.ValidFieldType(rec.Type) {
		return "", fmt.Errorf("graph: invalid field type %q", rec.Type)
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `MATCH (f:Field {system_id: $sid}) RETURN count(f) AS c`,
			map[string]any{"sid": rec.SystemID})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, storeerr.Conflict("field", rec.SystemID)
		}
		res, err := tx.Run(ctx, `
CREATE (:Field {id: $id, system_id: $sid, name: $name, value_type: $vt, created_at: $now, updated_at: $now})`,
			map[string]any{"id": id, "sid": rec.SystemID, "name": rec.Name, "vt": string(rec.Type), "now": now})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) FindFieldBySystemID(ctx context.Context, systemID string) (*node.FieldRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (f:Field {system_id: $sid}) RETURN f`, map[string]any{"sid": systemID})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if len(records) == 0 {
			return (*node.FieldRecord)(nil), nil
		}
		props, err := propsOf(records[0], "f")
		if err != nil {
			return nil, err
		}
		return fieldFromProps(props), nil
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(*node.FieldRecord)
	return rec, nil
}

func (e *Engine) CreateSupertag(ctx context.Context, rec node.SupertagRecord) (string, error) {
	schema, err := node.EncodeFieldSchema(rec.FieldSchema)
	if err != nil {
		return "", fmt.Errorf("graph: encode field schema: %w", err)
	}
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `MATCH (t:Supertag {system_id: $sid}) RETURN count(t) AS c`,
			map[string]any{"sid": rec.SystemID})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, storeerr.Conflict("supertag", rec.SystemID)
		}
		res, err := tx.Run(ctx, `
CREATE (:Supertag {
  id: $id,
  system_id: $sid,
  name: $name,
  extends_system_id: $extends,
  field_schema_json: $schema,
  created_at: $now,
  updated_at: $now
})`,
			map[string]any{
				"id":      id,
				"sid":     rec.SystemID,
				"name":    rec.Name,
				"extends": strOrNil(rec.ExtendsSystemID),
				"schema":  string(schema),
				"now":     now,
			})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) FindSupertagBySystemID(ctx context.Context, systemID string) (*node.SupertagRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (t:Supertag {system_id: $sid}) RETURN t`, map[string]any{"sid": systemID})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if len(records) == 0 {
			return (*node.SupertagRecord)(nil), nil
		}
		props, err := propsOf(records[0], "t")
		if err != nil {
			return nil, err
		}
		return supertagFromProps(props)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := out.(*node.SupertagRecord)
	return rec, nil
}

func (e *Engine) ListSupertags(ctx context.Context) ([]node.SupertagRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (t:Supertag) RETURN t ORDER BY t.system_id`, nil)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		tags := make([]node.SupertagRecord, 0, len(records))
		for _, rec := range records {
			props, err := propsOf(rec, "t")
			if err != nil {
				return nil, err
			}
			tag, err := supertagFromProps(props)
			if err != nil {
				return nil, err
			}
			tags = append(tags, *tag)
		}
		return tags, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]node.SupertagRecord), nil
}

// --- properties ---

func (e *Engine) ListProperties(ctx context.Context, nodeID string) ([]node.PropertyRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})-[p:HAS_PROPERTY]->(f:Field)
RETURN p, f
ORDER BY f.id, p.sort_order`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}

		props := make([]node.PropertyRecord, 0, len(records))
		for _, rec := range records {
			relProps, err := relPropsOf(rec, "p")
			if err != nil {
				return nil, err
			}
			fieldProps, err := propsOf(rec, "f")
			if err != nil {
				return nil, err
			}
			field := fieldFromProps(fieldProps)
			val, err := node.DecodeValue(field.Type, []byte(propStr(relProps, "value_json")))
			if err != nil {
				return nil, fmt.Errorf("graph: decode property %s/%s: %w", nodeID, field.SystemID, err)
			}
			props = append(props, node.PropertyRecord{
				NodeID:        nodeID,
				FieldID:       field.ID,
				FieldSystemID: field.SystemID,
				FieldName:     field.Name,
				Value:         val,
				Order:         propInt(relProps, "sort_order"),
				CreatedAt:     propTime(relProps, "created_at"),
				UpdatedAt:     propTime(relProps, "updated_at"),
			})
		}
		return props, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]node.PropertyRecord), nil
}

func (e *Engine) ReplaceProperty(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	data, err := node.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("graph: encode value: %w", err)
	}

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireFieldAndNode(ctx, tx, fieldSystemID, nodeID); err != nil {
			return nil, err
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})
MATCH (f:Field {system_id: $fid})
OPTIONAL MATCH (n)-[old:HAS_PROPERTY]->(f)
DELETE old
WITH DISTINCT n, f
CREATE (n)-[:HAS_PROPERTY {id: $pid, value_json: $value, sort_order: 0, created_at: $now, updated_at: $now}]->(f)`,
			map[string]any{
				"id":    nodeID,
				"fid":   fieldSystemID,
				"pid":   uuid.NewString(),
				"value": string(data),
				"now":   now,
			})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	return err
}

func (e *Engine) AppendProperty(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	data, err := node.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("graph: encode value: %w", err)
	}

	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := requireFieldAndNode(ctx, tx, fieldSystemID, nodeID); err != nil {
			return nil, err
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})
MATCH (f:Field {system_id: $fid})
OPTIONAL MATCH (n)-[p:HAS_PROPERTY]->(f)
WITH n, f, coalesce(max(p.sort_order), -1) + 1 AS next
CREATE (n)-[:HAS_PROPERTY {id: $pid, value_json: $value, sort_order: next, created_at: $now, updated_at: $now}]->(f)`,
			map[string]any{
				"id":    nodeID,
				"fid":   fieldSystemID,
				"pid":   uuid.NewString(),
				"value": string(data),
				"now":   now,
			})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	return err
}

func (e *Engine) ClearProperty(ctx context.Context, nodeID, fieldSystemID string) error {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `MATCH (f:Field {system_id: $fid}) RETURN count(f) AS c`,
			map[string]any{"fid": fieldSystemID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, storeerr.FieldNotFound(fieldSystemID)
		}
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})-[p:HAS_PROPERTY]->(f:Field {system_id: $fid})
DELETE p`,
			map[string]any{"id": nodeID, "fid": fieldSystemID})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return nil, nil
	})
	return err
}

// --- supertag membership ---

func (e *Engine) AddSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `MATCH (t:Supertag {system_id: $sid}) RETURN count(t) AS c`,
			map[string]any{"sid": supertagSystemID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, storeerr.SupertagNotFound(supertagSystemID)
		}
		n, err = count(ctx, tx, `MATCH (n:Node {id: $id}) RETURN count(n) AS c`,
			map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, storeerr.NotFound("node", nodeID)
		}

		existing, err := count(ctx, tx, `
MATCH (n:Node {id: $id})-[m:HAS_SUPERTAG]->(t:Supertag {system_id: $sid})
RETURN count(m) AS c`,
			map[string]any{"id": nodeID, "sid": supertagSystemID})
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			return false, nil
		}

		total, err := count(ctx, tx, `
MATCH (n:Node {id: $id})-[m:HAS_SUPERTAG]->(:Supertag)
RETURN count(m) AS c`,
			map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})
MATCH (t:Supertag {system_id: $sid})
CREATE (n)-[:HAS_SUPERTAG {sort_order: $order, created_at: $now, updated_at: $now}]->(t)`,
			map[string]any{"id": nodeID, "sid": supertagSystemID, "order": total, "now": now})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, storeerr.Engine(err)
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (e *Engine) RemoveSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	session := e.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		n, err := count(ctx, tx, `MATCH (t:Supertag {system_id: $sid}) RETURN count(t) AS c`,
			map[string]any{"sid": supertagSystemID})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, storeerr.SupertagNotFound(supertagSystemID)
		}
		removed, err := count(ctx, tx, `
MATCH (n:Node {id: $id})-[m:HAS_SUPERTAG]->(t:Supertag {system_id: $sid})
DELETE m
RETURN count(m) AS c`,
			map[string]any{"id": nodeID, "sid": supertagSystemID})
		if err != nil {
			return nil, err
		}
		return removed > 0, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (e *Engine) NodeSupertags(ctx context.Context, nodeID string) ([]node.MembershipRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:Node {id: $id})-[m:HAS_SUPERTAG]->(t:Supertag)
RETURN m, t
ORDER BY m.sort_order`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, storeerr.Engine(err)
		}

		memberships := make([]node.MembershipRecord, 0, len(records))
		for _, rec := range records {
			relProps, err := relPropsOf(rec, "m")
			if err != nil {
				return nil, err
			}
			tagProps, err := propsOf(rec, "t")
			if err != nil {
				return nil, err
			}
			memberships = append(memberships, node.MembershipRecord{
				NodeID:     nodeID,
				SupertagID: propStr(tagProps, "system_id"),
				Content:    propStr(tagProps, "name"),
				Order:      propInt(relProps, "sort_order"),
				CreatedAt:  propTime(relProps, "created_at"),
				UpdatedAt:  propTime(relProps, "updated_at"),
			})
		}
		return memberships, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]node.MembershipRecord), nil
}

func (e *Engine) NodesBySupertags(ctx context.Context, supertagSystemIDs []string, matchAll bool) ([]node.NodeRecord, error) {
	if len(supertagSystemIDs) == 0 {
		return []node.NodeRecord{}, nil
	}

	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:Node)-[:HAS_SUPERTAG]->(t:Supertag)
WHERE t.system_id IN $sids AND n.deleted_at IS NULL
WITH n, count(DISTINCT t.system_id) AS hits
WHERE (NOT $matchAll) OR hits = $want
RETURN n
ORDER BY n.id`,
			map[string]any{"sids": supertagSystemIDs, "matchAll": matchAll, "want": len(supertagSystemIDs)})
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		return collectNodes(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out.([]node.NodeRecord), nil
}

func (e *Engine) ActiveNodes(ctx context.Context) ([]node.NodeRecord, error) {
	session := e.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:Node)
WHERE n.deleted_at IS NULL
RETURN n
ORDER BY n.id`, nil)
		if err != nil {
			return nil, storeerr.Engine(err)
		}
		return collectNodes(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out.([]node.NodeRecord), nil
}
