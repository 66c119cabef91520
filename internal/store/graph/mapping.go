package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
)

// count runs a single-row query returning an integer column named "c".
func count(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (int64, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return 0, storeerr.Engine(err)
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return 0, storeerr.Engine(err)
	}
	v, ok := rec.Get("c")
	if !ok {
		return 0, storeerr.Engine(fmt.Errorf("count query returned no column c"))
	}
	n, ok := v.(int64)
	if !ok {
		return 0, storeerr.Engine(fmt.Errorf("count query returned %T", v))
	}
	return n, nil
}

func requireFieldAndNode(ctx context.Context, tx neo4j.ManagedTransaction, fieldSystemID, nodeID string) error {
	n, err := count(ctx, tx, `MATCH (f:Field {system_id: $fid}) RETURN count(f) AS c`,
		map[string]any{"fid": fieldSystemID})
	if err != nil {
		return err
	}
	if n == 0 {
		return storeerr.FieldNotFound(fieldSystemID)
	}
	n, err = count(ctx, tx, `MATCH (n:Node {id: $id}) RETURN count(n) AS c`,
		map[string]any{"id": nodeID})
	if err != nil {
		return err
	}
	if n == 0 {
		return storeerr.NotFound("node", nodeID)
	}
	return nil
}

func propsOf(rec *db.Record, key string) (map[string]any, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, storeerr.Engine(fmt.Errorf("record missing column %q", key))
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return nil, storeerr.Engine(fmt.Errorf("column %q is %T, want node", key, v))
	}
	return n.Props, nil
}

func relPropsOf(rec *db.Record, key string) (map[string]any, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, storeerr.Engine(fmt.Errorf("record missing column %q", key))
	}
	r, ok := v.(neo4j.Relationship)
	if !ok {
		return nil, storeerr.Engine(fmt.Errorf("column %q is %T, want relationship", key, v))
	}
	return r.Props, nil
}

func collectNodes(ctx context.Context, res neo4j.ResultWithContext) ([]node.NodeRecord, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, storeerr.Engine(err)
	}
	nodes := make([]node.NodeRecord, 0, len(records))
	for _, rec := range records {
		nr, err := nodeFromRecord(rec, "n")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *nr)
	}
	return nodes, nil
}

func nodeFromRecord(rec *db.Record, key string) (*node.NodeRecord, error) {
	props, err := propsOf(rec, key)
	if err != nil {
		return nil, err
	}
	return &node.NodeRecord{
		ID:           propStr(props, "id"),
		Content:      propStrPtr(props, "content"),
		ContentPlain: propStr(props, "content_plain"),
		SystemID:     propStrPtr(props, "system_id"),
		OwnerID:      propStrPtr(props, "owner_id"),
		CreatedAt:    propTime(props, "created_at"),
		UpdatedAt:    propTime(props, "updated_at"),
		DeletedAt:    propTimePtr(props, "deleted_at"),
	}, nil
}

func fieldFromProps(props map[string]any) *node.FieldRecord {
	return &node.FieldRecord{
		ID:        propStr(props, "id"),
		SystemID:  propStr(props, "system_id"),
		Name:      propStr(props, "name"),
		Type:      node.FieldType(propStr(props, "value_type")),
		CreatedAt: propTime(props, "created_at"),
		UpdatedAt: propTime(props, "updated_at"),
	}
}

func supertagFromProps(props map[string]any) (*node.SupertagRecord, error) {
	schema, err := node.DecodeFieldSchema([]byte(propStr(props, "field_schema_json")))
	if err != nil {
		return nil, fmt.Errorf("graph: decode field schema: %w", err)
	}
	return &node.SupertagRecord{
		ID:              propStr(props, "id"),
		SystemID:        propStr(props, "system_id"),
		Name:            propStr(props, "name"),
		ExtendsSystemID: propStrPtr(props, "extends_system_id"),
		FieldSchema:     schema,
		CreatedAt:       propTime(props, "created_at"),
		UpdatedAt:       propTime(props, "updated_at"),
	}, nil
}

func propStr(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propStrPtr(props map[string]any, key string) *string {
	s, ok := props[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func propInt(props map[string]any, key string) int {
	n, _ := props[key].(int64)
	return int(n)
}

func propTime(props map[string]any, key string) time.Time {
	s, ok := props[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func propTimePtr(props map[string]any, key string) *time.Time {
	s, ok := props[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func plainOrEmpty(content *string) string {
	if content == nil {
		return ""
	}
	return node.PlainContent(*content)
}
