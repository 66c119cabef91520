// Package seed loads a YAML manifest of schema definitions and initial
// nodes and applies it through the store facade. Applying the same
// manifest twice is safe: definitions and nodes are matched by systemId
// and skipped, and an existing node's properties and relations are left
// untouched.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/store"
)

type Manifest struct {
	Fields    []FieldSpec    `yaml:"fields"`
	Supertags []SupertagSpec `yaml:"supertags"`
	Nodes     []NodeSpec     `yaml:"nodes"`
	Relations []RelationSpec `yaml:"relations"`
}

type FieldSpec struct {
	SystemID string `yaml:"systemId"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
}

type SupertagSpec struct {
	SystemID string        `yaml:"systemId"`
	Name     string        `yaml:"name"`
	Extends  string        `yaml:"extends"`
	Schema   []DefaultSpec `yaml:"schema"`
}

type DefaultSpec struct {
	Field   string `yaml:"field"`
	Default any    `yaml:"default"`
}

type NodeSpec struct {
	SystemID   string         `yaml:"systemId"`
	Content    string         `yaml:"content"`
	Owner      string         `yaml:"owner"`
	Supertag   string         `yaml:"supertag"`
	Supertags  []string       `yaml:"supertags"`
	Properties []PropertySpec `yaml:"properties"`
}

type PropertySpec struct {
	Field  string `yaml:"field"`
	Value  any    `yaml:"value"`
	Append bool   `yaml:"append"`
}

// RelationSpec binds a node-reference field between two seeded nodes,
// both named by systemId.
type RelationSpec struct {
	From   string `yaml:"from"`
	Field  string `yaml:"field"`
	To     string `yaml:"to"`
	Append bool   `yaml:"append"`
}

func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("seed: parse manifest: %w", err)
	}
	for _, f := range m.Fields {
		if f.SystemID == "" {
			return nil, fmt.Errorf("seed: field without systemId")
		}
		if !node.ValidFieldType(node.FieldType(f.Type)) {
			return nil, fmt.Errorf("seed: field %s: unknown type %q", f.SystemID, f.Type)
		}
	}
	for _, tag := range m.Supertags {
		if tag.SystemID == "" {
			return nil, fmt.Errorf("seed: supertag without systemId")
		}
	}
	for _, n := range m.Nodes {
		if n.SystemID == "" {
			return nil, fmt.Errorf("seed: node without systemId")
		}
	}
	return &m, nil
}

// Applier drives a manifest through the store.
type Applier struct {
	store *store.Store
	log   *logger.Logger
}

func NewApplier(s *store.Store, baseLog *logger.Logger) *Applier {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Applier{store: s, log: baseLog.With("component", "Seed")}
}

// Apply creates manifest entries in dependency order: fields, then
// supertags, then nodes, then relations. Properties and relations are
// written only for nodes created by this run, so re-applying a manifest
// with append entries never grows multi-value fields.
func (a *Applier) Apply(ctx context.Context, m *Manifest) error {
	if err := a.applyFields(ctx, m.Fields); err != nil {
		return err
	}
	if err := a.applySupertags(ctx, m.Supertags); err != nil {
		return err
	}
	created, err := a.applyNodes(ctx, m.Nodes)
	if err != nil {
		return err
	}
	return a.applyRelations(ctx, m.Relations, created)
}

func (a *Applier) applyFields(ctx context.Context, fields []FieldSpec) error {
	for _, f := range fields {
		existing, err := a.store.FindFieldBySystemID(ctx, f.SystemID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := a.store.CreateField(ctx, node.FieldRecord{
			SystemID: f.SystemID,
			Name:     f.Name,
			Type:     node.FieldType(f.Type),
		}); err != nil {
			return fmt.Errorf("seed: create field %s: %w", f.SystemID, err)
		}
		a.log.Info("seeded field", "systemId", f.SystemID)
	}
	return nil
}

func (a *Applier) applySupertags(ctx context.Context, tags []SupertagSpec) error {
	for _, tag := range tags {
		existing, err := a.store.FindSupertagBySystemID(ctx, tag.SystemID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		rec := node.SupertagRecord{SystemID: tag.SystemID, Name: tag.Name}
		if tag.Extends != "" {
			extends := tag.Extends
			rec.ExtendsSystemID = &extends
		}
		for _, def := range tag.Schema {
			val, err := a.convertValue(ctx, def.Field, def.Default)
			if err != nil {
				return fmt.Errorf("seed: supertag %s default for %s: %w", tag.SystemID, def.Field, err)
			}
			rec.FieldSchema = append(rec.FieldSchema, node.FieldDefault{
				FieldSystemID: def.Field,
				Default:       val,
			})
		}
		if _, err := a.store.CreateSupertag(ctx, rec); err != nil {
			return fmt.Errorf("seed: create supertag %s: %w", tag.SystemID, err)
		}
		a.log.Info("seeded supertag", "systemId", tag.SystemID)
	}
	return nil
}

func (a *Applier) applyNodes(ctx context.Context, nodes []NodeSpec) (map[string]bool, error) {
	created := make(map[string]bool, len(nodes))
	for _, spec := range nodes {
		existing, err := a.store.FindNodeBySystemID(ctx, spec.SystemID)
		if err != nil {
			return nil, err
		}
		// An existing node keeps its state; definitions are additive.
		if existing != nil {
			continue
		}
		systemID := spec.SystemID
		opts := node.CreateNodeOptions{SystemID: &systemID}
		if spec.Content != "" {
			content := spec.Content
			opts.Content = &content
		}
		if spec.Owner != "" {
			owner := spec.Owner
			opts.OwnerID = &owner
		}
		if spec.Supertag != "" {
			supertag := spec.Supertag
			opts.SupertagID = &supertag
		}
		id, err := a.store.CreateNode(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("seed: create node %s: %w", spec.SystemID, err)
		}
		created[spec.SystemID] = true
		a.log.Info("seeded node", "systemId", spec.SystemID)

		// Extra tags beyond the creation one.
		for _, tag := range spec.Supertags {
			if _, err := a.store.AddNodeSupertag(ctx, id, tag); err != nil {
				return nil, fmt.Errorf("seed: tag node %s with %s: %w", spec.SystemID, tag, err)
			}
		}

		for _, prop := range spec.Properties {
			val, err := a.convertValue(ctx, prop.Field, prop.Value)
			if err != nil {
				return nil, fmt.Errorf("seed: node %s property %s: %w", spec.SystemID, prop.Field, err)
			}
			if prop.Append {
				err = a.store.AddPropertyValue(ctx, id, prop.Field, val)
			} else {
				err = a.store.SetProperty(ctx, id, prop.Field, val)
			}
			if err != nil {
				return nil, fmt.Errorf("seed: node %s property %s: %w", spec.SystemID, prop.Field, err)
			}
		}
	}
	return created, nil
}

func (a *Applier) applyRelations(ctx context.Context, relations []RelationSpec, created map[string]bool) error {
	for _, rel := range relations {
		// Relations belong to the run that created their source node;
		// re-applying a manifest must not grow append bindings.
		if !created[rel.From] {
			continue
		}
		from, err := a.resolveNode(ctx, rel.From)
		if err != nil {
			return err
		}
		to, err := a.resolveNode(ctx, rel.To)
		if err != nil {
			return err
		}
		if err := a.store.LinkNodes(ctx, from, rel.Field, to, rel.Append); err != nil {
			return fmt.Errorf("seed: relate %s -[%s]-> %s: %w", rel.From, rel.Field, rel.To, err)
		}
	}
	return nil
}

func (a *Applier) resolveNode(ctx context.Context, systemID string) (string, error) {
	rec, err := a.store.FindNodeBySystemID(ctx, systemID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("seed: unknown node %q", systemID)
	}
	return rec.ID, nil
}

// convertValue turns a YAML scalar into the typed value the field's
// declared type requires. Node-typed fields take systemIds and resolve
// them to engine ids.
func (a *Applier) convertValue(ctx context.Context, fieldSystemID string, raw any) (node.Value, error) {
	field, err := a.store.FindFieldBySystemID(ctx, fieldSystemID)
	if err != nil {
		return nil, err
	}
	if field == nil {
		return nil, fmt.Errorf("unknown field %q", fieldSystemID)
	}

	switch field.Type {
	case node.FieldText, node.FieldSelect:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %s wants a string, got %T", fieldSystemID, raw)
		}
		return node.Text(s), nil
	case node.FieldNumber:
		switch n := raw.(type) {
		case int:
			return node.Number(n), nil
		case int64:
			return node.Number(n), nil
		case float64:
			return node.Number(n), nil
		default:
			return nil, fmt.Errorf("field %s wants a number, got %T", fieldSystemID, raw)
		}
	case node.FieldBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("field %s wants a bool, got %T", fieldSystemID, raw)
		}
		return node.Bool(b), nil
	case node.FieldJSON:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: marshal json value: %w", fieldSystemID, err)
		}
		return node.JSON(data), nil
	case node.FieldNode:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %s wants a node systemId, got %T", fieldSystemID, raw)
		}
		id, err := a.resolveNode(ctx, s)
		if err != nil {
			return nil, err
		}
		return node.NodeRef(id), nil
	case node.FieldNodes:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("field %s wants a list of node systemIds, got %T", fieldSystemID, raw)
		}
		refs := make(node.NodeRefList, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field %s: list item %T is not a systemId", fieldSystemID, item)
			}
			id, err := a.resolveNode(ctx, s)
			if err != nil {
				return nil, err
			}
			refs = append(refs, id)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("field %s: unhandled type %q", fieldSystemID, field.Type)
	}
}
