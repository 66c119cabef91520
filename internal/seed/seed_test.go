package seed_test

import (
	"context"
	"testing"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/events"
	"github.com/yungbote/toolbench-backend/internal/seed"
	"github.com/yungbote/toolbench-backend/internal/store"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
)

const manifestYAML = `
fields:
  - systemId: field.status
    name: Status
    type: text
  - systemId: field.runs
    name: Runs
    type: number
  - systemId: field.repo
    name: Repository
    type: node
  - systemId: field.deps
    name: Dependencies
    type: nodes

supertags:
  - systemId: tag.tool
    name: Tool
    schema:
      - field: field.status
        default: installed
  - systemId: tag.script
    name: Script
    extends: tag.tool

nodes:
  - systemId: repo.infra
    content: infra repo
  - systemId: tool.rg
    content: ripgrep
    supertag: tag.tool
    properties:
      - field: field.status
        value: active
      - field: field.runs
        value: 12
  - systemId: script.backup
    content: backup.sh
    supertag: tag.script
    supertags:
      - tag.tool

relations:
  - from: tool.rg
    field: field.repo
    to: repo.infra
  - from: script.backup
    field: field.deps
    to: tool.rg
    append: true
`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(events.New(), nil)
	eng := relational.New(relational.Config{
		Driver:     relational.DriverSQLite,
		SQLitePath: ":memory:",
	}, nil)
	if err := s.InitWithEngine(context.Background(), eng); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestParseRejectsBadManifests(t *testing.T) {
	if _, err := seed.Parse([]byte("fields: [{name: NoID, type: text}]")); err == nil {
		t.Fatalf("field without systemId accepted")
	}
	if _, err := seed.Parse([]byte("fields: [{systemId: f, name: F, type: blob}]")); err == nil {
		t.Fatalf("unknown field type accepted")
	}
	if _, err := seed.Parse([]byte("nodes: [{content: orphan}]")); err == nil {
		t.Fatalf("node without systemId accepted")
	}
	if _, err := seed.Parse([]byte(":::not yaml")); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}

func TestApply(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := seed.Parse([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := seed.NewApplier(s, nil).Apply(ctx, m); err != nil {
		t.Fatalf("apply: %v", err)
	}

	rg, err := s.FindNodeBySystemID(ctx, "tool.rg")
	if err != nil || rg == nil {
		t.Fatalf("seeded node missing: %v %v", rg, err)
	}
	assembled, err := s.AssembleNode(ctx, rg.ID)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if got := assembled.Property("Status"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.Text("active")) {
		t.Fatalf("status: %+v", got)
	}
	if got := assembled.Property("Runs"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.Number(12)) {
		t.Fatalf("runs: %+v", got)
	}
	if !assembled.HasSupertag("tag.tool") {
		t.Fatalf("supertag missing: %+v", assembled.Supertags)
	}

	// Relations resolve systemIds to engine ids.
	repo, _ := s.FindNodeBySystemID(ctx, "repo.infra")
	if got := assembled.Property("Repository"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.NodeRef(repo.ID)) {
		t.Fatalf("repository relation: %+v", got)
	}

	// Script inherits the Tool schema default.
	backup, _ := s.FindNodeBySystemID(ctx, "script.backup")
	inherited, err := s.AssembleNodeWithInheritance(ctx, backup.ID)
	if err != nil {
		t.Fatalf("assemble with inheritance: %v", err)
	}
	if got := inherited.Property("Status"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.Text("installed")) {
		t.Fatalf("inherited default: %+v", got)
	}
	if !inherited.HasSupertag("tag.script") || !inherited.HasSupertag("tag.tool") {
		t.Fatalf("extra supertags not applied: %+v", inherited.Supertags)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := seed.Parse([]byte(manifestYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	applier := seed.NewApplier(s, nil)
	if err := applier.Apply(ctx, m); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := applier.Apply(ctx, m); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	rg, _ := s.FindNodeBySystemID(ctx, "tool.rg")
	assembled, err := s.AssembleNode(ctx, rg.ID)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if got := assembled.Property("Status"); len(got) != 1 {
		t.Fatalf("re-apply duplicated status: %+v", got)
	}

	// Appended relations must not grow on a re-apply either.
	backup, _ := s.FindNodeBySystemID(ctx, "script.backup")
	backupAssembled, err := s.AssembleNode(ctx, backup.ID)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if got := backupAssembled.Property("Dependencies"); len(got) != 1 {
		t.Fatalf("re-apply grew dependencies: %+v", got)
	}

	// tool.rg plus script.backup, which the manifest also tags tag.tool
	// directly.
	nodes, err := s.GetNodesBySupertags(ctx, []string{"tag.tool"}, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("re-apply duplicated nodes: %+v", nodes)
	}
}

func TestRelationToUnknownNodeFails(t *testing.T) {
	s := newTestStore(t)
	m := &seed.Manifest{
		Fields: []seed.FieldSpec{{SystemID: "field.repo", Name: "Repository", Type: "node"}},
		Nodes:  []seed.NodeSpec{{SystemID: "a", Content: "a"}},
		Relations: []seed.RelationSpec{
			{From: "a", Field: "field.repo", To: "missing"},
		},
	}
	if err := seed.NewApplier(s, nil).Apply(context.Background(), m); err == nil {
		t.Fatalf("relation to unknown node accepted")
	}
}
