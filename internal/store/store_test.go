package store_test

import (
	"context"
	"testing"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/events"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
	"github.com/yungbote/toolbench-backend/internal/store"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
)

func newMemoryStore(t *testing.T) *store.Store {
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

func str(s string) *string { return &s }

func TestUninitializedStore(t *testing.T) {
	s := store.New(nil, nil)
	ctx := context.Background()

	if _, err := s.CreateNode(ctx, node.CreateNodeOptions{}); !storeerr.IsNotInitialized(err) {
		t.Fatalf("CreateNode: want not_initialized, got %v", err)
	}
	if _, err := s.FindNodeByID(ctx, "x"); !storeerr.IsNotInitialized(err) {
		t.Fatalf("FindNodeByID: want not_initialized, got %v", err)
	}
	if err := s.SetProperty(ctx, "x", "f", node.Text("v")); !storeerr.IsNotInitialized(err) {
		t.Fatalf("SetProperty: want not_initialized, got %v", err)
	}
	if _, err := s.EvaluateQuery(ctx, store.Query{}); !storeerr.IsNotInitialized(err) {
		t.Fatalf("EvaluateQuery: want not_initialized, got %v", err)
	}
	if err := s.Save(ctx); !storeerr.IsNotInitialized(err) {
		t.Fatalf("Save: want not_initialized, got %v", err)
	}
}

func TestInitUnknownBackend(t *testing.T) {
	s := store.New(nil, nil)
	if err := s.Init(context.Background(), store.Config{Backend: "document"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestInitIdempotent(t *testing.T) {
	s := newMemoryStore(t)
	// A second init attempt must not replace the running engine.
	if err := s.Init(context.Background(), store.Config{Backend: "document"}); err != nil {
		t.Fatalf("re-init on initialized store: %v", err)
	}
	if _, err := s.CreateNode(context.Background(), node.CreateNodeOptions{}); err != nil {
		t.Fatalf("store unusable after re-init: %v", err)
	}
}

func TestLinkNodesAppend(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.CreateField(ctx, node.FieldRecord{SystemID: "field.deps", Name: "Dependencies", Type: node.FieldNodes}); err != nil {
		t.Fatalf("create field: %v", err)
	}
	a, err := s.CreateNode(ctx, node.CreateNodeOptions{Content: str("app")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dep1, _ := s.CreateNode(ctx, node.CreateNodeOptions{Content: str("lib one")})
	dep2, _ := s.CreateNode(ctx, node.CreateNodeOptions{Content: str("lib two")})

	if err := s.LinkNodes(ctx, a, "field.deps", dep1, true); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.LinkNodes(ctx, a, "field.deps", dep2, true); err != nil {
		t.Fatalf("link: %v", err)
	}

	assembled, err := s.AssembleNode(ctx, a)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	entries := assembled.Property("Dependencies")
	if len(entries) != 2 {
		t.Fatalf("append link left %d entries: %+v", len(entries), entries)
	}
	if !node.ValueEqual(entries[0].Value, node.NodeRef(dep1)) || !node.ValueEqual(entries[1].Value, node.NodeRef(dep2)) {
		t.Fatalf("link order: %+v", entries)
	}

	// Replace collapses the list to the single new reference.
	if err := s.LinkNodes(ctx, a, "field.deps", dep2, false); err != nil {
		t.Fatalf("replace link: %v", err)
	}
	assembled, _ = s.AssembleNode(ctx, a)
	entries = assembled.Property("Dependencies")
	if len(entries) != 1 || !node.ValueEqual(entries[0].Value, node.NodeRef(dep2)) {
		t.Fatalf("replace link: %+v", entries)
	}
}

func TestAncestorDepthLimit(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.CreateSupertag(ctx, node.SupertagRecord{SystemID: "tag.l0", Name: "L0"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 4; i++ {
		parent := "tag.l" + string(rune('0'+i-1))
		child := "tag.l" + string(rune('0'+i))
		if _, err := s.CreateSupertag(ctx, node.SupertagRecord{SystemID: child, Name: child, ExtendsSystemID: &parent}); err != nil {
			t.Fatalf("create %s: %v", child, err)
		}
	}

	ancestors, err := s.GetAncestorSupertags(ctx, "tag.l4", 2)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 2 || ancestors[0].SystemID != "tag.l3" || ancestors[1].SystemID != "tag.l2" {
		t.Fatalf("depth-limited walk: %+v", ancestors)
	}

	full, err := s.GetAncestorSupertags(ctx, "tag.l4", 0)
	if err != nil {
		t.Fatalf("full walk: %v", err)
	}
	if len(full) != 4 {
		t.Fatalf("full walk length: %+v", full)
	}
}

func TestQueryOperators(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	if _, err := s.CreateField(ctx, node.FieldRecord{SystemID: "field.runs", Name: "Runs", Type: node.FieldNumber}); err != nil {
		t.Fatalf("create field: %v", err)
	}
	low, _ := s.CreateNode(ctx, node.CreateNodeOptions{Content: str("low")})
	high, _ := s.CreateNode(ctx, node.CreateNodeOptions{Content: str("high")})
	if err := s.SetProperty(ctx, low, "field.runs", node.Number(2)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetProperty(ctx, high, "field.runs", node.Number(9)); err != nil {
		t.Fatalf("set: %v", err)
	}

	gt, err := s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterProperty, FieldID: "field.runs", Op: store.OpGt, Value: node.Number(5)},
	}})
	if err != nil {
		t.Fatalf("gt query: %v", err)
	}
	if gt.TotalCount != 1 || gt.Nodes[0].ID != high {
		t.Fatalf("gt: %+v", gt.Nodes)
	}

	ne, err := s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterProperty, FieldID: "field.runs", Op: store.OpNe, Value: node.Number(2)},
	}})
	if err != nil {
		t.Fatalf("ne query: %v", err)
	}
	if ne.TotalCount != 1 || ne.Nodes[0].ID != high {
		t.Fatalf("ne: %+v", ne.Nodes)
	}
}
