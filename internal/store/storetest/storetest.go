// Package storetest is the shared conformance suite for storage
// engines. Both backends run the same scenarios through the facade, so
// a behavioral divergence between them fails here before it reaches a
// caller.
package storetest

import (
	"context"
	"testing"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/events"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
	"github.com/yungbote/toolbench-backend/internal/store"
)

// Factory returns a fresh, empty engine per invocation. Engines backed
// by shared servers must reset their database before returning.
type Factory func(t *testing.T) node.Engine

// Run executes the full conformance suite against engines built by the
// factory.
func Run(t *testing.T, factory Factory) {
	t.Run("NodeLifecycle", func(t *testing.T) { testNodeLifecycle(t, factory) })
	t.Run("SystemIDConflict", func(t *testing.T) { testSystemIDConflict(t, factory) })
	t.Run("CreateWithSupertag", func(t *testing.T) { testCreateWithSupertag(t, factory) })
	t.Run("Properties", func(t *testing.T) { testProperties(t, factory) })
	t.Run("Assembly", func(t *testing.T) { testAssembly(t, factory) })
	t.Run("Membership", func(t *testing.T) { testMembership(t, factory) })
	t.Run("NodesBySupertags", func(t *testing.T) { testNodesBySupertags(t, factory) })
	t.Run("Inheritance", func(t *testing.T) { testInheritance(t, factory) })
	t.Run("InheritanceCycle", func(t *testing.T) { testInheritanceCycle(t, factory) })
	t.Run("Query", func(t *testing.T) { testQuery(t, factory) })
	t.Run("Events", func(t *testing.T) { testEvents(t, factory) })
	t.Run("Purge", func(t *testing.T) { testPurge(t, factory) })
}

func newStore(t *testing.T, factory Factory) *store.Store {
	t.Helper()
	s := store.New(events.New(), logger.Nop())
	if err := s.InitWithEngine(context.Background(), factory(t)); err != nil {
		t.Fatalf("init engine: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func str(s string) *string { return &s }

func mustCreateField(t *testing.T, s *store.Store, systemID, name string, ft node.FieldType) {
	t.Helper()
	if _, err := s.CreateField(context.Background(), node.FieldRecord{SystemID: systemID, Name: name, Type: ft}); err != nil {
		t.Fatalf("create field %s: %v", systemID, err)
	}
}

func mustCreateSupertag(t *testing.T, s *store.Store, rec node.SupertagRecord) {
	t.Helper()
	if _, err := s.CreateSupertag(context.Background(), rec); err != nil {
		t.Fatalf("create supertag %s: %v", rec.SystemID, err)
	}
}

func mustCreateNode(t *testing.T, s *store.Store, opts node.CreateNodeOptions) string {
	t.Helper()
	id, err := s.CreateNode(context.Background(), opts)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	return id
}

func testNodeLifecycle(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("deploy script"), SystemID: str("tool.deploy")})

	rec, err := s.FindNodeByID(ctx, id)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if rec == nil || rec.ContentOrEmpty() != "deploy script" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ContentPlain != "deploy script" {
		t.Fatalf("content_plain = %q", rec.ContentPlain)
	}

	bySystem, err := s.FindNodeBySystemID(ctx, "tool.deploy")
	if err != nil {
		t.Fatalf("find by systemId: %v", err)
	}
	if bySystem == nil || bySystem.ID != id {
		t.Fatalf("systemId lookup mismatch: %+v", bySystem)
	}

	missing, err := s.FindNodeByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing node, got %+v", missing)
	}

	if err := s.UpdateNodeContent(ctx, id, "Deploy Script v2"); err != nil {
		t.Fatalf("update content: %v", err)
	}
	rec, err = s.FindNodeByID(ctx, id)
	if err != nil {
		t.Fatalf("re-find: %v", err)
	}
	if rec.ContentOrEmpty() != "Deploy Script v2" || rec.ContentPlain != "deploy script v2" {
		t.Fatalf("update not applied: %+v", rec)
	}

	if err := s.UpdateNodeContent(ctx, "no-such-id", "x"); !storeerr.IsNotFound(err) {
		t.Fatalf("update missing: want not_found, got %v", err)
	}

	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec, err = s.FindNodeByID(ctx, id)
	if err != nil {
		t.Fatalf("find deleted: %v", err)
	}
	if rec == nil || rec.DeletedAt == nil {
		t.Fatalf("soft-deleted record should stay findable with DeletedAt set: %+v", rec)
	}
	firstDeletedAt := *rec.DeletedAt

	// Idempotent: a second delete must not move the marker.
	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	rec, _ = s.FindNodeByID(ctx, id)
	if !rec.DeletedAt.Equal(firstDeletedAt) {
		t.Fatalf("second delete moved DeletedAt: %v -> %v", firstDeletedAt, *rec.DeletedAt)
	}
}

func testSystemIDConflict(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateNode(t, s, node.CreateNodeOptions{SystemID: str("tool.dup")})
	if _, err := s.CreateNode(ctx, node.CreateNodeOptions{SystemID: str("tool.dup")}); !storeerr.IsConflict(err) {
		t.Fatalf("duplicate node systemId: want conflict, got %v", err)
	}

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	if _, err := s.CreateField(ctx, node.FieldRecord{SystemID: "field.status", Name: "Other", Type: node.FieldText}); !storeerr.IsConflict(err) {
		t.Fatalf("duplicate field systemId: want conflict, got %v", err)
	}

	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})
	if _, err := s.CreateSupertag(ctx, node.SupertagRecord{SystemID: "tag.tool", Name: "Other"}); !storeerr.IsConflict(err) {
		t.Fatalf("duplicate supertag systemId: want conflict, got %v", err)
	}
}

func testCreateWithSupertag(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	if _, err := s.CreateNode(ctx, node.CreateNodeOptions{SupertagID: str("tag.missing")}); !storeerr.IsNotFound(err) {
		t.Fatalf("unknown supertag: want not_found, got %v", err)
	}

	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})
	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("ripgrep"), SupertagID: str("tag.tool")})

	tags, err := s.GetNodeSupertags(ctx, id)
	if err != nil {
		t.Fatalf("node supertags: %v", err)
	}
	if len(tags) != 1 || tags[0].SupertagID != "tag.tool" || tags[0].Content != "Tool" {
		t.Fatalf("unexpected memberships: %+v", tags)
	}
}

func testProperties(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	mustCreateField(t, s, "field.runs", "Runs", node.FieldNumber)
	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("backup job")})

	if err := s.SetProperty(ctx, id, "field.missing", node.Text("x")); !storeerr.IsNotFound(err) {
		t.Fatalf("set on unknown field: want not_found, got %v", err)
	}

	if err := s.SetProperty(ctx, id, "field.status", node.Text("draft")); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Replace discards the prior value entirely.
	if err := s.SetProperty(ctx, id, "field.status", node.Text("active")); err != nil {
		t.Fatalf("replace: %v", err)
	}

	assembled, err := s.AssembleNode(ctx, id)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	entries := assembled.Property("Status")
	if len(entries) != 1 {
		t.Fatalf("replace left %d values: %+v", len(entries), entries)
	}
	if got := entries[0].Value; !node.ValueEqual(got, node.Text("active")) {
		t.Fatalf("status = %v", got)
	}
	if entries[0].Order != 0 {
		t.Fatalf("replaced value order = %d", entries[0].Order)
	}

	// Append keeps insertion order across values.
	if err := s.AddPropertyValue(ctx, id, "field.runs", node.Number(1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AddPropertyValue(ctx, id, "field.runs", node.Number(2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	assembled, _ = s.AssembleNode(ctx, id)
	runs := assembled.Property("Runs")
	if len(runs) != 2 {
		t.Fatalf("append left %d values", len(runs))
	}
	if runs[0].Order >= runs[1].Order {
		t.Fatalf("append order not increasing: %d, %d", runs[0].Order, runs[1].Order)
	}
	if !node.ValueEqual(runs[0].Value, node.Number(1)) || !node.ValueEqual(runs[1].Value, node.Number(2)) {
		t.Fatalf("append values out of order: %+v", runs)
	}

	if err := s.ClearProperty(ctx, id, "field.runs"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	assembled, _ = s.AssembleNode(ctx, id)
	if got := assembled.Property("Runs"); len(got) != 0 {
		t.Fatalf("clear left values: %+v", got)
	}
	if got := assembled.Property("Status"); len(got) != 1 {
		t.Fatalf("clear touched another field: %+v", got)
	}
}

func testAssembly(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateField(t, s, "field.repo", "Repository", node.FieldNode)
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.script", Name: "Script"})

	repoID := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("infra repo")})
	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("cleanup.sh"), SupertagID: str("tag.script")})
	if err := s.LinkNodes(ctx, id, "field.repo", repoID, false); err != nil {
		t.Fatalf("link: %v", err)
	}

	assembled, err := s.AssembleNode(ctx, id)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if assembled.Content == nil || *assembled.Content != "cleanup.sh" {
		t.Fatalf("content: %+v", assembled.Content)
	}
	if !assembled.HasSupertag("tag.script") {
		t.Fatalf("missing supertag: %+v", assembled.Supertags)
	}
	refs := assembled.Property("Repository")
	if len(refs) != 1 || !node.ValueEqual(refs[0].Value, node.NodeRef(repoID)) {
		t.Fatalf("node reference: %+v", refs)
	}

	// Bare node assembles to an empty, non-nil property map.
	bareID := mustCreateNode(t, s, node.CreateNodeOptions{})
	bare, err := s.AssembleNode(ctx, bareID)
	if err != nil {
		t.Fatalf("assemble bare: %v", err)
	}
	if bare.Properties == nil || len(bare.Properties) != 0 {
		t.Fatalf("bare properties: %+v", bare.Properties)
	}

	// Soft-deleted nodes assemble to nil.
	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assembled, err = s.AssembleNode(ctx, id)
	if err != nil {
		t.Fatalf("assemble deleted: %v", err)
	}
	if assembled != nil {
		t.Fatalf("soft-deleted node assembled: %+v", assembled)
	}
}

func testMembership(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.archived", Name: "Archived"})
	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("jq")})

	if _, err := s.AddNodeSupertag(ctx, id, "tag.missing"); !storeerr.IsNotFound(err) {
		t.Fatalf("unknown supertag: want not_found, got %v", err)
	}

	added, err := s.AddNodeSupertag(ctx, id, "tag.tool")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = s.AddNodeSupertag(ctx, id, "tag.tool")
	if err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if added {
		t.Fatalf("duplicate add reported a change")
	}

	if _, err := s.AddNodeSupertag(ctx, id, "tag.archived"); err != nil {
		t.Fatalf("second tag: %v", err)
	}
	tags, err := s.GetNodeSupertags(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tags) != 2 || tags[0].SupertagID != "tag.tool" || tags[1].SupertagID != "tag.archived" {
		t.Fatalf("membership order: %+v", tags)
	}

	removed, err := s.RemoveNodeSupertag(ctx, id, "tag.tool")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, err = s.RemoveNodeSupertag(ctx, id, "tag.tool")
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Fatalf("second remove reported a change")
	}
}

func testNodesBySupertags(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.script", Name: "Script"})

	both := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("both"), SupertagID: str("tag.tool")})
	if _, err := s.AddNodeSupertag(ctx, both, "tag.script"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	toolOnly := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("tool only"), SupertagID: str("tag.tool")})
	deleted := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("gone"), SupertagID: str("tag.tool")})
	if err := s.DeleteNode(ctx, deleted); err != nil {
		t.Fatalf("delete: %v", err)
	}

	matched, err := s.GetNodesBySupertags(ctx, []string{"tag.tool", "tag.script"}, false)
	if err != nil {
		t.Fatalf("match any: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("match any returned %d nodes: %+v", len(matched), matched)
	}
	ids := map[string]bool{}
	for _, n := range matched {
		if n.ID == deleted {
			t.Fatalf("soft-deleted node in result")
		}
		ids[n.ID] = true
	}
	if !ids[both] || !ids[toolOnly] {
		t.Fatalf("match any missing nodes: %+v", ids)
	}

	all, err := s.GetNodesBySupertags(ctx, []string{"tag.tool", "tag.script"}, true)
	if err != nil {
		t.Fatalf("match all: %v", err)
	}
	if len(all) != 1 || all[0].ID != both {
		t.Fatalf("match all: %+v", all)
	}
}

func testInheritance(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	mustCreateField(t, s, "field.priority", "Priority", node.FieldNumber)

	mustCreateSupertag(t, s, node.SupertagRecord{
		SystemID: "tag.item",
		Name:     "Item",
		FieldSchema: []node.FieldDefault{
			{FieldSystemID: "field.status", Default: node.Text("new")},
			{FieldSystemID: "field.priority", Default: node.Number(3)},
		},
	})
	mustCreateSupertag(t, s, node.SupertagRecord{
		SystemID:        "tag.task",
		Name:            "Task",
		ExtendsSystemID: str("tag.item"),
		FieldSchema: []node.FieldDefault{
			{FieldSystemID: "field.status", Default: node.Text("todo")},
		},
	})

	ancestors, err := s.GetAncestorSupertags(ctx, "tag.task", 0)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].SystemID != "tag.item" {
		t.Fatalf("ancestors: %+v", ancestors)
	}

	defs, err := s.GetSupertagFieldDefinitions(ctx, "tag.task")
	if err != nil {
		t.Fatalf("field definitions: %v", err)
	}
	// Own schema entry shadows the ancestor's default.
	if got := defs["field.status"].Default; !node.ValueEqual(got, node.Text("todo")) {
		t.Fatalf("status default = %v", got)
	}
	if got := defs["field.priority"].Default; !node.ValueEqual(got, node.Number(3)) {
		t.Fatalf("priority default = %v", got)
	}

	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("ship release"), SupertagID: str("tag.task")})
	if err := s.SetProperty(ctx, id, "field.status", node.Text("doing")); err != nil {
		t.Fatalf("set: %v", err)
	}

	assembled, err := s.AssembleNodeWithInheritance(ctx, id)
	if err != nil {
		t.Fatalf("assemble with inheritance: %v", err)
	}
	// Own binding wins; the missing field fills from the schema default.
	if got := assembled.Property("Status"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.Text("doing")) {
		t.Fatalf("status: %+v", got)
	}
	if got := assembled.Property("Priority"); len(got) != 1 || !node.ValueEqual(got[0].Value, node.Number(3)) {
		t.Fatalf("priority default not filled: %+v", got)
	}

	// Descendant scan: nodes tagged Task count as Items.
	items, err := s.GetNodesBySupertagWithInheritance(ctx, "tag.item")
	if err != nil {
		t.Fatalf("nodes with inheritance: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("inherited scan: %+v", items)
	}
}

func testInheritanceCycle(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	// tag.a extends tag.b before tag.b exists; tag.b then closes the
	// loop. The ancestor walk must terminate anyway.
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.a", Name: "A", ExtendsSystemID: str("tag.b")})
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.b", Name: "B", ExtendsSystemID: str("tag.a")})

	ancestors, err := s.GetAncestorSupertags(ctx, "tag.a", 0)
	if err != nil {
		t.Fatalf("cyclic ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].SystemID != "tag.b" {
		t.Fatalf("cyclic walk: %+v", ancestors)
	}
}

func testQuery(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	mustCreateField(t, s, "field.runs", "Runs", node.FieldNumber)
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})

	a := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("ripgrep search"), SupertagID: str("tag.tool")})
	b := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("jq filter"), SupertagID: str("tag.tool")})
	c := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("loose note")})

	if err := s.SetProperty(ctx, a, "field.status", node.Text("active")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetProperty(ctx, b, "field.status", node.Text("archived")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetProperty(ctx, a, "field.runs", node.Number(10)); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Filters AND-combine.
	res, err := s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterSupertag, SupertagID: "tag.tool"},
		{Kind: store.FilterProperty, FieldID: "field.status", Op: store.OpEq, Value: node.Text("active")},
	}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.TotalCount != 1 || len(res.Nodes) != 1 || res.Nodes[0].ID != a {
		t.Fatalf("AND query: count=%d nodes=%+v", res.TotalCount, res.Nodes)
	}

	// No supertag filter: full active scan, content match.
	res, err = s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterContent, Text: "LOOSE"},
	}})
	if err != nil {
		t.Fatalf("content query: %v", err)
	}
	if res.TotalCount != 1 || res.Nodes[0].ID != c {
		t.Fatalf("content query: %+v", res.Nodes)
	}

	// hasField with Negate.
	res, err = s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterSupertag, SupertagID: "tag.tool"},
		{Kind: store.FilterHasField, FieldID: "field.runs", Negate: true},
	}})
	if err != nil {
		t.Fatalf("hasField query: %v", err)
	}
	if res.TotalCount != 1 || res.Nodes[0].ID != b {
		t.Fatalf("negated hasField: %+v", res.Nodes)
	}

	// Limit truncates the result but not the count.
	res, err = s.EvaluateQuery(ctx, store.Query{
		Filters: []store.Filter{{Kind: store.FilterSupertag, SupertagID: "tag.tool"}},
		Limit:   1,
	})
	if err != nil {
		t.Fatalf("limited query: %v", err)
	}
	if res.TotalCount != 2 || len(res.Nodes) != 1 {
		t.Fatalf("limit: count=%d len=%d", res.TotalCount, len(res.Nodes))
	}

	// Unknown field in a filter is an error, not an empty result.
	if _, err := s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterProperty, FieldID: "field.missing", Op: store.OpEq, Value: node.Text("x")},
	}}); !storeerr.IsNotFound(err) {
		t.Fatalf("unknown filter field: want not_found, got %v", err)
	}

	// Soft-deleted nodes never match.
	if err := s.DeleteNode(ctx, b); err != nil {
		t.Fatalf("delete: %v", err)
	}
	res, err = s.EvaluateQuery(ctx, store.Query{Filters: []store.Filter{
		{Kind: store.FilterSupertag, SupertagID: "tag.tool"},
	}})
	if err != nil {
		t.Fatalf("post-delete query: %v", err)
	}
	if res.TotalCount != 1 || res.Nodes[0].ID != a {
		t.Fatalf("deleted node still matching: %+v", res.Nodes)
	}
}

func testEvents(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	var got []events.Event
	unsubscribe := s.Bus().Subscribe(func(e events.Event) { got = append(got, e) })
	defer unsubscribe()

	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})
	mustCreateField(t, s, "field.status", "Status", node.FieldText)

	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("fzf"), SupertagID: str("tag.tool")})
	if len(got) != 2 || got[0].Kind != events.NodeCreated || got[1].Kind != events.SupertagAdded {
		t.Fatalf("create emission: %+v", got)
	}
	if got[0].NodeID != id || got[1].SupertagID != "tag.tool" {
		t.Fatalf("create event payloads: %+v", got)
	}

	got = nil
	if err := s.UpdateNodeContent(ctx, id, "fzf fuzzy finder"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(got) != 1 || got[0].Kind != events.NodeUpdated {
		t.Fatalf("update emission: %+v", got)
	}
	if got[0].Before == nil || *got[0].Before != "fzf" || got[0].After == nil || *got[0].After != "fzf fuzzy finder" {
		t.Fatalf("update before/after: %+v", got[0])
	}

	// Duplicate tag add is not a state change and stays silent.
	got = nil
	if _, err := s.AddNodeSupertag(ctx, id, "tag.tool"); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("duplicate add emitted: %+v", got)
	}

	got = nil
	if err := s.SetProperty(ctx, id, "field.status", node.Text("active")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(got) != 1 || got[0].Kind != events.PropertySet || got[0].FieldSystemID != "field.status" {
		t.Fatalf("property emission: %+v", got)
	}

	got = nil
	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(got) != 1 || got[0].Kind != events.NodeDeleted {
		t.Fatalf("delete emission: %+v", got)
	}

	// Second delete is idempotent and silent.
	got = nil
	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("idempotent delete emitted: %+v", got)
	}
}

func testPurge(t *testing.T, factory Factory) {
	s := newStore(t, factory)
	ctx := context.Background()

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	mustCreateSupertag(t, s, node.SupertagRecord{SystemID: "tag.tool", Name: "Tool"})

	id := mustCreateNode(t, s, node.CreateNodeOptions{Content: str("ephemeral"), SupertagID: str("tag.tool")})
	if err := s.SetProperty(ctx, id, "field.status", node.Text("active")); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Purge works on soft-deleted nodes too.
	if err := s.DeleteNode(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var got []events.Event
	unsubscribe := s.Bus().Subscribe(func(e events.Event) { got = append(got, e) })
	defer unsubscribe()

	if err := s.PurgeNode(ctx, id); err != nil {
		t.Fatalf("purge: %v", err)
	}
	rec, err := s.FindNodeByID(ctx, id)
	if err != nil {
		t.Fatalf("find purged: %v", err)
	}
	if rec != nil {
		t.Fatalf("purged node still findable: %+v", rec)
	}
	if len(got) != 1 || got[0].Kind != events.NodeDeleted || got[0].NodeID != id {
		t.Fatalf("purge emission: %+v", got)
	}

	// Purging an id that never existed stays silent.
	got = nil
	if err := s.PurgeNode(ctx, "no-such-id"); err != nil {
		t.Fatalf("purge missing: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("purge of missing node emitted: %+v", got)
	}
}
