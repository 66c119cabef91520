package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/store"
)

// RunEquivalence drives the same operation script through two engines
// and compares the assembled read models. Engine-issued node ids and
// timestamps differ between backends, so nodes are keyed by systemId
// and compared structurally.
func RunEquivalence(t *testing.T, newA, newB Factory) {
	a := newStore(t, newA)
	b := newStore(t, newB)

	idsA := applyScript(t, a)
	idsB := applyScript(t, b)

	for _, systemID := range []string{"tool.rg", "tool.jq", "script.backup"} {
		gotA := assembledSnapshot(t, a, idsA[systemID])
		gotB := assembledSnapshot(t, b, idsB[systemID])
		if gotA != gotB {
			t.Fatalf("engines diverge on %s:\n  a: %s\n  b: %s", systemID, gotA, gotB)
		}
	}

	qa := querySnapshot(t, a, idsA)
	qb := querySnapshot(t, b, idsB)
	if qa != qb {
		t.Fatalf("engines diverge on query results:\n  a: %s\n  b: %s", qa, qb)
	}
}

// applyScript runs a fixed mutation sequence and returns node ids keyed
// by systemId.
func applyScript(t *testing.T, s *store.Store) map[string]string {
	t.Helper()
	ctx := context.Background()

	mustCreateField(t, s, "field.status", "Status", node.FieldText)
	mustCreateField(t, s, "field.language", "Language", node.FieldText)
	mustCreateField(t, s, "field.repo", "Repository", node.FieldNode)
	mustCreateSupertag(t, s, node.SupertagRecord{
		SystemID: "tag.tool",
		Name:     "Tool",
		FieldSchema: []node.FieldDefault{
			{FieldSystemID: "field.status", Default: node.Text("installed")},
		},
	})
	mustCreateSupertag(t, s, node.SupertagRecord{
		SystemID:        "tag.script",
		Name:            "Script",
		ExtendsSystemID: str("tag.tool"),
	})

	ids := map[string]string{}
	ids["tool.rg"] = mustCreateNode(t, s, node.CreateNodeOptions{
		Content: str("ripgrep"), SystemID: str("tool.rg"), SupertagID: str("tag.tool"),
	})
	ids["tool.jq"] = mustCreateNode(t, s, node.CreateNodeOptions{
		Content: str("jq"), SystemID: str("tool.jq"), SupertagID: str("tag.tool"),
	})
	ids["script.backup"] = mustCreateNode(t, s, node.CreateNodeOptions{
		Content: str("backup.sh"), SystemID: str("script.backup"), SupertagID: str("tag.script"),
	})

	if err := s.SetProperty(ctx, ids["tool.rg"], "field.status", node.Text("active")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.AddPropertyValue(ctx, ids["tool.rg"], "field.language", node.Text("rust")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AddPropertyValue(ctx, ids["tool.rg"], "field.language", node.Text("c")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ClearProperty(ctx, ids["tool.jq"], "field.status"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.LinkNodes(ctx, ids["script.backup"], "field.repo", ids["tool.rg"], false); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.UpdateNodeContent(ctx, ids["tool.jq"], "jq json filter"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.AddNodeSupertag(ctx, ids["tool.jq"], "tag.script"); err != nil {
		t.Fatalf("tag: %v", err)
	}
	return ids
}

// assembledSnapshot renders an assembled node to a canonical string
// with ids normalized, so backends can be compared byte for byte.
func assembledSnapshot(t *testing.T, s *store.Store, id string) string {
	t.Helper()
	assembled, err := s.AssembleNodeWithInheritance(context.Background(), id)
	if err != nil {
		t.Fatalf("assemble %s: %v", id, err)
	}
	if assembled == nil {
		return "<nil>"
	}

	names := make([]string, 0, len(assembled.Properties))
	for name := range assembled.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	out := fmt.Sprintf("content=%q", derefOr(assembled.Content, ""))
	for _, name := range names {
		entries := assembled.Properties[name]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })
		out += fmt.Sprintf(" %s=[", name)
		for i, e := range entries {
			if i > 0 {
				out += ","
			}
			out += normalizeValue(t, s, e.Value)
		}
		out += "]"
	}
	out += " tags=["
	for i, tag := range assembled.Supertags {
		if i > 0 {
			out += ","
		}
		out += tag.SystemID
	}
	out += "]"
	return out
}

// normalizeValue renders node references by the target's systemId so
// backend-specific ids cancel out.
func normalizeValue(t *testing.T, s *store.Store, v node.Value) string {
	t.Helper()
	ctx := context.Background()
	switch ref := v.(type) {
	case node.NodeRef:
		rec, err := s.FindNodeByID(ctx, string(ref))
		if err != nil {
			t.Fatalf("resolve ref: %v", err)
		}
		if rec != nil && rec.SystemID != nil {
			return "ref:" + *rec.SystemID
		}
		return "ref:?"
	case node.NodeRefList:
		out := "refs:"
		for i, id := range ref {
			if i > 0 {
				out += ","
			}
			out += normalizeValue(t, s, node.NodeRef(id))
		}
		return out
	default:
		return node.ValueString(v)
	}
}

// querySnapshot runs a fixed query and renders matched nodes by
// systemId.
func querySnapshot(t *testing.T, s *store.Store, ids map[string]string) string {
	t.Helper()
	res, err := s.EvaluateQuery(context.Background(), store.Query{Filters: []store.Filter{
		{Kind: store.FilterSupertag, SupertagID: "tag.tool", IncludeInherited: true},
		{Kind: store.FilterHasField, FieldID: "field.status"},
	}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	byID := map[string]string{}
	for sid, id := range ids {
		byID[id] = sid
	}
	matched := make([]string, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		matched = append(matched, byID[n.ID])
	}
	sort.Strings(matched)
	return fmt.Sprintf("count=%d nodes=%v", res.TotalCount, matched)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
