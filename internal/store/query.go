package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
)

type FilterKind string

const (
	FilterSupertag FilterKind = "supertag"
	FilterProperty FilterKind = "property"
	FilterContent  FilterKind = "content"
	FilterHasField FilterKind = "hasField"
)

type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
)

// Filter is one predicate of a query definition. Kind decides which of
// the remaining fields apply: SupertagID/IncludeInherited for supertag
// membership, FieldID/Op/Value for property matches, Text/CaseSensitive
// for content substring search, FieldID/Negate for binding existence.
type Filter struct {
	Kind FilterKind

	SupertagID       string
	IncludeInherited bool

	FieldID string
	Op      Op
	Value   node.Value

	Text          string
	CaseSensitive bool

	Negate bool
}

// Query is a composable filter definition; filters AND-combine. A
// non-positive Limit returns every match.
type Query struct {
	Filters []Filter
	Limit   int
}

// Result carries at most Limit assembled nodes plus the pre-limit match
// count. Soft-deleted nodes never appear regardless of filters.
type Result struct {
	Nodes       []*node.AssembledNode
	TotalCount  int
	EvaluatedAt time.Time
}

// evaluateQuery runs the definition against an engine. Candidates come
// from the first supertag filter when one exists, otherwise from a full
// active-node scan; the remaining filters run in memory over assembled
// nodes. Matches are ordered by node id so that a fixed snapshot always
// yields the same result set and count.
func evaluateQuery(ctx context.Context, e node.Engine, q Query) (*Result, error) {
	candidates, err := queryCandidates(ctx, e, q)
	if err != nil {
		return nil, err
	}

	// Resolve per-filter context once, not per candidate.
	inherited := make(map[string]map[string]bool)
	for _, f := range q.Filters {
		if f.Kind == FilterSupertag && f.IncludeInherited {
			ids, err := descendantSupertags(ctx, e, f.SupertagID)
			if err != nil {
				return nil, err
			}
			set := make(map[string]bool, len(ids))
			for _, id := range ids {
				set[id] = true
			}
			inherited[f.SupertagID] = set
		}
		if f.Kind == FilterProperty || f.Kind == FilterHasField {
			field, err := e.FindFieldBySystemID(ctx, f.FieldID)
			if err != nil {
				return nil, err
			}
			if field == nil {
				return nil, storeerr.FieldNotFound(f.FieldID)
			}
		}
	}

	matches := make([]*node.AssembledNode, 0, len(candidates))
	for _, rec := range candidates {
		if !rec.Active() {
			continue
		}
		assembled, err := assembleNode(ctx, e, rec.ID)
		if err != nil {
			return nil, err
		}
		if assembled == nil {
			continue
		}
		ok := true
		for _, f := range q.Filters {
			if !matchFilter(assembled, rec, f, inherited) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, assembled)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := len(matches)
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	return &Result{
		Nodes:       matches,
		TotalCount:  total,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

func queryCandidates(ctx context.Context, e node.Engine, q Query) ([]node.NodeRecord, error) {
	for _, f := range q.Filters {
		if f.Kind != FilterSupertag {
			continue
		}
		if f.IncludeInherited {
			ids, err := descendantSupertags(ctx, e, f.SupertagID)
			if err != nil {
				return nil, err
			}
			return e.NodesBySupertags(ctx, ids, false)
		}
		return e.NodesBySupertags(ctx, []string{f.SupertagID}, false)
	}
	return e.ActiveNodes(ctx)
}

func matchFilter(assembled *node.AssembledNode, rec node.NodeRecord, f Filter, inherited map[string]map[string]bool) bool {
	switch f.Kind {
	case FilterSupertag:
		if set, ok := inherited[f.SupertagID]; ok && f.IncludeInherited {
			for _, ref := range assembled.Supertags {
				if set[ref.SystemID] {
					return true
				}
			}
			return false
		}
		return assembled.HasSupertag(f.SupertagID)

	case FilterProperty:
		for _, entries := range assembled.Properties {
			for _, entry := range entries {
				if entry.FieldSystemID != f.FieldID {
					continue
				}
				if matchOp(entry.Value, f.Op, f.Value) {
					return true
				}
			}
		}
		return false

	case FilterContent:
		if f.CaseSensitive {
			return strings.Contains(rec.ContentOrEmpty(), f.Text)
		}
		return strings.Contains(rec.ContentPlain, strings.ToLower(f.Text))

	case FilterHasField:
		has := false
		for _, entries := range assembled.Properties {
			for _, entry := range entries {
				if entry.FieldSystemID == f.FieldID {
					has = true
				}
			}
		}
		if f.Negate {
			return !has
		}
		return has

	default:
		return false
	}
}

func matchOp(have node.Value, op Op, want node.Value) bool {
	switch op {
	case OpEq, "":
		return node.ValueEqual(have, want)
	case OpNe:
		return !node.ValueEqual(have, want)
	case OpContains:
		hs, hok := have.(node.Text)
		ws, wok := want.(node.Text)
		if hok && wok {
			return strings.Contains(string(hs), string(ws))
		}
		if refs, ok := have.(node.NodeRefList); ok {
			if ref, ok := want.(node.NodeRef); ok {
				for _, r := range refs {
					if r == string(ref) {
						return true
					}
				}
			}
		}
		return false
	case OpGt:
		return compareValues(have, want) > 0
	case OpLt:
		return compareValues(have, want) < 0
	default:
		return false
	}
}

// compareValues orders numbers numerically and text lexicographically;
// incomparable kinds report 0 so gt/lt filters simply fail to match.
func compareValues(a, b node.Value) int {
	if an, ok := a.(node.Number); ok {
		if bn, ok := b.(node.Number); ok {
			switch {
			case an > bn:
				return 1
			case an < bn:
				return -1
			default:
				return 0
			}
		}
	}
	if at, ok := a.(node.Text); ok {
		if bt, ok := b.(node.Text); ok {
			return strings.Compare(string(at), string(bt))
		}
	}
	return 0
}
