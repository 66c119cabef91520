// Package store exposes the unified node/property-graph contract behind
// a facade that selects one of the two storage engines at startup,
// resolves supertag inheritance, evaluates composable queries, and
// publishes mutation events after every committed write.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/events"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/platform/neo4jdb"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
	"github.com/yungbote/toolbench-backend/internal/store/graph"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
)

// Store is the facade over one storage engine. Construct it once at the
// composition root, call Init (or InitWithEngine) before use; every
// contract method fails fast with a not_initialized error otherwise.
type Store struct {
	mu  sync.Mutex
	eng node.Engine
	bus *events.Bus
	log *logger.Logger
}

func New(bus *events.Bus, baseLog *logger.Logger) *Store {
	if bus == nil {
		bus = events.New()
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Store{bus: bus, log: baseLog.With("component", "Store")}
}

// Bus exposes the mutation event bus for subscribers.
func (s *Store) Bus() *events.Bus { return s.bus }

// Init selects and initializes the engine named by cfg.Backend.
// Idempotent: a second call on an initialized store is a no-op.
func (s *Store) Init(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng != nil {
		return nil
	}

	var eng node.Engine
	switch cfg.Backend {
	case BackendRelational:
		eng = relational.New(cfg.Relational, s.log)
	case BackendGraph:
		client, err := neo4jdb.New(cfg.Graph, s.log)
		if err != nil {
			return fmt.Errorf("store: connect graph engine: %w", err)
		}
		eng = graph.New(client, s.log)
	default:
		return fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}

	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("store: init %s engine: %w", cfg.Backend, err)
	}
	s.eng = eng
	s.log.Info("store initialized", "backend", cfg.Backend)
	return nil
}

// InitWithEngine injects an externally constructed engine. Idempotent.
func (s *Store) InitWithEngine(ctx context.Context, eng node.Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng != nil {
		return nil
	}
	if eng == nil {
		return fmt.Errorf("store: nil engine")
	}
	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("store: init injected engine: %w", err)
	}
	s.eng = eng
	return nil
}

func (s *Store) engine() (node.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return nil, storeerr.NotInitialized()
	}
	return s.eng, nil
}

// Close shuts the engine down. The store cannot be reused afterwards.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return nil
	}
	err := s.eng.Close(ctx)
	s.eng = nil
	return err
}

// Save invokes the engine's durability hook.
func (s *Store) Save(ctx context.Context) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	return eng.Save(ctx)
}

// --- node lifecycle ---

// CreateNode creates a node and, when opts.SupertagID is set, its first
// membership. Events fire after the commit: node:created first, then
// supertag:added, both carrying the new node id.
func (s *Store) CreateNode(ctx context.Context, opts node.CreateNodeOptions) (string, error) {
	eng, err := s.engine()
	if err != nil {
		return "", err
	}
	id, err := eng.CreateNode(ctx, opts)
	if err != nil {
		return "", err
	}
	s.bus.Publish(events.Event{Kind: events.NodeCreated, NodeID: id, After: opts.Content})
	if opts.SupertagID != nil && *opts.SupertagID != "" {
		s.bus.Publish(events.Event{Kind: events.SupertagAdded, NodeID: id, SupertagID: *opts.SupertagID})
	}
	return id, nil
}

// FindNodeByID returns the raw record, soft-deleted included, nil when
// absent.
func (s *Store) FindNodeByID(ctx context.Context, id string) (*node.NodeRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.FindNodeByID(ctx, id)
}

func (s *Store) FindNodeBySystemID(ctx context.Context, systemID string) (*node.NodeRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.FindNodeBySystemID(ctx, systemID)
}

func (s *Store) UpdateNodeContent(ctx context.Context, id, content string) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	before, err := eng.FindNodeByID(ctx, id)
	if err != nil {
		return err
	}
	if before == nil {
		return storeerr.NotFound("node", id)
	}
	if err := eng.UpdateNodeContent(ctx, id, content); err != nil {
		return err
	}
	after := content
	s.bus.Publish(events.Event{Kind: events.NodeUpdated, NodeID: id, Before: before.Content, After: &after})
	return nil
}

// DeleteNode soft-deletes. Idempotent; the event fires only on the
// transition from active to deleted.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	before, err := eng.FindNodeByID(ctx, id)
	if err != nil {
		return err
	}
	if err := eng.DeleteNode(ctx, id); err != nil {
		return err
	}
	if before != nil && before.Active() {
		s.bus.Publish(events.Event{Kind: events.NodeDeleted, NodeID: id})
	}
	return nil
}

// PurgeNode hard-removes a node with its bindings and memberships.
// Admin cleanup path; bypasses the soft-delete read filters and emits
// node:deleted.
func (s *Store) PurgeNode(ctx context.Context, id string) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	before, err := eng.FindNodeByID(ctx, id)
	if err != nil {
		return err
	}
	if err := eng.PurgeNode(ctx, id); err != nil {
		return err
	}
	if before != nil {
		s.bus.Publish(events.Event{Kind: events.NodeDeleted, NodeID: id})
	}
	return nil
}

// --- assembly ---

// AssembleNode returns the materialized read model, nil for missing and
// soft-deleted nodes.
func (s *Store) AssembleNode(ctx context.Context, id string) (*node.AssembledNode, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return assembleNode(ctx, eng, id)
}

// AssembleNodeWithInheritance additionally fills ancestor field
// defaults for fields the node has no own binding for.
func (s *Store) AssembleNodeWithInheritance(ctx context.Context, id string) (*node.AssembledNode, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return assembleWithInheritance(ctx, eng, id)
}

// --- schema definitions ---

func (s *Store) CreateField(ctx context.Context, rec node.FieldRecord) (string, error) {
	eng, err := s.engine()
	if err != nil {
		return "", err
	}
	return eng.CreateField(ctx, rec)
}

func (s *Store) FindFieldBySystemID(ctx context.Context, systemID string) (*node.FieldRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.FindFieldBySystemID(ctx, systemID)
}

func (s *Store) CreateSupertag(ctx context.Context, rec node.SupertagRecord) (string, error) {
	eng, err := s.engine()
	if err != nil {
		return "", err
	}
	return eng.CreateSupertag(ctx, rec)
}

func (s *Store) FindSupertagBySystemID(ctx context.Context, systemID string) (*node.SupertagRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.FindSupertagBySystemID(ctx, systemID)
}

// --- properties ---

// SetProperty is a full replace: all prior values of the field on the
// node are discarded for the single new value at order 0.
func (s *Store) SetProperty(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	if err := eng.ReplaceProperty(ctx, nodeID, fieldSystemID, value); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.PropertySet, NodeID: nodeID, FieldSystemID: fieldSystemID})
	return nil
}

// AddPropertyValue appends, preserving relative insertion order.
func (s *Store) AddPropertyValue(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	if err := eng.AppendProperty(ctx, nodeID, fieldSystemID, value); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.PropertyAdded, NodeID: nodeID, FieldSystemID: fieldSystemID})
	return nil
}

// ClearProperty removes every binding of the field on the node.
func (s *Store) ClearProperty(ctx context.Context, nodeID, fieldSystemID string) error {
	eng, err := s.engine()
	if err != nil {
		return err
	}
	if err := eng.ClearProperty(ctx, nodeID, fieldSystemID); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.PropertyRemoved, NodeID: nodeID, FieldSystemID: fieldSystemID})
	return nil
}

// LinkNodes binds a node-reference value. These generic semantic
// relations (part_of, references, dependency_of, tagged_with) emit
// property events only, never supertag events.
func (s *Store) LinkNodes(ctx context.Context, fromID, fieldSystemID, toID string, appendValue bool) error {
	if appendValue {
		return s.AddPropertyValue(ctx, fromID, fieldSystemID, node.NodeRef(toID))
	}
	return s.SetProperty(ctx, fromID, fieldSystemID, node.NodeRef(toID))
}

// --- supertag membership ---

// AddNodeSupertag reports false, without error, when the node already
// holds the tag; the event fires only on an actual change.
func (s *Store) AddNodeSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	eng, err := s.engine()
	if err != nil {
		return false, err
	}
	added, err := eng.AddSupertag(ctx, nodeID, supertagSystemID)
	if err != nil {
		return false, err
	}
	if added {
		s.bus.Publish(events.Event{Kind: events.SupertagAdded, NodeID: nodeID, SupertagID: supertagSystemID})
	}
	return added, nil
}

func (s *Store) RemoveNodeSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	eng, err := s.engine()
	if err != nil {
		return false, err
	}
	removed, err := eng.RemoveSupertag(ctx, nodeID, supertagSystemID)
	if err != nil {
		return false, err
	}
	if removed {
		s.bus.Publish(events.Event{Kind: events.SupertagRemoved, NodeID: nodeID, SupertagID: supertagSystemID})
	}
	return removed, nil
}

func (s *Store) GetNodeSupertags(ctx context.Context, nodeID string) ([]node.MembershipRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.NodeSupertags(ctx, nodeID)
}

func (s *Store) GetNodesBySupertags(ctx context.Context, supertagSystemIDs []string, matchAll bool) ([]node.NodeRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return eng.NodesBySupertags(ctx, supertagSystemIDs, matchAll)
}

// --- inheritance ---

// GetAncestorSupertags walks the extends chain, nearest ancestor first.
// maxDepth <= 0 applies the defensive default limit.
func (s *Store) GetAncestorSupertags(ctx context.Context, supertagSystemID string, maxDepth int) ([]node.SupertagRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return ancestorSupertags(ctx, eng, supertagSystemID, maxDepth)
}

func (s *Store) GetSupertagFieldDefinitions(ctx context.Context, supertagSystemID string) (map[string]node.FieldDefinition, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return supertagFieldDefinitions(ctx, eng, supertagSystemID)
}

// GetNodesBySupertagWithInheritance returns nodes tagged with the given
// supertag or any supertag whose extends chain reaches it.
func (s *Store) GetNodesBySupertagWithInheritance(ctx context.Context, supertagSystemID string) ([]node.NodeRecord, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	ids, err := descendantSupertags(ctx, eng, supertagSystemID)
	if err != nil {
		return nil, err
	}
	return eng.NodesBySupertags(ctx, ids, false)
}

// --- queries ---

func (s *Store) EvaluateQuery(ctx context.Context, q Query) (*Result, error) {
	eng, err := s.engine()
	if err != nil {
		return nil, err
	}
	return evaluateQuery(ctx, eng, q)
}
