package graph_test

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/neo4jdb"
	"github.com/yungbote/toolbench-backend/internal/store/graph"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
	"github.com/yungbote/toolbench-backend/internal/store/storetest"
)

// graphFactory connects to the Neo4j named by TEST_NEO4J_URI and wipes
// it before handing out an engine. Skips when the variable is unset.
func graphFactory(t *testing.T) node.Engine {
	t.Helper()
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("TEST_NEO4J_URI not set; skipping neo4j suite")
	}

	client, err := neo4jdb.New(neo4jdb.Config{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
	}, nil)
	if err != nil {
		t.Fatalf("connect neo4j: %v", err)
	}

	ctx := context.Background()
	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: client.Database})
	defer session.Close(ctx)
	if _, err := session.Run(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
		t.Fatalf("wipe database: %v", err)
	}

	return graph.New(client, nil)
}

func TestGraphEngine(t *testing.T) {
	storetest.Run(t, graphFactory)
}

// TestEngineEquivalence replays one operation script against both
// backends and requires identical assembled output.
func TestEngineEquivalence(t *testing.T) {
	if os.Getenv("TEST_NEO4J_URI") == "" {
		t.Skip("TEST_NEO4J_URI not set; skipping equivalence suite")
	}
	storetest.RunEquivalence(t, graphFactory, func(t *testing.T) node.Engine {
		return relational.New(relational.Config{
			Driver:     relational.DriverSQLite,
			SQLitePath: ":memory:",
		}, nil)
	})
}
