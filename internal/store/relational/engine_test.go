package relational_test

import (
	"context"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
	"github.com/yungbote/toolbench-backend/internal/store/storetest"
)

func TestSQLiteEngine(t *testing.T) {
	storetest.Run(t, func(t *testing.T) node.Engine {
		return relational.New(relational.Config{
			Driver:     relational.DriverSQLite,
			SQLitePath: ":memory:",
		}, nil)
	})
}

// TestScalarValuesSurviveSQLite guards the value column's text
// declaration: SQLite coerces scalar JSON payloads stored in a column
// with numeric affinity, after which the read-back scan rejects them.
func TestScalarValuesSurviveSQLite(t *testing.T) {
	ctx := context.Background()
	eng := relational.New(relational.Config{
		Driver:     relational.DriverSQLite,
		SQLitePath: ":memory:",
	}, nil)
	if err := eng.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer eng.Close(ctx)

	if _, err := eng.CreateField(ctx, node.FieldRecord{SystemID: "field.runs", Name: "Runs", Type: node.FieldNumber}); err != nil {
		t.Fatalf("create field: %v", err)
	}
	if _, err := eng.CreateField(ctx, node.FieldRecord{SystemID: "field.meta", Name: "Meta", Type: node.FieldJSON}); err != nil {
		t.Fatalf("create field: %v", err)
	}
	id, err := eng.CreateNode(ctx, node.CreateNodeOptions{})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}

	if err := eng.ReplaceProperty(ctx, id, "field.runs", node.Number(2)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := eng.AppendProperty(ctx, id, "field.runs", node.Number(7.5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	// A bare JSON scalar is as affinity-prone as a number value.
	if err := eng.ReplaceProperty(ctx, id, "field.meta", node.JSON(`3`)); err != nil {
		t.Fatalf("replace json scalar: %v", err)
	}

	props, err := eng.ListProperties(ctx, id)
	if err != nil {
		t.Fatalf("list properties: %v", err)
	}
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %d: %+v", len(props), props)
	}
	byField := map[string][]node.Value{}
	for _, p := range props {
		byField[p.FieldSystemID] = append(byField[p.FieldSystemID], p.Value)
	}
	runs := byField["field.runs"]
	if len(runs) != 2 || !node.ValueEqual(runs[0], node.Number(2)) || !node.ValueEqual(runs[1], node.Number(7.5)) {
		t.Fatalf("number values mangled: %+v", runs)
	}
	meta := byField["field.meta"]
	if len(meta) != 1 || !node.ValueEqual(meta[0], node.JSON(`3`)) {
		t.Fatalf("json scalar mangled: %+v", meta)
	}
}

// TestPostgresEngine runs the same suite against a live Postgres when
// TEST_POSTGRES_DSN is set, dropping the schema between scenarios.
func TestPostgresEngine(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres suite")
	}

	storetest.Run(t, func(t *testing.T) node.Engine {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		err = db.Migrator().DropTable(
			&relational.NodeRow{},
			&relational.FieldRow{},
			&relational.SupertagRow{},
			&relational.PropertyRow{},
			&relational.MembershipRow{},
		)
		if err != nil {
			t.Fatalf("reset schema: %v", err)
		}
		return relational.NewWithDB(db, nil)
	})
}
