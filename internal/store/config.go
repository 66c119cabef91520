package store

import (
	"github.com/yungbote/toolbench-backend/internal/platform/envutil"
	"github.com/yungbote/toolbench-backend/internal/platform/neo4jdb"
	"github.com/yungbote/toolbench-backend/internal/store/relational"
)

const (
	BackendRelational = "relational"
	BackendGraph      = "graph"
)

// Config selects and parameterizes the storage engine. STORE_BACKEND is
// the single mode switch; everything else configures the chosen engine.
type Config struct {
	Backend    string
	Relational relational.Config
	Graph      neo4jdb.Config
}

func ConfigFromEnv() Config {
	return Config{
		Backend:    envutil.Str("STORE_BACKEND", BackendRelational),
		Relational: relational.ConfigFromEnv(),
		Graph:      neo4jdb.ConfigFromEnv(),
	}
}
