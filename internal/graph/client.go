package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record is one row returned by the store, keyed by the aliases in the
// RETURN clause. Values carry whatever types the driver hands back.
type Record map[string]any

// Client executes parameterized Cypher against the graph store. It owns no
// business logic; all statements are built by the store layer with named
// parameters — never by interpolating input into the statement text.
type Client interface {
	// Query runs a read statement.
	Query(ctx context.Context, stmt string, params map[string]any) ([]Record, error)
	// WriteQuery runs a write statement in a write transaction.
	WriteQuery(ctx context.Context, stmt string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

// DB is the Neo4j-backed Client.
type DB struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open connects to the graph store and verifies connectivity.
func Open(ctx context.Context, uri, username, password, database string) (*DB, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return &DB{driver: driver, database: database}, nil
}

func (db *DB) Query(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	return db.run(ctx, stmt, params, neo4j.ExecuteQueryWithReadersRouting())
}

func (db *DB) WriteQuery(ctx context.Context, stmt string, params map[string]any) ([]Record, error) {
	return db.run(ctx, stmt, params, neo4j.ExecuteQueryWithWritersRouting())
}

func (db *DB) run(ctx context.Context, stmt string, params map[string]any, routing neo4j.ExecuteQueryConfigurationOption) ([]Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, db.driver, stmt, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(db.database),
		routing)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	records := make([]Record, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, Record(rec.AsMap()))
	}
	return records, nil
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.driver.VerifyConnectivity(ctx)
}

func (db *DB) Close(ctx context.Context) error {
	return db.driver.Close(ctx)
}
