package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/usersvc/usersvc/internal/users"
)

// OpenPostgres creates a bun.DB backed by pgdriver. No connection is made until first use.
func OpenPostgres(dsn string, maxConnections int) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if maxConnections > 0 {
		sqldb.SetMaxOpenConns(maxConnections)
		sqldb.SetMaxIdleConns(maxConnections / 2)
	}
	sqldb.SetConnMaxLifetime(time.Hour)

	return bun.NewDB(sqldb, pgdialect.New())
}

// OpenSQLite opens a SQLite database through the modernc driver
func OpenSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	// every connection to :memory: gets its own empty database
	if strings.Contains(path, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateTables creates the users table when missing. Existing tables are left as they are.
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*users.UserSchema)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model %T: %w", model, err)
		}
	}

	return nil
}

// OpenMongo connects a client. mongo.Connect does not wait for the server, so an
// unreachable cluster surfaces on the first operation or health check.
func OpenMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout)
		opts.SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}
	return client, nil
}

// OpenNeo4j creates a driver with basic auth. Connectivity is not verified here.
func OpenNeo4j(uri, username, password string) (neo4j.DriverWithContext, error) {
	if uri == "" {
		return nil, fmt.Errorf("Neo4j URI is required")
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	return driver, nil
}
