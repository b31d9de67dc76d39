package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/resource-graph-catalog-ingester/entity"
	"github.com/azure/resource-graph-catalog-ingester/value"

	// SQLite driver
	_ "modernc.org/sqlite"
)

const createEntitiesTable = `
CREATE TABLE IF NOT EXISTS entities (
	location_key TEXT NOT NULL,
	entity_key   TEXT NOT NULL,
	entity_ref   TEXT NOT NULL,
	body         TEXT NOT NULL,
	PRIMARY KEY (location_key, entity_key)
)`

// SqliteRegistryClient stores published entities in a SQLite database. A full
// mutation deletes and re-inserts the rows of its location key inside one
// transaction. Rows are keyed by resource id, so entities sharing a name are
// all kept; a key repeated within one mutation fails the transaction.
type SqliteRegistryClient struct {
	Path   string
	Logger *logrus.Logger
	db     *sql.DB
}

func NewSqliteRegistryClient(ctx context.Context, path string, logger *logrus.Logger) (*SqliteRegistryClient, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createEntitiesTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create entities table: %w", err)
	}

	return &SqliteRegistryClient{
		Path:   path,
		Logger: logger,
		db:     db,
	}, nil
}

func (sqliteClient *SqliteRegistryClient) ApplyMutation(ctx context.Context, mutation Mutation) (err error) {
	if err := mutation.Validate(); err != nil {
		return err
	}

	tx, err := sqliteClient.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	previous, err := keysInTx(ctx, tx, mutation.LocationKey)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM entities WHERE location_key = ?`, mutation.LocationKey); err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}

	for _, deferred := range mutation.Entities {
		body, marshalErr := deferred.Entity.MarshalJSON()
		if marshalErr != nil {
			err = fmt.Errorf("failed to encode entity: %w", marshalErr)
			return err
		}
		key := Key(deferred.Entity)
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO entities (location_key, entity_key, entity_ref, body) VALUES (?, ?, ?, ?)`,
			deferred.LocationKey, key, entity.Ref(deferred.Entity), string(body),
		); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	removed := removedRefs(previous, mutation.Keys())
	sqliteClient.Logger.WithFields(logrus.Fields{
		"locationKey": mutation.LocationKey,
		"entities":    len(mutation.Entities),
		"removed":     len(removed),
	}).Info("Full mutation committed")
	return nil
}

func keysInTx(ctx context.Context, tx *sql.Tx, locationKey string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT entity_key FROM entities WHERE location_key = ?`, locationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan entity key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Entities returns the stored entities of locationKey ordered by reference
// and then by key.
func (sqliteClient *SqliteRegistryClient) Entities(ctx context.Context, locationKey string) ([]value.Value, error) {
	rows, err := sqliteClient.db.QueryContext(ctx,
		`SELECT body FROM entities WHERE location_key = ? ORDER BY entity_ref, entity_key`, locationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := []value.Value{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		var decoded value.Value
		if err := decoded.UnmarshalJSON([]byte(body)); err != nil {
			return nil, fmt.Errorf("failed to decode entity: %w", err)
		}
		entities = append(entities, decoded)
	}
	return entities, rows.Err()
}

func (sqliteClient *SqliteRegistryClient) Close() error {
	return sqliteClient.db.Close()
}
