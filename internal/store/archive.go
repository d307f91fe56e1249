package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/schema"
	"github.com/go-sql-driver/mysql"
)

// archiveTable is the name of the table holding raw coverage archives.
const archiveTable = "archive_objects"

// ArchiveStoreImpl keeps raw coverage archives as blobs keyed by object path.
type ArchiveStoreImpl struct {
	db        *sql.DB
	tableName string
	backend   schema.DatabaseBackend
	connStr   string
}

var _ contract.ArchiveStore = &ArchiveStoreImpl{} // Compile-time check

// NewArchiveStore initializes and returns a new ArchiveStore based on the backend type.
// The none backend stores nothing and finds nothing.
func NewArchiveStore(tableName string, backend schema.DatabaseBackend, connStr string) (*ArchiveStoreImpl, error) {
	// Validate table name to prevent SQL injection
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}
	if backend == schema.NoneBackend {
		return &ArchiveStoreImpl{tableName: tableName, backend: backend, connStr: connStr}, nil
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(getCreateArchiveTableQuery(tableName, backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return &ArchiveStoreImpl{
		db:        db,
		tableName: tableName,
		backend:   backend,
		connStr:   connStr,
	}, nil
}

// getCreateArchiveTableQuery returns the CREATE TABLE query for the given backend.
func getCreateArchiveTableQuery(tableName string, backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(tableName, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				object_key VARCHAR(255) PRIMARY KEY,
				object_value LONGBLOB NOT NULL,
				object_version INT NOT NULL,
				object_timestamp BIGINT NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				object_key TEXT PRIMARY KEY,
				object_value BYTEA NOT NULL,
				object_version INTEGER NOT NULL,
				object_timestamp BIGINT NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				object_key TEXT PRIMARY KEY,
				object_value BLOB NOT NULL,
				object_version INTEGER NOT NULL,
				object_timestamp INTEGER NOT NULL
			);
		`, quotedTableName)
	}
}

// Get retrieves an archive by key. A missing key yields an error wrapping contract.ErrNotFound.
func (as *ArchiveStoreImpl) Get(key string) ([]byte, int, int64, error) {
	if as.backend == schema.NoneBackend || as.db == nil {
		return nil, 0, 0, fmt.Errorf("archive %s: %w", key, contract.ErrNotFound)
	}

	var value []byte
	var version int
	var ts int64

	query := rebind(as.backend, fmt.Sprintf(`SELECT object_value, object_version, object_timestamp FROM %s WHERE object_key = ?`,
		quoteTableName(as.tableName, as.backend)))
	if err := as.db.QueryRow(query, key).Scan(&value, &version, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, 0, fmt.Errorf("archive %s: %w", key, contract.ErrNotFound)
		}
		return nil, 0, 0, err
	}
	return value, version, ts, nil
}

// Set inserts or replaces an archive.
func (as *ArchiveStoreImpl) Set(key string, value []byte, version int, timestamp int64) error {
	if as.backend == schema.NoneBackend || as.db == nil {
		return nil
	}
	_, err := as.db.Exec(as.getUpsertQuery(), key, value, version, timestamp)
	return err
}

// getUpsertQuery returns the UPSERT query for the backend.
func (as *ArchiveStoreImpl) getUpsertQuery() string {
	quotedTableName := quoteTableName(as.tableName, as.backend)
	switch as.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (object_key, object_value, object_version, object_timestamp) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE object_value = new.object_value, object_version = new.object_version, object_timestamp = new.object_timestamp`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (object_key, object_value, object_version, object_timestamp) VALUES ($1, $2, $3, $4)
			ON CONFLICT (object_key) DO UPDATE SET object_value = EXCLUDED.object_value, object_version = EXCLUDED.object_version, object_timestamp = EXCLUDED.object_timestamp`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (object_key, object_value, object_version, object_timestamp) VALUES (?, ?, ?, ?)`, quotedTableName)
	}
}

// Close closes the underlying DB connection.
func (as *ArchiveStoreImpl) Close() error {
	if as.db != nil {
		return as.db.Close()
	}
	return nil
}

// GetStatus returns status information about the archive store.
func (as *ArchiveStoreImpl) GetStatus() (schema.ArchiveStatus, error) {
	status := schema.ArchiveStatus{
		Backend:   string(as.backend),
		Connected: as.db != nil,
	}

	if as.backend == schema.NoneBackend || as.db == nil {
		return status, nil
	}

	quotedTableName := quoteTableName(as.tableName, as.backend)

	row := as.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTableName))
	if err := row.Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to get total entries: %w", err)
	}
	if status.TotalEntries == 0 {
		return status, nil
	}

	var lastTs, oldestTs int64
	row = as.db.QueryRow(fmt.Sprintf("SELECT MAX(object_timestamp), MIN(object_timestamp) FROM %s", quotedTableName))
	if err := row.Scan(&lastTs, &oldestTs); err != nil {
		return status, fmt.Errorf("failed to get entry times: %w", err)
	}
	status.LastEntryTime = time.Unix(lastTs, 0)
	status.OldestEntryTime = time.Unix(oldestTs, 0)

	// Estimate table size (approximate)
	switch as.backend {
	case schema.SQLiteBackend:
		row = as.db.QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = 0
		}

	case schema.MySQLBackend:
		// Fallback rough estimate if information_schema query fails
		status.TableSizeBytes = int64(status.TotalEntries) * 1000
		cfg, err := mysql.ParseDSN(as.connStr)
		if err != nil || cfg.DBName == "" {
			break
		}
		row = as.db.QueryRow("SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", cfg.DBName, as.tableName)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000
		}

	case schema.PostgreSQLBackend:
		row = as.db.QueryRow("SELECT pg_total_relation_size($1)", as.tableName)
		if err := row.Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = int64(status.TotalEntries) * 1000 // Fallback rough estimate
		}
	}

	return status, nil
}
