package auditlog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/stackgate/internal/database"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for audit entries.
type Repository interface {
	Save(entry *AuditEntry) error
	List(limit int) ([]AuditEntry, error)
	ListByRoute(route string, limit int) ([]AuditEntry, error)
	Prune(filter PruneFilter) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenAt creates or opens the audit database at path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS audit_log (
            id            INTEGER PRIMARY KEY AUTOINCREMENT,
            request_id    TEXT    NOT NULL,
            timestamp     TEXT    NOT NULL,
            route         TEXT    NOT NULL,
            request       TEXT    NOT NULL DEFAULT '',
            cloud         TEXT    NOT NULL DEFAULT '',
            resource_type TEXT    NOT NULL DEFAULT '',
            resource_id   TEXT    NOT NULL DEFAULT '',
            resource_name TEXT    NOT NULL DEFAULT '',
            status        INTEGER NOT NULL DEFAULT 0,
            outcome       TEXT    NOT NULL DEFAULT '',
            detail        TEXT    NOT NULL DEFAULT '',
            duration_ms   INTEGER NOT NULL DEFAULT 0
        );
        CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
        CREATE INDEX IF NOT EXISTS idx_audit_log_route ON audit_log(route);
        CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log(resource_type, resource_name);
    `
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("auditlog: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new audit entry, assigning a request id and timestamp
// when missing.
func (r *SQLiteRepository) Save(entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}

	result, err := r.db.Exec(`
        INSERT INTO audit_log (request_id, timestamp, route, request, cloud, resource_type, resource_id, resource_name,
                               status, outcome, detail, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Route, entry.Request, entry.Cloud,
		entry.ResourceType, entry.ResourceID, entry.ResourceName, entry.Status, entry.Outcome, entry.Detail, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("auditlog: failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

const selectColumns = `
        SELECT id, request_id, timestamp, route, request, cloud, resource_type, resource_id, resource_name,
               status, outcome, detail, duration_ms
        FROM audit_log`

// List returns the most recent n audit entries.
func (r *SQLiteRepository) List(limit int) ([]AuditEntry, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListByRoute returns the most recent n audit entries for a route.
func (r *SQLiteRepository) ListByRoute(route string, limit int) ([]AuditEntry, error) {
	rows, err := r.db.Query(selectColumns+` WHERE route = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, route, limit)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// PruneFilter selects the entries Prune removes. Set fields are ANDed.
type PruneFilter struct {
	OlderThan time.Duration
	Route     string
	Outcome   string
	Cloud     string
}

// ErrEmptyFilter is returned by Prune when no field of the filter is set.
var ErrEmptyFilter = errors.New("auditlog: prune filter selects every entry")

func (f PruneFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.OlderThan > 0 {
		conds = append(conds, "timestamp < ?")
		args = append(args, time.Now().UTC().Add(-f.OlderThan).Format(time.RFC3339Nano))
	}
	if f.Route != "" {
		conds = append(conds, "route = ?")
		args = append(args, f.Route)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Cloud != "" {
		conds = append(conds, "cloud = ?")
		args = append(args, f.Cloud)
	}
	return strings.Join(conds, " AND "), args
}

// Prune deletes the entries matching filter and reports how many were
// removed.
func (r *SQLiteRepository) Prune(filter PruneFilter) (int64, error) {
	where, args := filter.where()
	if where == "" {
		return 0, ErrEmptyFilter
	}
	result, err := r.db.Exec(`DELETE FROM audit_log WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("auditlog: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var timestampStr string
		err := rows.Scan(
			&entry.ID, &entry.RequestID, &timestampStr, &entry.Route, &entry.Request, &entry.Cloud,
			&entry.ResourceType, &entry.ResourceID, &entry.ResourceName,
			&entry.Status, &entry.Outcome, &entry.Detail, &entry.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("auditlog: scan failed: %w", err)
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
