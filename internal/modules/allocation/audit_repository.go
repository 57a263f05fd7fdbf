package allocation

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// AuditSchema defines the allocations audit trail in audit.db.
// The full result is stored as a msgpack blob beside the queryable columns.
const AuditSchema = `
CREATE TABLE IF NOT EXISTS allocations (
    allocation_id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    security_id TEXT NOT NULL,
    side TEXT NOT NULL,
    method TEXT NOT NULL,
    order_quantity INTEGER NOT NULL,
    total_allocated INTEGER NOT NULL,
    allocation_rate REAL NOT NULL,
    accounts_allocated INTEGER NOT NULL,
    accounts_skipped INTEGER NOT NULL,
    warning_count INTEGER NOT NULL,
    payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_allocations_created_at ON allocations(created_at);
CREATE INDEX IF NOT EXISTS idx_allocations_security ON allocations(security_id);
`

// InitAuditSchema ensures the allocations table exists
func InitAuditSchema(db *sql.DB) error {
	_, err := db.Exec(AuditSchema)
	return err
}

// AuditEntry is a row of the allocation history listing
type AuditEntry struct {
	AllocationID      string    `json:"allocation_id"`
	CreatedAt         time.Time `json:"created_at"`
	SecurityID        string    `json:"security_id"`
	Side              Side      `json:"side"`
	Method            Method    `json:"method"`
	OrderQuantity     int64     `json:"order_quantity"`
	TotalAllocated    int64     `json:"total_allocated"`
	AllocationRate    float64   `json:"allocation_rate"`
	AccountsAllocated int       `json:"accounts_allocated"`
	WarningCount      int       `json:"warning_count"`
}

// AuditRepository persists finished allocation results to the ledger
// database.
type AuditRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, log zerolog.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: log.With().Str("repo", "allocation_audit").Logger(),
	}
}

// Save writes one finished allocation result. Results are immutable once
// written.
func (r *AuditRepository) Save(result *Result) error {
	payload, err := msgpack.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode allocation result: %w", err)
	}

	query := `
		INSERT INTO allocations
		(allocation_id, created_at, security_id, side, method, order_quantity,
		 total_allocated, allocation_rate, accounts_allocated, accounts_skipped,
		 warning_count, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		result.AllocationID,
		result.Timestamp.Format(time.RFC3339),
		result.Order.SecurityID,
		string(result.Order.Side),
		string(result.Method),
		result.Order.Quantity,
		result.Summary.TotalAllocated,
		result.Summary.AllocationRate,
		result.Summary.AccountsAllocated,
		result.Summary.AccountsSkipped,
		len(result.Warnings),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save allocation %s: %w", result.AllocationID, err)
	}

	r.log.Info().
		Str("allocation_id", result.AllocationID).
		Str("security_id", result.Order.SecurityID).
		Int64("total_allocated", result.Summary.TotalAllocated).
		Msg("Allocation recorded")

	return nil
}

// GetByID retrieves one stored allocation result, or nil when not found.
func (r *AuditRepository) GetByID(allocationID string) (*Result, error) {
	var payload []byte
	err := r.db.QueryRow(
		"SELECT payload FROM allocations WHERE allocation_id = ?", allocationID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation %s: %w", allocationID, err)
	}

	var result Result
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode allocation %s: %w", allocationID, err)
	}
	return &result, nil
}

// List returns the most recent allocation entries, newest first.
func (r *AuditRepository) List(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT allocation_id, created_at, security_id, side, method,
		       order_quantity, total_allocated, allocation_rate,
		       accounts_allocated, warning_count
		FROM allocations
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(
			&e.AllocationID, &createdAt, &e.SecurityID, &e.Side, &e.Method,
			&e.OrderQuantity, &e.TotalAllocated, &e.AllocationRate,
			&e.AccountsAllocated, &e.WarningCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneOlderThan deletes audit rows older than the cutoff and returns the
// number removed.
func (r *AuditRepository) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM allocations WHERE created_at < ?", cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune allocations: %w", err)
	}
	return res.RowsAffected()
}
