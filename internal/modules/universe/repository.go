package universe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// securitiesColumns avoids SELECT * so schema changes fail loudly.
// Column order must match scanSecurity.
const securitiesColumns = `cusip, ticker, description, issuer, coupon, maturity_date,
rating, asset_type, min_denomination, price, duration, spread_duration, oas,
analytics_updated_at`

// Repository handles security master database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new universe repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}
}

// GetByCUSIP returns a security by CUSIP, or nil when not found
func (r *Repository) GetByCUSIP(ctx context.Context, cusip string) (*Security, error) {
	query := "SELECT " + securitiesColumns + " FROM securities WHERE cusip = ?"

	rows, err := r.db.QueryContext(ctx, query, strings.ToUpper(strings.TrimSpace(cusip)))
	if err != nil {
		return nil, fmt.Errorf("failed to query security by CUSIP: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Security not found
	}

	security, err := scanSecurity(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan security: %w", err)
	}

	return &security, nil
}

// Search returns securities whose CUSIP, ticker, or description matches
// the query string. An empty query lists the universe up to limit.
func (r *Repository) Search(ctx context.Context, q string, limit int) ([]Security, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + securitiesColumns + " FROM securities"
	args := []interface{}{}

	q = strings.TrimSpace(q)
	if q != "" {
		pattern := "%" + strings.ToUpper(q) + "%"
		query += ` WHERE UPPER(cusip) LIKE ? OR UPPER(ticker) LIKE ? OR UPPER(description) LIKE ?`
		args = append(args, pattern, pattern, pattern)
	}
	query += " ORDER BY cusip LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search securities: %w", err)
	}
	defer rows.Close()

	var securities []Security
	for rows.Next() {
		security, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities = append(securities, security)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}

	return securities, nil
}

// Upsert inserts or replaces a security record
func (r *Repository) Upsert(ctx context.Context, sec Security) error {
	query := `
		INSERT OR REPLACE INTO securities
		(cusip, ticker, description, issuer, coupon, maturity_date, rating,
		 asset_type, min_denomination, price, duration, spread_duration, oas,
		 analytics_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var updatedAt interface{}
	if !sec.AnalyticsUpdatedAt.IsZero() {
		updatedAt = sec.AnalyticsUpdatedAt.UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx, query,
		sec.CUSIP, sec.Ticker, sec.Description, sec.Issuer, sec.Coupon,
		sec.MaturityDate, sec.Rating, sec.AssetType, sec.MinDenomination,
		sec.Price, sec.Duration, sec.SpreadDuration, sec.OAS, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert security: %w", err)
	}
	return nil
}

// UpdateAnalytics overwrites the analytics columns of one security
func (r *Repository) UpdateAnalytics(ctx context.Context, a Analytics) error {
	query := `
		UPDATE securities
		SET price = ?, duration = ?, spread_duration = ?, oas = ?,
		    analytics_updated_at = ?
		WHERE cusip = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		a.Price, a.Duration, a.SpreadDuration, a.OAS,
		a.AsOf.UTC().Format(time.RFC3339), a.CUSIP)
	if err != nil {
		return fmt.Errorf("failed to update analytics: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unknown security: %s", a.CUSIP)
	}
	return nil
}

// Count returns the number of stored securities
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM securities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count securities: %w", err)
	}
	return count, nil
}

// AllCUSIPs returns every stored CUSIP in order
func (r *Repository) AllCUSIPs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT cusip FROM securities ORDER BY cusip")
	if err != nil {
		return nil, fmt.Errorf("failed to query CUSIPs: %w", err)
	}
	defer rows.Close()

	var cusips []string
	for rows.Next() {
		var cusip string
		if err := rows.Scan(&cusip); err != nil {
			return nil, fmt.Errorf("failed to scan CUSIP: %w", err)
		}
		cusips = append(cusips, cusip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating CUSIPs: %w", err)
	}

	return cusips, nil
}

// scanSecurity scans a database row into a Security struct
func scanSecurity(rows *sql.Rows) (Security, error) {
	var sec Security
	var description, issuer, maturityDate, rating, assetType, updatedAt sql.NullString

	err := rows.Scan(
		&sec.CUSIP,
		&sec.Ticker,
		&description,
		&issuer,
		&sec.Coupon,
		&maturityDate,
		&rating,
		&assetType,
		&sec.MinDenomination,
		&sec.Price,
		&sec.Duration,
		&sec.SpreadDuration,
		&sec.OAS,
		&updatedAt,
	)
	if err != nil {
		return sec, err
	}

	sec.Description = description.String
	sec.Issuer = issuer.String
	sec.MaturityDate = maturityDate.String
	sec.Rating = rating.String
	sec.AssetType = assetType.String

	if updatedAt.Valid && updatedAt.String != "" {
		if ts, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
			sec.AnalyticsUpdatedAt = ts
		}
	}

	return sec, nil
}
