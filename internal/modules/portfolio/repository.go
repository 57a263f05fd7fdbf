package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
)

// Repository handles portfolio group and account database operations.
// It also serves the allocation engine as its account provider.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// ListGroups returns all portfolio groups with their account counts
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	query := `
		SELECT g.ticker, g.name, g.description, g.strategy, g.total_nav,
		       g.manager, g.created_date, COUNT(a.account_id)
		FROM portfolio_groups g
		LEFT JOIN accounts a ON a.group_ticker = g.ticker
		GROUP BY g.ticker
		ORDER BY g.ticker
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio groups: %w", err)
	}

	return groups, nil
}

// GetGroup returns one portfolio group, or nil when it does not exist
func (r *Repository) GetGroup(ctx context.Context, ticker string) (*Group, error) {
	query := `
		SELECT g.ticker, g.name, g.description, g.strategy, g.total_nav,
		       g.manager, g.created_date, COUNT(a.account_id)
		FROM portfolio_groups g
		LEFT JOIN accounts a ON a.group_ticker = g.ticker
		WHERE g.ticker = ?
		GROUP BY g.ticker
	`

	rows, err := r.db.QueryContext(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio group: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil // Group not found
	}

	group, err := scanGroup(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan portfolio group: %w", err)
	}

	return &group, nil
}

// GroupAccountRecords returns the stored accounts of one group
func (r *Repository) GroupAccountRecords(ctx context.Context, ticker string) ([]AccountRecord, error) {
	query := `
		SELECT account_id, group_ticker, account_name, nav, available_cash,
		       active_spread_duration, portfolio_duration, spread_duration,
		       oas, max_concentration
		FROM accounts
		WHERE group_ticker = ?
		ORDER BY account_id
	`

	rows, err := r.db.QueryContext(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var records []AccountRecord
	for rows.Next() {
		var rec AccountRecord
		var maxConcentration sql.NullFloat64
		err := rows.Scan(
			&rec.AccountID,
			&rec.GroupTicker,
			&rec.AccountName,
			&rec.NAV,
			&rec.AvailableCash,
			&rec.ActiveSpreadDuration,
			&rec.PortfolioDuration,
			&rec.SpreadDuration,
			&rec.OAS,
			&maxConcentration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if maxConcentration.Valid {
			rec.MaxConcentration = &maxConcentration.Float64
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return records, nil
}

// GroupAccounts resolves the named portfolio groups into allocation
// candidates, joining each account with its position in and restriction
// against the target security. An unknown group ticker is an error;
// the engine must never run against a silently-empty group.
func (r *Repository) GroupAccounts(ctx context.Context, groups []string, securityID string) ([]allocation.Account, error) {
	if len(groups) == 0 {
		return nil, errors.New("no portfolio groups given")
	}

	for _, ticker := range groups {
		var exists int
		err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM portfolio_groups WHERE ticker = ?", ticker).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check portfolio group %s: %w", ticker, err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("unknown portfolio group: %s", ticker)
		}
	}

	placeholders := strings.Repeat("?,", len(groups))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT a.account_id, a.account_name, a.nav, a.available_cash,
		       a.active_spread_duration, a.portfolio_duration,
		       a.spread_duration, a.oas, a.max_concentration,
		       COALESCE(p.quantity, 0),
		       CASE WHEN r.cusip IS NULL THEN 0 ELSE 1 END
		FROM accounts a
		LEFT JOIN positions p
		       ON p.account_id = a.account_id AND p.cusip = ?
		LEFT JOIN account_restrictions r
		       ON r.account_id = a.account_id AND r.cusip = ?
		WHERE a.group_ticker IN (%s)
		ORDER BY a.account_id
	`, placeholders)

	args := make([]interface{}, 0, len(groups)+2)
	args = append(args, securityID, securityID)
	for _, ticker := range groups {
		args = append(args, ticker)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group accounts: %w", err)
	}
	defer rows.Close()

	var accounts []allocation.Account
	for rows.Next() {
		var acct allocation.Account
		var maxConcentration sql.NullFloat64
		var restricted int
		err := rows.Scan(
			&acct.AccountID,
			&acct.AccountName,
			&acct.NAV,
			&acct.AvailableCash,
			&acct.ActiveSpreadDuration,
			&acct.PortfolioDuration,
			&acct.SpreadDuration,
			&acct.OAS,
			&maxConcentration,
			&acct.CurrentPosition,
			&restricted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group account: %w", err)
		}
		if maxConcentration.Valid {
			acct.MaxConcentration = &maxConcentration.Float64
		}
		if restricted != 0 {
			acct.RestrictedSecurities = []string{securityID}
		}
		accounts = append(accounts, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group accounts: %w", err)
	}

	r.log.Debug().
		Strs("groups", groups).
		Str("security_id", securityID).
		Int("accounts", len(accounts)).
		Msg("Resolved group accounts")

	return accounts, nil
}

// UpsertGroup inserts or updates a portfolio group
func (r *Repository) UpsertGroup(ctx context.Context, group Group) error {
	query := `
		INSERT OR REPLACE INTO portfolio_groups
		(ticker, name, description, strategy, total_nav, manager, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		group.Ticker, group.Name, group.Description, group.Strategy,
		group.TotalNAV, group.Manager, group.CreatedDate)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio group: %w", err)
	}
	return nil
}

// UpsertAccount inserts or updates an account
func (r *Repository) UpsertAccount(ctx context.Context, rec AccountRecord) error {
	query := `
		INSERT OR REPLACE INTO accounts
		(account_id, group_ticker, account_name, nav, available_cash,
		 active_spread_duration, portfolio_duration, spread_duration,
		 oas, max_concentration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var maxConcentration interface{}
	if rec.MaxConcentration != nil {
		maxConcentration = *rec.MaxConcentration
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.AccountID, rec.GroupTicker, rec.AccountName, rec.NAV,
		rec.AvailableCash, rec.ActiveSpreadDuration, rec.PortfolioDuration,
		rec.SpreadDuration, rec.OAS, maxConcentration)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// UpsertPosition inserts or updates an account's holding of one security
func (r *Repository) UpsertPosition(ctx context.Context, pos Position) error {
	query := `
		INSERT OR REPLACE INTO positions (account_id, cusip, quantity)
		VALUES (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, pos.AccountID, pos.CUSIP, pos.Quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// AddRestriction bars an account from trading a security
func (r *Repository) AddRestriction(ctx context.Context, accountID, cusip, reason string) error {
	query := `
		INSERT OR REPLACE INTO account_restrictions (account_id, cusip, reason)
		VALUES (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, accountID, cusip, reason)
	if err != nil {
		return fmt.Errorf("failed to add restriction: %w", err)
	}
	return nil
}

// CountGroups returns the number of stored portfolio groups
func (r *Repository) CountGroups(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM portfolio_groups").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count portfolio groups: %w", err)
	}
	return count, nil
}

// scanGroup scans a database row into a Group struct
func scanGroup(rows *sql.Rows) (Group, error) {
	var group Group
	var description, manager, createdDate sql.NullString

	err := rows.Scan(
		&group.Ticker,
		&group.Name,
		&description,
		&group.Strategy,
		&group.TotalNAV,
		&manager,
		&createdDate,
		&group.AccountCount,
	)
	if err != nil {
		return group, err
	}

	group.Description = description.String
	group.Manager = manager.String
	group.CreatedDate = createdDate.String

	return group, nil
}
