package portfolio

import "database/sql"

// PortfolioSchema defines portfolio groups, accounts, positions, and
// per-account security restrictions in refdata.db.
const PortfolioSchema = `
CREATE TABLE IF NOT EXISTS portfolio_groups (
    ticker TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    strategy TEXT NOT NULL,
    total_nav REAL NOT NULL,
    manager TEXT,
    created_date TEXT
);

CREATE TABLE IF NOT EXISTS accounts (
    account_id TEXT PRIMARY KEY,
    group_ticker TEXT NOT NULL REFERENCES portfolio_groups(ticker),
    account_name TEXT NOT NULL,
    nav REAL NOT NULL,
    available_cash REAL NOT NULL,
    active_spread_duration REAL NOT NULL DEFAULT 0,
    portfolio_duration REAL NOT NULL DEFAULT 0,
    spread_duration REAL NOT NULL DEFAULT 0,
    oas REAL NOT NULL DEFAULT 0,
    max_concentration REAL
);

CREATE TABLE IF NOT EXISTS positions (
    account_id TEXT NOT NULL REFERENCES accounts(account_id),
    cusip TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    PRIMARY KEY (account_id, cusip)
);

CREATE TABLE IF NOT EXISTS account_restrictions (
    account_id TEXT NOT NULL REFERENCES accounts(account_id),
    cusip TEXT NOT NULL,
    reason TEXT,
    PRIMARY KEY (account_id, cusip)
);

CREATE INDEX IF NOT EXISTS idx_accounts_group ON accounts(group_ticker);
CREATE INDEX IF NOT EXISTS idx_positions_cusip ON positions(cusip);
`

// InitSchema ensures the portfolio tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(PortfolioSchema)
	return err
}
