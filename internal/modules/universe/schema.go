package universe

import "database/sql"

// UniverseSchema defines the security master in refdata.db. Analytics
// columns are denormalized onto the security row; the vendor refresh
// overwrites them in place.
const UniverseSchema = `
CREATE TABLE IF NOT EXISTS securities (
    cusip TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    description TEXT,
    issuer TEXT,
    coupon REAL NOT NULL DEFAULT 0,
    maturity_date TEXT,
    rating TEXT,
    asset_type TEXT,
    min_denomination INTEGER NOT NULL DEFAULT 1000,
    price REAL NOT NULL DEFAULT 0,
    duration REAL NOT NULL DEFAULT 0,
    spread_duration REAL NOT NULL DEFAULT 0,
    oas REAL NOT NULL DEFAULT 0,
    analytics_updated_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_securities_ticker ON securities(ticker);
`

// InitSchema ensures the universe tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(UniverseSchema)
	return err
}
