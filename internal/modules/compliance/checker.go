// Package compliance enforces account trading restrictions at allocation
// time.
package compliance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-backend/internal/modules/allocation"
)

// Checker validates proposed allocations against the restriction table.
// It runs as the final gate after rounding, so a restriction added
// mid-request still blocks the trade.
type Checker struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewChecker creates a new compliance checker
func NewChecker(db *sql.DB, log zerolog.Logger) *Checker {
	return &Checker{
		db:  db,
		log: log.With().Str("service", "compliance").Logger(),
	}
}

// Check flags accounts barred from the security among the proposed
// allocations. A flagged account keeps the allocation request alive;
// the engine zeroes the account and warns instead of failing.
func (c *Checker) Check(
	ctx context.Context,
	order allocation.Order,
	security allocation.Security,
	proposed []allocation.AccountQuantity,
) ([]allocation.ComplianceFlag, error) {
	if len(proposed) == 0 {
		return nil, nil
	}

	var flags []allocation.ComplianceFlag
	for _, p := range proposed {
		var reason sql.NullString
		err := c.db.QueryRowContext(ctx,
			"SELECT reason FROM account_restrictions WHERE account_id = ? AND cusip = ?",
			p.AccountID, security.CUSIP).Scan(&reason)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check restrictions for %s: %w", p.AccountID, err)
		}

		message := "restricted security"
		if reason.Valid && reason.String != "" {
			message = reason.String
		}
		flags = append(flags, allocation.ComplianceFlag{
			AccountID: p.AccountID,
			Reason:    message,
		})
	}

	if len(flags) > 0 {
		c.log.Warn().
			Str("cusip", security.CUSIP).
			Int("flagged", len(flags)).
			Msg("Compliance flags raised")
	}

	return flags, nil
}
