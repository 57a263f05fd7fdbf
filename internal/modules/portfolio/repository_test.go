package portfolio

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return db
}

func seedTestGroup(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.UpsertGroup(ctx, Group{
		Ticker:   "TEST-CORE",
		Name:     "Test Core",
		Strategy: "CORE",
		TotalNAV: 330_000_000,
	}))

	maxConc := 0.05
	accounts := []AccountRecord{
		{AccountID: "ACC001", GroupTicker: "TEST-CORE", AccountName: "Account One",
			NAV: 100_000_000, AvailableCash: 5_000_000, PortfolioDuration: 5.2,
			ActiveSpreadDuration: 0.3, SpreadDuration: 5.0, OAS: 80},
		{AccountID: "ACC002", GroupTicker: "TEST-CORE", AccountName: "Account Two",
			NAV: 150_000_000, AvailableCash: 8_000_000, PortfolioDuration: 5.4,
			ActiveSpreadDuration: 0.1, SpreadDuration: 5.1, OAS: 85,
			MaxConcentration: &maxConc},
		{AccountID: "ACC003", GroupTicker: "TEST-CORE", AccountName: "Account Three",
			NAV: 80_000_000, AvailableCash: 3_000_000, PortfolioDuration: 5.0,
			ActiveSpreadDuration: -0.2, SpreadDuration: 4.9, OAS: 78},
	}
	for _, acct := range accounts {
		require.NoError(t, repo.UpsertAccount(ctx, acct))
	}
}

func TestRepository_ListGroups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	seedTestGroup(t, repo)

	groups, err := repo.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)

	assert.Equal(t, "TEST-CORE", groups[0].Ticker)
	assert.Equal(t, 3, groups[0].AccountCount)
	assert.Equal(t, 330_000_000.0, groups[0].TotalNAV)
}

func TestRepository_GetGroup_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	group, err := repo.GetGroup(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, group)
}

func TestRepository_GroupAccounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	seedTestGroup(t, repo)

	ctx := context.Background()
	require.NoError(t, repo.UpsertPosition(ctx, Position{
		AccountID: "ACC001", CUSIP: "912828ZW8", Quantity: 2_000_000,
	}))
	require.NoError(t, repo.UpsertPosition(ctx, Position{
		AccountID: "ACC001", CUSIP: "OTHER0001", Quantity: 9_000_000,
	}))
	require.NoError(t, repo.AddRestriction(ctx, "ACC003", "912828ZW8", "ESG_COMPLIANT"))

	accounts, err := repo.GroupAccounts(ctx, []string{"TEST-CORE"}, "912828ZW8")
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	// Position joined only for the target security
	assert.Equal(t, int64(2_000_000), accounts[0].CurrentPosition)
	assert.Equal(t, int64(0), accounts[1].CurrentPosition)

	// Restriction surfaces on the restricted account only
	assert.Empty(t, accounts[0].RestrictedSecurities)
	assert.Equal(t, []string{"912828ZW8"}, accounts[2].RestrictedSecurities)

	// Nullable concentration limit round-trips
	assert.Nil(t, accounts[0].MaxConcentration)
	require.NotNil(t, accounts[1].MaxConcentration)
	assert.Equal(t, 0.05, *accounts[1].MaxConcentration)
}

func TestRepository_GroupAccounts_UnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	seedTestGroup(t, repo)

	_, err := repo.GroupAccounts(context.Background(), []string{"TEST-CORE", "GHOST"}, "912828ZW8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GHOST")
}

func TestSeed_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	cusips := []string{"912828ZW8", "459200JX0"}
	require.NoError(t, Seed(ctx, repo, cusips, zerolog.Nop()))
	require.NoError(t, Seed(ctx, repo, cusips, zerolog.Nop()))

	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 4)

	accounts, err := repo.GroupAccountRecords(ctx, "ALPHA-CORE")
	require.NoError(t, err)
	assert.Len(t, accounts, 12)
}
