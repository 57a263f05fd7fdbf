package universe

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type fakeVendor struct {
	analytics Analytics
	err       error
	calls     int
}

func (f *fakeVendor) SecurityAnalytics(ctx context.Context, cusip string) (Analytics, error) {
	f.calls++
	if f.err != nil {
		return Analytics{}, f.err
	}
	a := f.analytics
	a.CUSIP = cusip
	return a, nil
}

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db))
	return NewRepository(db, zerolog.Nop())
}

func TestService_SecurityWithAnalytics_Fresh(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Security{
		CUSIP: "459200JX0", Ticker: "IBM 3.45 02/19/26",
		MinDenomination: 2000, Price: 0.9725, Duration: 3.8,
		SpreadDuration: 3.6, OAS: 85,
		AnalyticsUpdatedAt: time.Now().UTC(),
	}))

	vendor := &fakeVendor{}
	svc := NewService(repo, vendor, time.Hour, zerolog.Nop())

	sec, err := svc.SecurityWithAnalytics(ctx, "459200JX0")
	require.NoError(t, err)

	assert.Equal(t, "459200JX0", sec.CUSIP)
	assert.Equal(t, 0.9725, sec.Price)
	assert.Equal(t, int64(2000), sec.MinDenomination)
	assert.Equal(t, 0, vendor.calls, "fresh analytics should not hit the vendor")
}

func TestService_SecurityWithAnalytics_RefreshesStale(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Security{
		CUSIP: "459200JX0", Ticker: "IBM 3.45 02/19/26",
		MinDenomination: 2000, Price: 0.9500, Duration: 3.8,
		SpreadDuration: 3.6, OAS: 85,
		AnalyticsUpdatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	vendor := &fakeVendor{analytics: Analytics{
		Price: 0.9725, Duration: 3.9, SpreadDuration: 3.7, OAS: 88,
		AsOf: time.Now().UTC(),
	}}
	svc := NewService(repo, vendor, time.Hour, zerolog.Nop())

	sec, err := svc.SecurityWithAnalytics(ctx, "459200JX0")
	require.NoError(t, err)

	assert.Equal(t, 1, vendor.calls)
	assert.Equal(t, 0.9725, sec.Price)
	assert.Equal(t, 88.0, sec.OAS)

	// Refreshed analytics are persisted
	stored, err := repo.GetByCUSIP(ctx, "459200JX0")
	require.NoError(t, err)
	assert.Equal(t, 0.9725, stored.Price)
}

func TestService_SecurityWithAnalytics_VendorFailureFails(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Security{
		CUSIP: "459200JX0", Ticker: "IBM 3.45 02/19/26",
		MinDenomination: 2000, Price: 0.9500, Duration: 3.8,
		AnalyticsUpdatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	vendor := &fakeVendor{err: errors.New("vendor unavailable")}
	svc := NewService(repo, vendor, time.Hour, zerolog.Nop())

	_, err := svc.SecurityWithAnalytics(ctx, "459200JX0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics refresh failed")
}

func TestService_SecurityWithAnalytics_Unknown(t *testing.T) {
	repo := setupTestRepo(t)
	svc := NewService(repo, nil, time.Hour, zerolog.Nop())

	_, err := svc.SecurityWithAnalytics(context.Background(), "NOPE00000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown security")
}

func TestRepository_Search(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := Seed(ctx, repo, zerolog.Nop())
	require.NoError(t, err)

	results, err := repo.Search(ctx, "treasury", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = repo.Search(ctx, "459200JX0", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "IBM Corp", results[0].Issuer)
}

func TestSeed_ReturnsExistingCUSIPs(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first, err := Seed(ctx, repo, zerolog.Nop())
	require.NoError(t, err)
	second, err := Seed(ctx, repo, zerolog.Nop())
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
	assert.Len(t, first, 8)
}
