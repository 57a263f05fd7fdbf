package aladdin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityAnalytics_MockMode(t *testing.T) {
	client := NewClient("", 0, true, zerolog.Nop())

	a1, err := client.SecurityAnalytics(context.Background(), "459200JX0")
	require.NoError(t, err)
	a2, err := client.SecurityAnalytics(context.Background(), "459200JX0")
	require.NoError(t, err)

	// Mock analytics are deterministic per CUSIP
	assert.Equal(t, a1.Price, a2.Price)
	assert.Equal(t, a1.Duration, a2.Duration)
	assert.Equal(t, a1.OAS, a2.OAS)

	assert.Greater(t, a1.Price, 0.0)
	assert.Greater(t, a1.Duration, 0.0)
	assert.LessOrEqual(t, a1.SpreadDuration, a1.Duration)
}

func TestSecurityAnalytics_ParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analytics/securities/459200JX0", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("VND.com.blackrock.Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"cusip": "459200JX0",
			"price": 0.9725,
			"effectiveDuration": 3.8,
			"spreadDuration": 3.6,
			"oas": 85,
			"asOfTime": "2026-08-25T12:00:00Z"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, false, zerolog.Nop())

	a, err := client.SecurityAnalytics(context.Background(), "459200JX0")
	require.NoError(t, err)

	assert.Equal(t, 0.9725, a.Price)
	assert.Equal(t, 3.8, a.Duration)
	assert.Equal(t, 3.6, a.SpreadDuration)
	assert.Equal(t, 85.0, a.OAS)
	assert.Equal(t, 2026, a.AsOf.Year())
}

func TestSecurityAnalytics_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"price": 1.01, "effectiveDuration": 5.0, "spreadDuration": 4.8, "oas": 60}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, false, zerolog.Nop())

	a, err := client.SecurityAnalytics(context.Background(), "912828ZW8")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.01, a.Price)
}

func TestSecurityAnalytics_NoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, false, zerolog.Nop())

	_, err := client.SecurityAnalytics(context.Background(), "NOPE00000")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
