package perf

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/invoicely/invoicely/cmd/ledgerctl/cli"
	"github.com/invoicely/invoicely/internal/analytics"
	"github.com/invoicely/invoicely/internal/ledger"
	"github.com/invoicely/invoicely/internal/platform/db"
)

var fixtureNow = time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seededLedger returns an in-memory ledger holding n demo invoices spread
// over the year before fixtureNow.
func seededLedger(tb testing.TB, n int) *ledger.Store {
	tb.Helper()
	ctx := context.Background()
	handle, err := db.OpenSQLite(ctx, ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = handle.Close() })
	store := ledger.NewSQLiteStore(handle)
	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if _, err := cli.Seed(ctx, store, cli.SeedOptions{Count: n, Months: 12, Seed: 42, Now: fixtureNow}); err != nil {
		tb.Fatalf("seed: %v", err)
	}
	return store
}

func newCache(tb testing.TB) *analytics.Cache {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { _ = client.Close() })
	return analytics.NewCache(client, time.Minute)
}
