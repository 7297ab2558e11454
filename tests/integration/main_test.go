package integration

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		// Individual tests skip themselves; no container needed.
		os.Exit(m.Run())
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	if err != nil {
		log.Fatalf("failed to set up test database: %v", err)
	}
	testDB = db

	code := m.Run()

	if err := db.Teardown(ctx); err != nil {
		log.Printf("failed to tear down test database: %v", err)
	}
	os.Exit(code)
}

// setup skips in short mode, wipes the tables, and returns a fresh server
// with its own rate limiter and lockout store.
func setup(t *testing.T) *TestServer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if err := testDB.CleanupTables(context.Background()); err != nil {
		t.Fatalf("failed to clean up tables: %v", err)
	}
	return NewTestServer(t, testDB)
}
