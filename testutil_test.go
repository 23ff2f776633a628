package main

import "testing"

// newTestDatabase opens a throwaway bolt-backed store under the test's
// temporary directory, cleaned up automatically when the test completes.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(t.TempDir())
	if err != nil {
		t.Fatalf("unable to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}
