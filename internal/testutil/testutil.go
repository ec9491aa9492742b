// Package testutil provides shared test helpers for databases and blob
// directories.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/agora/internal/authz"
	"github.com/starford/agora/internal/blob"
	"github.com/starford/agora/internal/store"
)

// Principals used across package tests.
var (
	Alice    = authz.Principal{UserID: "alice", Role: authz.RoleMember}
	Bob      = authz.Principal{UserID: "bob", Role: authz.RoleMember}
	Reviewer = authz.Principal{UserID: "rita", Role: authz.RoleReviewer}
	Admin    = authz.Principal{UserID: "adam", Role: authz.RoleAdmin}
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "agora-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobs creates a temporary blob directory with a blob.FS.
func TestBlobs(t *testing.T) (string, *blob.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := blob.NewFS(dir, "/files")
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
