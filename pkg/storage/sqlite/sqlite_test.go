package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/memkeep/memkeep/pkg/storage"
)

func TestSQLiteStore(t *testing.T) {
	suite := &storage.StoreTestSuite{
		NewStore: func(t *testing.T) storage.Store {
			store, err := New(filepath.Join(t.TempDir(), "memkeep.db"))
			if err != nil {
				t.Fatalf("opening store: %v", err)
			}
			return store
		},
	}
	suite.RunAllTests(t)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memkeep.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	suite := &storage.StoreTestSuite{}
	m := suite.TestFixture("m-1", "alice")
	if err := store.UpsertMemory(t.Context(), m); err != nil {
		t.Fatalf("UpsertMemory failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetMemory(t.Context(), "m-1", "alice")
	if err != nil {
		t.Fatalf("GetMemory after reopen failed: %v", err)
	}
	if got.Content != m.Content {
		t.Errorf("content = %q, want %q", got.Content, m.Content)
	}
}
