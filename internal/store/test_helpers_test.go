package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/nimbus/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPackage creates a literal package in namespace "guest".
func createTestPackage(name string, params ir.ParameterSet) ir.Package {
	return ir.Package{Namespace: "guest", Name: name, Parameters: params}
}
