// Package storage defines the persistence contract for the recall
// engine and a conformance suite every backend must pass.
package storage

import (
	"github.com/memkeep/memkeep/pkg/memory"
	"github.com/memkeep/memkeep/pkg/usage"
)

// Store is the full persistence surface: memories plus the usage
// ledger, backed by one database so deployments stay single-file.
type Store interface {
	memory.Store
	usage.Store

	// Close releases the backend.
	Close() error
}