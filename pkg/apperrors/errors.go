package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema indicates malformed dimension or table setup. Fatal at boot.
	ErrSchema = errors.New("schema error")

	// ErrCacheNotReady indicates a query was attempted before the filter
	// cache completed its first successful initialization.
	ErrCacheNotReady = errors.New("filter cache not ready")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage indicates an I/O or connection fault in the embedded store.
	// The engine never retries on its own; retry policy belongs to callers.
	ErrStorage = errors.New("storage error")

	// ErrImportInProgress indicates a second writer tried to start an import
	// while one is already running. Ingestion is strictly single-writer.
	ErrImportInProgress = errors.New("import already in progress")
)

// ConflictingMappingError reports a regularization mapping that would bind an
// uncurated make to a second, different canonical make. The mutation is
// rejected before any write occurs.
type ConflictingMappingError struct {
	UncuratedMakeID     uint32
	ExistingCanonicalID uint32
	ProposedCanonicalID uint32
}

func (e *ConflictingMappingError) Error() string {
	return fmt.Sprintf(
		"conflicting mapping: uncurated make %d already maps to canonical make %d, cannot also map to %d",
		e.UncuratedMakeID, e.ExistingCanonicalID, e.ProposedCanonicalID)
}

// UnresolvedFilterValueError reports filter tokens that matched no known
// dimension value. The engine surfaces every unknown token; whether to drop
// the filter or warn the user is the caller's decision.
type UnresolvedFilterValueError struct {
	Category string
	Tokens   []string
}

func (e *UnresolvedFilterValueError) Error() string {
	return fmt.Sprintf("unresolved filter value(s) for %s: %s",
		e.Category, strings.Join(e.Tokens, ", "))
}

// SlowQueryWarning is an informational, non-fatal plan classification. It is
// returned alongside results, never instead of them.
type SlowQueryWarning struct {
	Table  string
	Detail string
}

func (e *SlowQueryWarning) Error() string {
	return fmt.Sprintf("slow query: full scan of %s (%s)", e.Table, e.Detail)
}

// StorageError wraps a storage-layer fault with the operation that hit it.
// Unwraps to ErrStorage so callers can test with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// Storage wraps err as a StorageError for operation op. Returns nil if err is
// nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
