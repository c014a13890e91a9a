package searchcore

import "github.com/pkg/errors"

var (
	// ErrShouldBeDeleted is returned by a ReferenceSource when the entity's
	// current state means it must no longer be indexed (removed, made
	// private, and so on). The indexer converts the operation to a delete.
	ErrShouldBeDeleted = errors.New("document should be deleted instead of indexed")

	// ErrUnsupportedOperation is returned by Process for an operation
	// outside {index, upsert, delete}. Fatal, never retried.
	ErrUnsupportedOperation = errors.New("unsupported bulk operation")
)
