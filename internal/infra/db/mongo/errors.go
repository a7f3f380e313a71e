package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"stationbeds/internal/domain/shared/failure"
)

const writeConflictCode = 112

// ErrConcurrentUpdate is returned when a versioned save finds a newer document.
var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", failure.ErrConcurrencyConflict)

// mapWriteError turns transaction write conflicts into the domain conflict error.
// Conflicts are reported to the caller, not retried.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError")) {
		return fmt.Errorf("%w: %v", failure.ErrConcurrencyConflict, err)
	}
	return err
}
