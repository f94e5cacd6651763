package repository

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"

	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/lib/pq"
)

// storeErr classifies infrastructure failures (timeouts, dead
// connections) as ErrStoreUnavailable so callers know the error is
// transient and retryable. Business and constraint errors pass through.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, driver.ErrBadConn),
		stderrors.As(err, &netErr):
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "23505"
}
