// Package guard bounds every store call with a timeout and a circuit breaker,
// and folds connectivity failures into model.ErrStoreUnavailable.
package guard

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/marketplace-admin/internal/model"
)

type Guard struct {
	timeout time.Duration
	br      *Breaker
}

func New(timeout time.Duration, br *Breaker) *Guard {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if br == nil {
		br = NewBreaker(0, 0)
	}
	return &Guard{timeout: timeout, br: br}
}

func (g *Guard) Timeout() time.Duration { return g.timeout }

// Do runs fn under the store timeout. Unavailability errors trip the breaker
// and come back wrapped in model.ErrStoreUnavailable; domain errors pass through.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.br.TryAcquire() {
		return fmt.Errorf("%w: circuit open", model.ErrStoreUnavailable)
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(cctx)
	switch {
	case err == nil:
		g.br.OnSuccess()
		return nil
	case ctx.Err() != nil:
		// caller went away, not the store's fault
		g.br.Release()
		return err
	case IsUnavailable(err):
		g.br.OnFailure()
		if errors.Is(err, model.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	default:
		g.br.OnSuccess()
		return err
	}
}

// IsUnavailable classifies timeouts and connection-level failures.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, model.ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
