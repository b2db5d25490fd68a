package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
)

// DefaultLockTimeout bounds how long a caller may wait for a contended row
// lock before the operation fails with ErrLockTimeout.
const DefaultLockTimeout = 3000 * time.Millisecond

var (
	// ErrQueueEmpty means no PENDING order existed at lock time.
	ErrQueueEmpty = errors.New("no pending orders in queue")

	// ErrLockTimeout means the row lock could not be acquired within the
	// configured wait. Transient: the caller may retry.
	ErrLockTimeout = errors.New("timed out waiting for order lock")

	// ErrStoreUnavailable wraps driver-level failures. Transient: the caller
	// may retry.
	ErrStoreUnavailable = errors.New("order store unavailable")

	// ErrOrderNotFound is the sentinel wrapped by OrderNotFoundError.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderNotFoundError reports a lookup for a code that does not exist.
type OrderNotFoundError struct {
	Code string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order not found: %s", e.Code)
}

func (e *OrderNotFoundError) Unwrap() error {
	return ErrOrderNotFound
}

// OrderStore is the durable storage the queue service runs against. The
// store, not any in-process structure, is the synchronization authority: the
// service may be horizontally replicated, so every locking primitive here is
// backed by the storage engine itself.
type OrderStore interface {
	// Append persists a brand new order. Creation never contends with other
	// operations on the same row, so no locking is involved.
	Append(ctx context.Context, order *models.Order) error

	// FindByCode is a non-locking read. It may observe stale state relative
	// to a transition that is concurrently in flight, but never a partially
	// applied mutation.
	FindByCode(ctx context.Context, code string) (*models.Order, error)

	// FindByStatus lists orders with the given status, oldest first
	// (created_at ASC, insertion sequence as tie-break), bounded by limit.
	// limit <= 0 means no bound.
	FindByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error)

	// CountByStatus reports how many orders currently hold the given status.
	CountByStatus(ctx context.Context, status models.OrderStatus) (int64, error)

	// Begin opens the transactional scope in which row locks live.
	Begin(ctx context.Context) (OrderTx, error)
}

// OrderTx is one atomic unit of work: acquire, validate, mutate, persist,
// release. Row locks acquired through it are held until Commit or Rollback.
type OrderTx interface {
	// LockOldestPending acquires an exclusive lock on the chronologically
	// oldest PENDING order. Contenders for the same row block until the lock
	// is released, bounded by the store's lock timeout (ErrLockTimeout).
	// Returns ErrQueueEmpty if no PENDING order exists at lock time.
	LockOldestPending(ctx context.Context) (*models.Order, error)

	// LockByCode acquires the same exclusive lock on one specific order.
	LockByCode(ctx context.Context, code string) (*models.Order, error)

	// ExistsWithStatus is a live check executed inside this lock scope. It
	// observes every transaction committed strictly before it runs; a caller
	// that waited on a row lock sees the winner's committed state.
	ExistsWithStatus(ctx context.Context, status models.OrderStatus) (bool, error)

	// Save persists the status mutation of an order locked in this scope.
	Save(ctx context.Context, order *models.Order) error

	// Commit makes staged mutations durable and releases all row locks.
	Commit() error

	// Rollback discards staged mutations and releases all row locks.
	Rollback() error
}
