package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
)

// MemoryOrderStore implements OrderStore with in-process state. It reproduces
// the behavior the service relies on from a real database: per-row exclusive
// locks that block contenders until release, bounded lock waits that fail
// with ErrLockTimeout, and reads that only ever observe committed state.
// Mutations made through a transaction are staged and become visible to other
// readers atomically on Commit.
//
// It backs the development profile and the service tests; production runs on
// GormOrderStore.
type MemoryOrderStore struct {
	mu          sync.Mutex
	nextID      uint
	orders      []*models.Order
	byCode      map[string]*models.Order
	locks       map[uint]chan struct{}
	lockTimeout time.Duration
}

// NewMemoryOrderStore creates an empty store. lockTimeout <= 0 falls back to
// DefaultLockTimeout.
func NewMemoryOrderStore(lockTimeout time.Duration) *MemoryOrderStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &MemoryOrderStore{
		byCode:      make(map[string]*models.Order),
		locks:       make(map[uint]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (s *MemoryOrderStore) Append(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCode[order.Code]; exists {
		return fmt.Errorf("%w: duplicate order code %q", ErrStoreUnavailable, order.Code)
	}

	s.nextID++
	order.ID = s.nextID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	for i := range order.Items {
		order.Items[i].ID = uint(i + 1)
		order.Items[i].OrderID = order.ID
	}

	row := cloneOrder(order)
	s.orders = append(s.orders, row)
	s.byCode[row.Code] = row
	return nil
}

func (s *MemoryOrderStore) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byCode[code]
	if !ok {
		return nil, &OrderNotFoundError{Code: code}
	}
	return cloneOrder(row), nil
}

func (s *MemoryOrderStore) FindByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]models.Order, 0)
	for _, row := range s.orders {
		if row.Status == status {
			matches = append(matches, *cloneOrder(row))
		}
	}
	sortByArrival(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryOrderStore) CountByStatus(ctx context.Context, status models.OrderStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, row := range s.orders {
		if row.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryOrderStore) Begin(ctx context.Context) (OrderTx, error) {
	return &memoryOrderTx{
		store:    s,
		deadline: time.Now().Add(s.lockTimeout),
		held:     make(map[uint]struct{}),
		staged:   make(map[uint]models.OrderStatus),
	}, nil
}

// rowLock returns the capacity-1 channel guarding the given row, creating it
// on first use. Sending into the channel acquires the lock, draining releases.
func (s *MemoryOrderStore) rowLock(id uint) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

type memoryOrderTx struct {
	store    *MemoryOrderStore
	deadline time.Time
	held     map[uint]struct{}
	staged   map[uint]models.OrderStatus
	done     bool
}

func (t *memoryOrderTx) LockOldestPending(ctx context.Context) (*models.Order, error) {
	for {
		candidate := t.oldestPending()
		if candidate == 0 {
			return nil, ErrQueueEmpty
		}

		if err := t.acquire(ctx, candidate); err != nil {
			return nil, err
		}

		// The row may have been transitioned by whoever held the lock while
		// we waited. Re-read committed state and move on if it is no longer
		// pending.
		row := t.committedRow(candidate)
		if row != nil && row.Status == models.StatusPending {
			return row, nil
		}
		t.release(candidate)
	}
}

func (t *memoryOrderTx) LockByCode(ctx context.Context, code string) (*models.Order, error) {
	t.store.mu.Lock()
	row, ok := t.store.byCode[code]
	var id uint
	if ok {
		id = row.ID
	}
	t.store.mu.Unlock()

	if !ok {
		return nil, &OrderNotFoundError{Code: code}
	}
	if err := t.acquire(ctx, id); err != nil {
		return nil, err
	}
	return t.committedRow(id), nil
}

func (t *memoryOrderTx) ExistsWithStatus(ctx context.Context, status models.OrderStatus) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, row := range t.store.orders {
		if row.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryOrderTx) Save(ctx context.Context, order *models.Order) error {
	if t.committedRow(order.ID) == nil {
		return &OrderNotFoundError{Code: order.Code}
	}
	t.staged[order.ID] = order.Status
	return nil
}

func (t *memoryOrderTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	for id, status := range t.staged {
		for _, row := range t.store.orders {
			if row.ID == id {
				row.Status = status
				break
			}
		}
	}
	t.store.mu.Unlock()

	t.releaseAll()
	return nil
}

func (t *memoryOrderTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.staged = nil
	t.releaseAll()
	return nil
}

// acquire takes the row lock, waiting at most until the transaction deadline.
func (t *memoryOrderTx) acquire(ctx context.Context, id uint) error {
	if _, have := t.held[id]; have {
		return nil
	}

	remaining := time.Until(t.deadline)
	if remaining <= 0 {
		return ErrLockTimeout
	}

	ch := t.store.rowLock(id)
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		t.held[id] = struct{}{}
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	}
}

func (t *memoryOrderTx) release(id uint) {
	if _, have := t.held[id]; !have {
		return
	}
	delete(t.held, id)
	<-t.store.rowLock(id)
}

func (t *memoryOrderTx) releaseAll() {
	for id := range t.held {
		delete(t.held, id)
		<-t.store.rowLock(id)
	}
}

// oldestPending returns the ID of the earliest-arrived committed pending row,
// or zero when the queue is empty.
func (t *memoryOrderTx) oldestPending() uint {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var oldest *models.Order
	for _, row := range t.store.orders {
		if row.Status != models.StatusPending {
			continue
		}
		if oldest == nil || arrivedBefore(row, oldest) {
			oldest = row
		}
	}
	if oldest == nil {
		return 0
	}
	return oldest.ID
}

func (t *memoryOrderTx) committedRow(id uint) *models.Order {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, row := range t.store.orders {
		if row.ID == id {
			return cloneOrder(row)
		}
	}
	return nil
}

func arrivedBefore(a, b *models.Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func sortByArrival(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return arrivedBefore(&orders[i], &orders[j])
	})
}

func cloneOrder(o *models.Order) *models.Order {
	clone := *o
	clone.Items = make([]models.OrderItem, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}
