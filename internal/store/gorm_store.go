package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// GormOrderStore implements OrderStore on a relational database through GORM.
// Row locks are plain SELECT ... FOR UPDATE, so the locking semantics are the
// database's own: contenders for the same row block until the holding
// transaction commits or aborts. ExistsWithStatus runs as an ordinary
// statement under READ COMMITTED and therefore observes every transaction
// committed before it, which is what callers re-checking the queue while
// holding a row lock rely on.
type GormOrderStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormOrderStore creates a store around an open GORM connection.
// lockTimeout <= 0 falls back to DefaultLockTimeout.
func NewGormOrderStore(db *gorm.DB, lockTimeout time.Duration) *GormOrderStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &GormOrderStore{db: db, lockTimeout: lockTimeout}
}

func (s *GormOrderStore) Append(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *GormOrderStore) FindByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("code = ?", code).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &OrderNotFoundError{Code: code}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &order, nil
}

func (s *GormOrderStore) FindByStatus(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	q := s.db.WithContext(ctx).Preload("Items").
		Where("status = ?", status).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return orders, nil
}

func (s *GormOrderStore) CountByStatus(ctx context.Context, status models.OrderStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

func (s *GormOrderStore) Begin(ctx context.Context) (OrderTx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, tx.Error)
	}

	// Bound lock waits at the session level. PostgreSQL raises SQLSTATE 55P03
	// when the timeout elapses; SQLite serializes writers on its own and is
	// bounded by the busy_timeout pragma set at connection time.
	if tx.Dialector.Name() == "postgres" {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if err := tx.Exec(timeout).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return &gormOrderTx{tx: tx}, nil
}

type gormOrderTx struct {
	tx *gorm.DB
}

func (t *gormOrderTx) LockOldestPending(ctx context.Context) (*models.Order, error) {
	var order models.Order
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC, id ASC").
		First(&order).Error
	if err != nil {
		return nil, mapLockError(err, ErrQueueEmpty)
	}
	if err := t.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *gormOrderTx) LockByCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&order).Error
	if err != nil {
		return nil, mapLockError(err, &OrderNotFoundError{Code: code})
	}
	if err := t.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (t *gormOrderTx) ExistsWithStatus(ctx context.Context, status models.OrderStatus) (bool, error) {
	var count int64
	err := t.tx.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

func (t *gormOrderTx) Save(ctx context.Context, order *models.Order) error {
	result := t.tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("status", order.Status)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return &OrderNotFoundError{Code: order.Code}
	}
	return nil
}

func (t *gormOrderTx) Commit() error {
	if err := t.tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (t *gormOrderTx) Rollback() error {
	if err := t.tx.Rollback().Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// loadItems fetches the owned items inside the transaction. The lock query
// itself runs without Preload so that FOR UPDATE stays on the orders table.
func (t *gormOrderTx) loadItems(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItem, 0)
	err := t.tx.WithContext(ctx).Where("order_id = ?", order.ID).Order("id ASC").Find(&items).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	order.Items = items
	return nil
}

// mapLockError translates driver errors from a locking query: record-not-found
// becomes the query-specific outcome (empty queue or unknown code), a lock
// wait timeout becomes ErrLockTimeout and anything else is a store failure.
func mapLockError(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		log.WithField("sqlstate", pgErr.Code).Warn("Lock wait timed out")
		return ErrLockTimeout
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
