package services

import (
	"context"
	"errors"
	"strings"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/awesomepizza/gin-order-queue/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrOrderAlreadyActive is returned by DequeueNext when another order is
// already being prepared. At most one order may be IN_PROGRESS at any time.
var ErrOrderAlreadyActive = errors.New("an order is already in progress")

// OrderQueueService implements the pizzeria's order lifecycle: customers
// submit orders that queue up as PENDING, the pizzaiolo pulls the oldest one
// into IN_PROGRESS and marks it COMPLETED when the pizzas go out.
type OrderQueueService interface {
	// SubmitOrder persists a new order as PENDING and assigns it a tracking
	// code. The caller provides customer name and items; everything else is
	// filled in here.
	SubmitOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrder retrieves an order with its items by tracking code.
	GetOrder(ctx context.Context, code string) (*models.Order, error)
	// GetStatus retrieves just the current status of an order.
	GetStatus(ctx context.Context, code string) (models.OrderStatus, error)
	// ListPending returns the pending queue in preparation order. A non-zero
	// limit caps the result.
	ListPending(ctx context.Context, limit int) ([]models.Order, error)
	// DequeueNext transitions the oldest pending order to IN_PROGRESS and
	// returns it. Fails with ErrOrderAlreadyActive when a preparation is
	// already underway and store.ErrQueueEmpty when there is nothing to pull.
	DequeueNext(ctx context.Context) (*models.Order, error)
	// CompleteOrder transitions the order with the given code from
	// IN_PROGRESS to COMPLETED, freeing the pizzaiolo for the next one.
	CompleteOrder(ctx context.Context, code string) (*models.Order, error)
}

type orderQueueService struct {
	store        store.OrderStore
	generateCode func() string
	log          *logrus.Logger
}

// NewOrderQueueService creates an OrderQueueService on top of the given
// store. generateCode may be nil, in which case tracking codes are derived
// from random UUIDs.
func NewOrderQueueService(orderStore store.OrderStore, generateCode func() string) OrderQueueService {
	if generateCode == nil {
		generateCode = DefaultCodeGenerator
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &orderQueueService{
		store:        orderStore,
		generateCode: generateCode,
		log:          logger,
	}
}

// DefaultCodeGenerator produces tracking codes like "PZ-1A2B3C4D".
func DefaultCodeGenerator() string {
	id := uuid.New().String()
	return "PZ-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
}

func (s *orderQueueService) SubmitOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.Code = s.generateCode()
	order.Status = models.StatusPending

	if err := s.store.Append(ctx, order); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"code":     order.Code,
		"customer": order.CustomerName,
		"items":    len(order.Items),
	}).Info("Order submitted")
	return order, nil
}

func (s *orderQueueService) GetOrder(ctx context.Context, code string) (*models.Order, error) {
	return s.store.FindByCode(ctx, code)
}

func (s *orderQueueService) GetStatus(ctx context.Context, code string) (models.OrderStatus, error) {
	order, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

func (s *orderQueueService) ListPending(ctx context.Context, limit int) ([]models.Order, error) {
	return s.store.FindByStatus(ctx, models.StatusPending, limit)
}

func (s *orderQueueService) DequeueNext(ctx context.Context) (*models.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock first: an empty queue is reported as such even while another
	// order is being prepared.
	order, err := tx.LockOldestPending(ctx)
	if err != nil {
		return nil, err
	}

	// Check while holding the row lock. The lock only covers this row, so a
	// concurrent dequeue of a different row is possible; whichever
	// transaction committed before this statement is visible here.
	active, err := tx.ExistsWithStatus(ctx, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrOrderAlreadyActive
	}

	if err := order.Start(); err != nil {
		return nil, err
	}
	if err := tx.Save(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithField("code", order.Code).Info("Order moved to preparation")
	return order, nil
}

func (s *orderQueueService) CompleteOrder(ctx context.Context, code string) (*models.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := tx.LockByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := order.Complete(); err != nil {
		return nil, err
	}
	if err := tx.Save(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.WithField("code", order.Code).Info("Order completed")
	return order, nil
}
