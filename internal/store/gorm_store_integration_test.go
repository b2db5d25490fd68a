package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/awesomepizza/gin-order-queue/internal/store"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormOrderStoreIntegrationTestSuite exercises the store against a real
// PostgreSQL container, the only place the FOR UPDATE and lock_timeout
// behavior can actually be observed.
type GormOrderStoreIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	store     *store.GormOrderStore
}

func (suite *GormOrderStoreIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&models.Order{}, &models.OrderItem{}))
}

func (suite *GormOrderStoreIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE order_items, orders RESTART IDENTITY").Error)
	suite.store = store.NewGormOrderStore(suite.db, 500*time.Millisecond)
}

func (suite *GormOrderStoreIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *GormOrderStoreIntegrationTestSuite) submitOrder(code string, createdAt time.Time) *models.Order {
	order := &models.Order{
		Code:         code,
		CustomerName: "Mario Rossi",
		Status:       models.StatusPending,
		CreatedAt:    createdAt,
		Items: []models.OrderItem{
			{PizzaName: "Margherita", Quantity: 2},
		},
	}
	suite.Require().NoError(suite.store.Append(context.Background(), order))
	return order
}

func (suite *GormOrderStoreIntegrationTestSuite) TestAppendAndFindByCode() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	found, err := suite.store.FindByCode(ctx, "PZ-001")
	suite.Require().NoError(err)
	suite.Equal("PZ-001", found.Code)
	suite.Equal(models.StatusPending, found.Status)
	suite.Require().Len(found.Items, 1)
	suite.Equal("Margherita", found.Items[0].PizzaName)
	suite.Equal(2, found.Items[0].Quantity)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestFindByCodeNotFound() {
	_, err := suite.store.FindByCode(context.Background(), "PZ-404")
	suite.Require().Error(err)
	suite.ErrorIs(err, store.ErrOrderNotFound)

	var notFound *store.OrderNotFoundError
	suite.Require().ErrorAs(err, &notFound)
	suite.Equal("PZ-404", notFound.Code)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestFindByStatusReturnsArrivalOrder() {
	ctx := context.Background()
	base := time.Now().Truncate(time.Microsecond)
	suite.submitOrder("PZ-002", base.Add(time.Minute))
	suite.submitOrder("PZ-001", base)
	suite.submitOrder("PZ-003", base.Add(2*time.Minute))

	pending, err := suite.store.FindByStatus(ctx, models.StatusPending, 0)
	suite.Require().NoError(err)
	suite.Require().Len(pending, 3)
	suite.Equal("PZ-001", pending[0].Code)
	suite.Equal("PZ-002", pending[1].Code)
	suite.Equal("PZ-003", pending[2].Code)

	limited, err := suite.store.FindByStatus(ctx, models.StatusPending, 1)
	suite.Require().NoError(err)
	suite.Require().Len(limited, 1)
	suite.Equal("PZ-001", limited[0].Code)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestLockOldestPendingEmptyQueue() {
	ctx := context.Background()

	tx, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)
	defer tx.Rollback()

	_, err = tx.LockOldestPending(ctx)
	suite.ErrorIs(err, store.ErrQueueEmpty)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestTransitionPersistsOnCommit() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	tx, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)

	order, err := tx.LockOldestPending(ctx)
	suite.Require().NoError(err)
	suite.Equal("PZ-001", order.Code)

	suite.Require().NoError(order.Start())
	suite.Require().NoError(tx.Save(ctx, order))
	suite.Require().NoError(tx.Commit())

	persisted, err := suite.store.FindByCode(ctx, "PZ-001")
	suite.Require().NoError(err)
	suite.Equal(models.StatusInProgress, persisted.Status)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestRollbackLeavesRowUntouched() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	tx, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)

	order, err := tx.LockOldestPending(ctx)
	suite.Require().NoError(err)
	suite.Require().NoError(order.Start())
	suite.Require().NoError(tx.Save(ctx, order))
	suite.Require().NoError(tx.Rollback())

	persisted, err := suite.store.FindByCode(ctx, "PZ-001")
	suite.Require().NoError(err)
	suite.Equal(models.StatusPending, persisted.Status)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestExistsWithStatusSeesCommittedState() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	tx, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)
	defer tx.Rollback()

	active, err := tx.ExistsWithStatus(ctx, models.StatusInProgress)
	suite.Require().NoError(err)
	suite.False(active)

	pending, err := tx.ExistsWithStatus(ctx, models.StatusPending)
	suite.Require().NoError(err)
	suite.True(pending)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestLockTimeoutOnContendedRow() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	holder, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)
	defer holder.Rollback()

	_, err = holder.LockByCode(ctx, "PZ-001")
	suite.Require().NoError(err)

	// NOWAIT is deliberately not used; the second transaction must block and
	// then time out through lock_timeout.
	waiter, err := suite.store.Begin(ctx)
	suite.Require().NoError(err)
	defer waiter.Rollback()

	_, err = waiter.LockByCode(ctx, "PZ-001")
	suite.ErrorIs(err, store.ErrLockTimeout)
}

func (suite *GormOrderStoreIntegrationTestSuite) TestConcurrentDequeueSingleWinner() {
	ctx := context.Background()
	suite.submitOrder("PZ-001", time.Now())

	const contenders = 5
	type outcome struct {
		code string
		err  error
	}
	results := make(chan outcome, contenders)

	for i := 0; i < contenders; i++ {
		go func() {
			tx, err := suite.store.Begin(ctx)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			order, err := tx.LockOldestPending(ctx)
			if err != nil {
				tx.Rollback()
				results <- outcome{err: err}
				return
			}
			if err := order.Start(); err != nil {
				tx.Rollback()
				results <- outcome{err: err}
				return
			}
			if err := tx.Save(ctx, order); err != nil {
				tx.Rollback()
				results <- outcome{err: err}
				return
			}
			if err := tx.Commit(); err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{code: order.Code}
		}()
	}

	var winners int
	for i := 0; i < contenders; i++ {
		res := <-results
		if res.err == nil {
			winners++
			suite.Equal("PZ-001", res.code)
			continue
		}
		// Losers either found the queue drained after the winner committed
		// or gave up waiting for the row lock.
		suite.Truef(
			errors.Is(res.err, store.ErrQueueEmpty) || errors.Is(res.err, store.ErrLockTimeout),
			"unexpected loser error: %v", res.err,
		)
	}
	suite.Equal(1, winners)

	final, err := suite.store.FindByCode(ctx, "PZ-001")
	suite.Require().NoError(err)
	suite.Equal(models.StatusInProgress, final.Status)
}

func TestGormOrderStoreIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed integration tests in short mode")
	}
	suite.Run(t, new(GormOrderStoreIntegrationTestSuite))
}
