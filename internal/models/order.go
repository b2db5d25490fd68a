package models

import (
	"errors"
	"fmt"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	// StatusPending means the order is queued, waiting for the pizzaiolo.
	StatusPending OrderStatus = "PENDING"
	// StatusInProgress means the order is being prepared. At most one order
	// in the whole store may hold this status at any time.
	StatusInProgress OrderStatus = "IN_PROGRESS"
	// StatusCompleted is terminal: the pizza is ready.
	StatusCompleted OrderStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError,
// for use with errors.Is.
var ErrInvalidTransition = errors.New("invalid order status transition")

// InvalidTransitionError reports a forbidden status transition. It carries
// the status the order actually had so callers can explain the rejection.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Order is the aggregate root of the queue. Only Status changes after
// creation; Code is the externally addressable handle and ID doubles as the
// stable tie-break for orders created in the same instant.
type Order struct {
	ID           uint        `gorm:"primaryKey" json:"-"`
	Code         string      `gorm:"uniqueIndex;not null" json:"code"`
	CustomerName string      `gorm:"not null" json:"customerName"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt    time.Time   `gorm:"not null;index" json:"createdAt"`
	Items        []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is owned by its Order: created with it, never re-parented.
type OrderItem struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	OrderID   uint   `gorm:"not null;index" json:"-"`
	PizzaName string `gorm:"not null" json:"pizzaName"`
	Quantity  int    `gorm:"not null;default:1" json:"quantity"`
}

// Start moves the order from PENDING to IN_PROGRESS. The caller is
// responsible for holding the row lock and for re-checking the global
// single-active-order invariant before calling.
func (o *Order) Start() error {
	if o.Status != StatusPending {
		return &InvalidTransitionError{From: o.Status, To: StatusInProgress}
	}
	o.Status = StatusInProgress
	return nil
}

// Complete moves the order from IN_PROGRESS to COMPLETED. COMPLETED is
// terminal; completing twice fails like any other forbidden transition.
func (o *Order) Complete() error {
	if o.Status != StatusInProgress {
		return &InvalidTransitionError{From: o.Status, To: StatusCompleted}
	}
	o.Status = StatusCompleted
	return nil
}
