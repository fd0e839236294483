package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidTransition  = errors.New("order status transition is not allowed")
	ErrOperationFailed    = errors.New("operation failed")
	ErrPersistence        = errors.New("persistence failure")
	ErrUnknownOrderStatus = errors.New("unknown order status")
	ErrAmountOverflow     = errors.New("order amount out of range")
)

type OrderStatus string

const (
	Pending   OrderStatus = "pending"
	Preparing OrderStatus = "preparing"
	Ready     OrderStatus = "ready"
	Served    OrderStatus = "served"
)

var statusRank = map[OrderStatus]int{
	Pending:   0,
	Preparing: 1,
	Ready:     2,
	Served:    3,
}

// ParseOrderStatus accepts only the statuses the kitchen and table views understand.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := statusRank[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, s)
	}
	return status, nil
}

// Active reports whether the kitchen still has work to do on the order.
func (s OrderStatus) Active() bool {
	return s == Pending || s == Preparing
}

// Precedes reports whether next is strictly later than s in pending → preparing → ready → served.
func (s OrderStatus) Precedes(next OrderStatus) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

type Order struct {
	ID          int64
	TableID     int64
	TableNumber string
	CustomerID  *int64
	Status      OrderStatus
	Items       []Item
	// TotalAmount is in minor currency units.
	TotalAmount int64
	CreatedAt   time.Time
}

type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	// UnitPrice is captured when the order is placed, in minor currency units.
	UnitPrice int64
	Note      string
}

func (i Item) Subtotal() (int64, error) {
	if i.Quantity < 0 || i.UnitPrice < 0 {
		return 0, ErrAmountOverflow
	}
	if i.Quantity != 0 && i.UnitPrice > math.MaxInt64/int64(i.Quantity) {
		return 0, ErrAmountOverflow
	}
	return i.UnitPrice * int64(i.Quantity), nil
}

// SumItems fails with ErrAmountOverflow instead of wrapping around.
func SumItems(items []Item) (int64, error) {
	var total int64
	for _, item := range items {
		subtotal, err := item.Subtotal()
		if err != nil {
			return 0, err
		}
		if subtotal > math.MaxInt64-total {
			return 0, ErrAmountOverflow
		}
		total += subtotal
	}
	return total, nil
}

// StatusChange is what the store saw on the locked row before writing the new status.
type StatusChange struct {
	TableID  int64
	Previous OrderStatus
}

// TransitionCheck is evaluated by the store against the locked current status
// before a status update is written.
type TransitionCheck func(current OrderStatus) error

type OrderRepository interface {
	// Create writes the order header, its items and marks the table occupied in one transaction.
	// On success order.ID and order.CreatedAt are set.
	Create(ctx context.Context, order *Order) error
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, check TransitionCheck) (StatusChange, error)
	Find(ctx context.Context, id int64) (*Order, error)
	FindByTable(ctx context.Context, tableID int64) ([]Order, error)
	FindActive(ctx context.Context) ([]Order, error)
	FindHistory(ctx context.Context, tableID *int64, limit int) ([]Order, error)
}

// PersistenceError reports a failed write or read against the order store.
// The underlying driver error stays available for logs through Unwrap.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
