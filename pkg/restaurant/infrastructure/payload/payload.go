// Package payload holds the JSON shapes shared by the REST API, WebSocket sessions and the broker mirror.
package payload

import (
	"time"

	"restaurant/pkg/restaurant/domain/model"
)

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusUpdated = "order_status_updated"
	EventOrderError         = "order_error"
	EventStaffCall          = "staff_call"
	EventCustomerCall       = "customer_call"
)

type Order struct {
	ID          int64     `json:"id"`
	TableID     int64     `json:"table_id"`
	TableNumber string    `json:"table_number,omitempty"`
	CustomerID  *int64    `json:"customer_id"`
	TotalAmount int64     `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Items       []Item    `json:"items"`
}

type Item struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	Note        string `json:"note,omitempty"`
}

// StatusUpdate is the order as it is after the change, plus where it came from.
type StatusUpdate struct {
	Order
	PreviousStatus string `json:"previous_status"`
}

type StaffCall struct {
	TableID   int64     `json:"table_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type CustomerCall struct {
	TableID   int64     `json:"table_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func NewOrder(o model.Order) Order {
	items := make([]Item, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, Item{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
			Note:        item.Note,
		})
	}
	return Order{
		ID:          o.ID,
		TableID:     o.TableID,
		TableNumber: o.TableNumber,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		Items:       items,
	}
}

func NewOrders(orders []model.Order) []Order {
	result := make([]Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, NewOrder(o))
	}
	return result
}

// FromEvent maps a domain event to its wire name and body. ok is false for events that have no wire form.
func FromEvent(event interface{ Type() string }) (name string, body interface{}, ok bool) {
	switch e := event.(type) {
	case model.OrderCreated:
		return EventOrderCreated, NewOrder(e.Order), true
	case model.OrderStatusChanged:
		return EventOrderStatusUpdated, StatusUpdate{Order: NewOrder(e.Order), PreviousStatus: string(e.PreviousStatus)}, true
	case model.StaffCalled:
		return EventStaffCall, StaffCall{TableID: e.TableID, Reason: e.Reason, Timestamp: e.At}, true
	case model.CustomerCalled:
		return EventCustomerCall, CustomerCall{TableID: e.TableID, Timestamp: e.At}, true
	default:
		return "", nil, false
	}
}
