package model

import "time"

type OrderCreated struct {
	Order Order
}

func (e OrderCreated) Type() string { return "OrderCreated" }

type OrderStatusChanged struct {
	Order          Order
	PreviousStatus OrderStatus
}

func (e OrderStatusChanged) Type() string { return "OrderStatusChanged" }

type StaffCalled struct {
	TableID int64
	Reason  string
	At      time.Time
}

func (e StaffCalled) Type() string { return "StaffCalled" }

type CustomerCalled struct {
	TableID int64
	At      time.Time
}

func (e CustomerCalled) Type() string { return "CustomerCalled" }
