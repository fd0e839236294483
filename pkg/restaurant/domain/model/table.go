package model

import (
	"context"
	"errors"
)

var ErrTableNotFound = errors.New("table not found")

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

type Table struct {
	ID       int64
	Number   string
	Capacity int
	Status   TableStatus
}

type TableRepository interface {
	Find(ctx context.Context, id int64) (*Table, error)
}
