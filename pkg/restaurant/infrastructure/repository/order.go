package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"restaurant/pkg/restaurant/domain/model"
)

const selectOrders = `
	SELECT o.id, o.table_id, COALESCE(t.table_number, '') AS table_number, o.customer_id,
		o.status, o.total_amount, o.created_at
	FROM orders o
	LEFT JOIN tables t ON t.id = o.table_id`

const selectItems = `
	SELECT oi.id, oi.order_id, oi.product_id, p.name AS product_name, oi.quantity, oi.price, oi.note
	FROM order_items oi
	LEFT JOIN products p ON p.id = oi.product_id
	WHERE oi.order_id IN (?)
	ORDER BY oi.order_id, oi.id`

type orderRow struct {
	ID          int64         `db:"id"`
	TableID     int64         `db:"table_id"`
	TableNumber string        `db:"table_number"`
	CustomerID  sql.NullInt64 `db:"customer_id"`
	Status      string        `db:"status"`
	TotalAmount int64         `db:"total_amount"`
	CreatedAt   time.Time     `db:"created_at"`
}

type itemRow struct {
	ID          int64          `db:"id"`
	OrderID     int64          `db:"order_id"`
	ProductID   int64          `db:"product_id"`
	ProductName sql.NullString `db:"product_name"`
	Quantity    int            `db:"quantity"`
	Price       int64          `db:"price"`
	Note        sql.NullString `db:"note"`
}

func NewOrderRepository(db *sqlx.DB) model.OrderRepository {
	return &orderRepository{db: db, returning: usesReturning(db)}
}

type orderRepository struct {
	db        *sqlx.DB
	returning bool
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &model.PersistenceError{Op: "begin create order", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := time.Now().UTC().Truncate(time.Second)
	orderID, err := r.insert(ctx, tx,
		`INSERT INTO orders (table_id, customer_id, total_amount, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		order.TableID, nullInt64(order.CustomerID), order.TotalAmount, string(model.Pending), createdAt,
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert order", Err: err}
	}

	itemIDs := make([]int64, len(order.Items))
	for i, item := range order.Items {
		itemIDs[i], err = r.insert(ctx, tx,
			`INSERT INTO order_items (order_id, product_id, quantity, price, note) VALUES (?, ?, ?, ?, ?)`,
			orderID, item.ProductID, item.Quantity, item.UnitPrice, nullString(item.Note),
		)
		if err != nil {
			return &model.PersistenceError{Op: "insert order item", Err: err}
		}
	}

	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE tables SET status = ?, updated_at = ? WHERE id = ?`),
		string(model.TableOccupied), createdAt, order.TableID,
	)
	if err != nil {
		return &model.PersistenceError{Op: "occupy table", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &model.PersistenceError{Op: "occupy table", Err: err}
	}
	if affected == 0 {
		return model.ErrTableNotFound
	}

	if err := tx.Commit(); err != nil {
		return &model.PersistenceError{Op: "commit create order", Err: err}
	}

	order.ID = orderID
	order.Status = model.Pending
	order.CreatedAt = createdAt
	for i := range order.Items {
		order.Items[i].ID = itemIDs[i]
		order.Items[i].OrderID = orderID
	}
	return nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, check model.TransitionCheck) (model.StatusChange, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "begin update status", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var current struct {
		Status  string `db:"status"`
		TableID int64  `db:"table_id"`
	}
	err = tx.GetContext(ctx, &current, tx.Rebind(`SELECT status, table_id FROM orders WHERE id = ? FOR UPDATE`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StatusChange{}, model.ErrOrderNotFound
	}
	if err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "lock order", Err: err}
	}

	change := model.StatusChange{TableID: current.TableID, Previous: model.OrderStatus(current.Status)}
	if check != nil {
		if err := check(change.Previous); err != nil {
			return model.StatusChange{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE orders SET status = ? WHERE id = ?`), string(status), id); err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "update order status", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "commit update status", Err: err}
	}
	return change, nil
}

func (r *orderRepository) Find(ctx context.Context, id int64) (*model.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(selectOrders+` WHERE o.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrOrderNotFound
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "select order", Err: err}
	}

	orders, err := r.withItems(ctx, []orderRow{row})
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepository) FindByTable(ctx context.Context, tableID int64) ([]model.Order, error) {
	return r.query(ctx, "select table orders",
		selectOrders+` WHERE o.table_id = ? ORDER BY o.created_at DESC, o.id DESC`, tableID)
}

// FindActive returns pending and preparing orders, oldest first.
func (r *orderRepository) FindActive(ctx context.Context) ([]model.Order, error) {
	return r.query(ctx, "select active orders",
		selectOrders+` WHERE o.status IN (?, ?) ORDER BY o.created_at ASC, o.id ASC`,
		string(model.Pending), string(model.Preparing))
}

func (r *orderRepository) FindHistory(ctx context.Context, tableID *int64, limit int) ([]model.Order, error) {
	if tableID != nil {
		return r.query(ctx, "select order history",
			selectOrders+` WHERE o.table_id = ? ORDER BY o.created_at DESC, o.id DESC LIMIT ?`, *tableID, limit)
	}
	return r.query(ctx, "select order history",
		selectOrders+` ORDER BY o.created_at DESC, o.id DESC LIMIT ?`, limit)
}

func (r *orderRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]model.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, &model.PersistenceError{Op: op, Err: err}
	}
	return r.withItems(ctx, rows)
}

func (r *orderRepository) withItems(ctx context.Context, rows []orderRow) ([]model.Order, error) {
	orders := make([]model.Order, 0, len(rows))
	if len(rows) == 0 {
		return orders, nil
	}

	ids := make([]int64, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, row := range rows {
		index[row.ID] = len(orders)
		ids = append(ids, row.ID)
		orders = append(orders, row.toModel())
	}

	query, args, err := sqlx.In(selectItems, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand order item query")
	}

	var items []itemRow
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, &model.PersistenceError{Op: "select order items", Err: err}
	}
	for _, item := range items {
		i, ok := index[item.OrderID]
		if !ok {
			continue
		}
		orders[i].Items = append(orders[i].Items, item.toModel())
	}
	return orders, nil
}

// insert runs an INSERT and returns the generated id, using RETURNING where the driver needs it.
func (r *orderRepository) insert(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	if r.returning {
		var id int64
		err := tx.QueryRowxContext(ctx, tx.Rebind(query+` RETURNING id`), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (row orderRow) toModel() model.Order {
	order := model.Order{
		ID:          row.ID,
		TableID:     row.TableID,
		TableNumber: row.TableNumber,
		Status:      model.OrderStatus(row.Status),
		TotalAmount: row.TotalAmount,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.CustomerID.Valid {
		customerID := row.CustomerID.Int64
		order.CustomerID = &customerID
	}
	return order
}

func (row itemRow) toModel() model.Item {
	return model.Item{
		ID:          row.ID,
		OrderID:     row.OrderID,
		ProductID:   row.ProductID,
		ProductName: row.ProductName.String,
		Quantity:    row.Quantity,
		UnitPrice:   row.Price,
		Note:        row.Note.String,
	}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
