package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"restaurant/pkg/restaurant/domain/model"
)

type tableRow struct {
	ID       int64  `db:"id"`
	Number   string `db:"table_number"`
	Capacity int    `db:"capacity"`
	Status   string `db:"status"`
}

func NewTableRepository(db *sqlx.DB) model.TableRepository {
	return &tableRepository{db: db}
}

type tableRepository struct {
	db *sqlx.DB
}

func (r *tableRepository) Find(ctx context.Context, id int64) (*model.Table, error) {
	var row tableRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind(`SELECT id, table_number, capacity, status FROM tables WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTableNotFound
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "select table", Err: err}
	}
	return &model.Table{
		ID:       row.ID,
		Number:   row.Number,
		Capacity: row.Capacity,
		Status:   model.TableStatus(row.Status),
	}, nil
}
