package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/model"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	maxReasonLength     = 255
)

// tableCache is implemented by table repositories that keep copies of table rows.
type tableCache interface {
	Invalidate(ctx context.Context, tableID int64)
}

type Event interface {
	Type() string
}

type EventDispatcher interface {
	Dispatch(event Event) error
}

type SubmitOrderRequest struct {
	TableID    int64        `validate:"gt=0"`
	CustomerID *int64       `validate:"omitempty,gt=0"`
	Items      []SubmitItem `validate:"required,min=1,max=100,dive"`
	// TotalAmount is optional; when set it must equal the sum of the items.
	TotalAmount int64 `validate:"gte=0"`
}

type SubmitItem struct {
	ProductID int64  `validate:"gt=0"`
	Quantity  int    `validate:"gt=0,lte=1000"`
	UnitPrice int64  `validate:"gte=0,lte=1000000000000"`
	Note      string `validate:"max=255"`
}

type Options struct {
	// StrictTransitions only lets an order move forward through
	// pending → preparing → ready → served.
	StrictTransitions bool
}

type OrderService interface {
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*model.Order, error)
	ChangeStatus(ctx context.Context, orderID int64, status string) (model.OrderStatusChanged, error)

	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListTableOrders(ctx context.Context, tableID int64) ([]model.Order, error)
	ListKitchenOrders(ctx context.Context) ([]model.Order, error)
	ListHistory(ctx context.Context, tableID *int64, limit int) ([]model.Order, error)

	CallStaff(ctx context.Context, tableID int64, reason string) error
	CallService(ctx context.Context, tableID int64) error
}

func NewOrderService(repo model.OrderRepository, tables model.TableRepository, dispatcher EventDispatcher, opts Options) OrderService {
	return &orderService{
		repo:       repo,
		tables:     tables,
		dispatcher: dispatcher,
		opts:       opts,
		validate:   validator.New(),
		orderLocks: newKeyedMutex(),
		tableLocks: newKeyedMutex(),
	}
}

type orderService struct {
	repo       model.OrderRepository
	tables     model.TableRepository
	dispatcher EventDispatcher
	opts       Options
	validate   *validator.Validate
	orderLocks *keyedMutex
	// tableLocks keeps order_created ahead of any status event for the same order:
	// submissions hold it from insert to dispatch, status changes take it to dispatch.
	tableLocks *keyedMutex
}

func (s *orderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*model.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	items := make([]model.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Note:      strings.TrimSpace(item.Note),
		})
	}

	total, err := model.SumItems(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidRequest, err)
	}
	if req.TotalAmount != 0 && req.TotalAmount != total {
		return nil, invalidRequestf("total_amount %d does not match items total %d", req.TotalAmount, total)
	}

	table, err := s.tables.Find(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, model.ErrTableNotFound) {
			return nil, invalidRequestf("table %d does not exist", req.TableID)
		}
		return nil, s.failure("find table", err, log.Fields{"table_id": req.TableID})
	}

	order := &model.Order{
		TableID:     table.ID,
		TableNumber: table.Number,
		CustomerID:  req.CustomerID,
		Status:      model.Pending,
		Items:       items,
		TotalAmount: total,
	}

	unlock := s.tableLocks.Lock(table.ID)
	defer unlock()

	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, model.ErrTableNotFound) {
			return nil, invalidRequestf("table %d does not exist", req.TableID)
		}
		return nil, s.failure("create order", err, log.Fields{"table_id": req.TableID})
	}

	if cache, ok := s.tables.(tableCache); ok {
		cache.Invalidate(ctx, table.ID)
	}

	created := order
	if reloaded, err := s.repo.Find(ctx, order.ID); err == nil {
		created = reloaded
	} else {
		log.WithError(err).WithField("order_id", order.ID).Warn("could not reload created order, publishing submitted copy")
	}

	log.WithFields(log.Fields{
		"order_id": created.ID,
		"table_id": created.TableID,
		"items":    len(created.Items),
		"total":    created.TotalAmount,
	}).Info("order created")

	s.dispatch(model.OrderCreated{Order: *created})
	return created, nil
}

func (s *orderService) ChangeStatus(ctx context.Context, orderID int64, status string) (model.OrderStatusChanged, error) {
	if orderID <= 0 {
		return model.OrderStatusChanged{}, invalidRequestf("order id must be positive")
	}
	newStatus, err := model.ParseOrderStatus(status)
	if err != nil {
		return model.OrderStatusChanged{}, fmt.Errorf("%w: %w", model.ErrInvalidRequest, err)
	}

	// Held until the event is handed to the dispatcher so that events for one
	// order leave in the same order their updates were committed.
	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	change, err := s.repo.UpdateStatus(ctx, orderID, newStatus, s.transitionCheck(newStatus))
	if err != nil {
		return model.OrderStatusChanged{}, s.failure("update order status", err, log.Fields{"order_id": orderID, "status": newStatus})
	}

	event := model.OrderStatusChanged{
		Order:          model.Order{ID: orderID, TableID: change.TableID, Status: newStatus},
		PreviousStatus: change.Previous,
	}
	if order, err := s.repo.Find(ctx, orderID); err == nil {
		event.Order = *order
	} else {
		log.WithError(err).WithField("order_id", orderID).Warn("status updated but order could not be reloaded, publishing without items")
	}

	log.WithFields(log.Fields{
		"order_id": orderID,
		"table_id": change.TableID,
		"from":     change.Previous,
		"to":       newStatus,
	}).Info("order status changed")

	release := s.tableLocks.Lock(change.TableID)
	s.dispatch(event)
	release()
	return event, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, s.failure("find order", err, log.Fields{"order_id": orderID})
	}
	return order, nil
}

func (s *orderService) ListTableOrders(ctx context.Context, tableID int64) ([]model.Order, error) {
	if tableID <= 0 {
		return nil, invalidRequestf("table id must be positive")
	}
	orders, err := s.repo.FindByTable(ctx, tableID)
	if err != nil {
		return nil, s.failure("list table orders", err, log.Fields{"table_id": tableID})
	}
	return orders, nil
}

func (s *orderService) ListKitchenOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, s.failure("list kitchen orders", err, nil)
	}
	return orders, nil
}

func (s *orderService) ListHistory(ctx context.Context, tableID *int64, limit int) ([]model.Order, error) {
	if tableID != nil && *tableID <= 0 {
		return nil, invalidRequestf("table id must be positive")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	orders, err := s.repo.FindHistory(ctx, tableID, limit)
	if err != nil {
		return nil, s.failure("list order history", err, log.Fields{"limit": limit})
	}
	return orders, nil
}

func (s *orderService) CallStaff(_ context.Context, tableID int64, reason string) error {
	if tableID <= 0 {
		return invalidRequestf("table id must be positive")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return invalidRequestf("reason must be at most %d characters", maxReasonLength)
	}

	s.dispatch(model.StaffCalled{TableID: tableID, Reason: reason, At: time.Now().UTC()})
	return nil
}

func (s *orderService) CallService(_ context.Context, tableID int64) error {
	if tableID <= 0 {
		return invalidRequestf("table id must be positive")
	}

	s.dispatch(model.CustomerCalled{TableID: tableID, At: time.Now().UTC()})
	return nil
}

func (s *orderService) transitionCheck(next model.OrderStatus) model.TransitionCheck {
	if !s.opts.StrictTransitions {
		return nil
	}
	return func(current model.OrderStatus) error {
		if !current.Precedes(next) {
			return fmt.Errorf("%w: %w: %s -> %s", model.ErrInvalidRequest, model.ErrInvalidTransition, current, next)
		}
		return nil
	}
}

func (s *orderService) dispatch(event Event) {
	if err := s.dispatcher.Dispatch(event); err != nil {
		log.WithError(err).WithField("event", event.Type()).Warn("failed to dispatch event")
	}
}

// failure passes domain errors through and hides everything else behind ErrOperationFailed.
func (s *orderService) failure(op string, err error, fields log.Fields) error {
	if errors.Is(err, model.ErrOrderNotFound) ||
		errors.Is(err, model.ErrTableNotFound) ||
		errors.Is(err, model.ErrInvalidRequest) {
		return err
	}
	log.WithFields(fields).WithError(err).Errorf("%s failed", op)
	return errors.Wrap(model.ErrOperationFailed, op)
}

func invalidRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	fe := fieldErrors[0]
	return invalidRequestf("%s failed on '%s'", fe.Namespace(), fe.Tag())
}
