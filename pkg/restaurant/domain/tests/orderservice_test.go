package tests

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant/pkg/restaurant/domain/model"
	"restaurant/pkg/restaurant/domain/service"
)

func setup(t *testing.T, opts service.Options) (service.OrderService, *mockOrderRepository, *mockEventDispatcher) {
	t.Helper()
	repo := &mockOrderRepository{
		store: make(map[int64]*model.Order),
		tables: map[int64]*model.Table{
			7: {ID: 7, Number: "T7", Capacity: 4, Status: model.TableAvailable},
			8: {ID: 8, Number: "T8", Capacity: 2, Status: model.TableAvailable},
		},
	}
	dispatcher := &mockEventDispatcher{}
	orderService := service.NewOrderService(repo, &mockTableRepository{repo: repo}, dispatcher, opts)
	return orderService, repo, dispatcher
}

func twoItemRequest(tableID int64) service.SubmitOrderRequest {
	return service.SubmitOrderRequest{
		TableID: tableID,
		Items: []service.SubmitItem{
			{ProductID: 1, Quantity: 2, UnitPrice: 500},
			{ProductID: 2, Quantity: 1, UnitPrice: 300, Note: "no ice"},
		},
		TotalAmount: 1300,
	}
}

func TestSubmitOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})

		order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))

		require.NoError(t, err)
		require.NotNil(t, order)
		assert.NotZero(t, order.ID)
		assert.Equal(t, model.Pending, order.Status)
		assert.Equal(t, int64(1300), order.TotalAmount)
		assert.Equal(t, "T7", order.TableNumber)
		assert.Len(t, order.Items, 2)
		assert.False(t, order.CreatedAt.IsZero())

		saved, ok := repo.store[order.ID]
		require.True(t, ok)
		assert.Len(t, saved.Items, 2)
		assert.Equal(t, model.TableOccupied, repo.tables[7].Status)

		require.Len(t, dispatcher.events, 1)
		created, ok := dispatcher.events[0].(model.OrderCreated)
		require.True(t, ok)
		assert.Equal(t, order.ID, created.Order.ID)
		assert.Equal(t, int64(7), created.Order.TableID)
	})

	t.Run("Total computed when omitted", func(t *testing.T) {
		orderService, _, _ := setup(t, service.Options{})
		req := twoItemRequest(7)
		req.TotalAmount = 0

		order, err := orderService.SubmitOrder(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, int64(1300), order.TotalAmount)
	})

	t.Run("Fail on mismatched total", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		req := twoItemRequest(7)
		req.TotalAmount = 999

		_, err := orderService.SubmitOrder(context.Background(), req)

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Empty(t, repo.store)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Fail on empty items", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})

		_, err := orderService.SubmitOrder(context.Background(), service.SubmitOrderRequest{TableID: 7})

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Empty(t, repo.store)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Fail on zero quantity", func(t *testing.T) {
		orderService, _, dispatcher := setup(t, service.Options{})
		req := twoItemRequest(7)
		req.Items[0].Quantity = 0
		req.TotalAmount = 0

		_, err := orderService.SubmitOrder(context.Background(), req)

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Contains(t, err.Error(), "Quantity")
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Fail on negative price", func(t *testing.T) {
		orderService, _, _ := setup(t, service.Options{})
		req := twoItemRequest(7)
		req.Items[1].UnitPrice = -1
		req.TotalAmount = 0

		_, err := orderService.SubmitOrder(context.Background(), req)

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})

	t.Run("Fail on overflowing total", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		req := service.SubmitOrderRequest{
			TableID: 7,
			Items:   []service.SubmitItem{{ProductID: 1, Quantity: 2, UnitPrice: 1 << 62}},
		}

		_, err := orderService.SubmitOrder(context.Background(), req)

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Empty(t, repo.store)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Fail on unknown table", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})

		_, err := orderService.SubmitOrder(context.Background(), twoItemRequest(99))

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Empty(t, repo.store)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Store failure is hidden", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		repo.createErr = &model.PersistenceError{Op: "insert order item", Err: errors.New("Error 1452: foreign key constraint fails")}

		_, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrOperationFailed)
		assert.NotContains(t, err.Error(), "1452")
		assert.Empty(t, repo.store)
		assert.Equal(t, model.TableAvailable, repo.tables[7].Status)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Dispatch failure does not fail submission", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		dispatcher.err = errors.New("broker unavailable")

		order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))

		require.NoError(t, err)
		assert.Contains(t, repo.store, order.ID)
	})

	t.Run("Duplicate submissions create distinct orders", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})

		first, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		require.NoError(t, err)
		second, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Len(t, repo.store, 2)
		assert.Len(t, dispatcher.events, 2)
	})
}

func TestChangeStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		require.NoError(t, err)
		dispatcher.Reset()

		changed, err := orderService.ChangeStatus(context.Background(), order.ID, "preparing")

		require.NoError(t, err)
		assert.Equal(t, model.Pending, changed.PreviousStatus)
		assert.Equal(t, model.Preparing, changed.Order.Status)
		assert.Equal(t, int64(7), changed.Order.TableID)
		assert.Equal(t, model.Preparing, repo.store[order.ID].Status)

		require.Len(t, dispatcher.events, 1)
		event, ok := dispatcher.events[0].(model.OrderStatusChanged)
		require.True(t, ok)
		assert.Equal(t, model.Preparing, event.Order.Status)
		assert.Equal(t, model.Pending, event.PreviousStatus)
	})

	t.Run("Fail on missing order", func(t *testing.T) {
		orderService, _, dispatcher := setup(t, service.Options{})

		_, err := orderService.ChangeStatus(context.Background(), 42, "ready")

		assert.ErrorIs(t, err, model.ErrOrderNotFound)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Fail on unknown status", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		order, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		dispatcher.Reset()

		_, err := orderService.ChangeStatus(context.Background(), order.ID, "cancelled")

		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.ErrorIs(t, err, model.ErrUnknownOrderStatus)
		assert.Equal(t, model.Pending, repo.store[order.ID].Status)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Permissive mode allows going back", func(t *testing.T) {
		orderService, _, _ := setup(t, service.Options{})
		order, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(7))

		_, err := orderService.ChangeStatus(context.Background(), order.ID, "served")
		require.NoError(t, err)
		changed, err := orderService.ChangeStatus(context.Background(), order.ID, "pending")

		require.NoError(t, err)
		assert.Equal(t, model.Served, changed.PreviousStatus)
		assert.Equal(t, model.Pending, changed.Order.Status)
	})

	t.Run("Reload failure still publishes with table id", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		require.NoError(t, err)
		dispatcher.Reset()
		repo.queryErr = &model.PersistenceError{Op: "select order", Err: errors.New("connection reset")}

		changed, err := orderService.ChangeStatus(context.Background(), order.ID, "ready")

		require.NoError(t, err)
		assert.Equal(t, order.ID, changed.Order.ID)
		assert.Equal(t, int64(7), changed.Order.TableID)
		assert.Equal(t, model.Ready, changed.Order.Status)
		assert.Equal(t, model.Pending, changed.PreviousStatus)
		assert.Equal(t, model.Ready, repo.status(order.ID))

		require.Len(t, dispatcher.events, 1)
		event, ok := dispatcher.events[0].(model.OrderStatusChanged)
		require.True(t, ok)
		assert.Equal(t, int64(7), event.Order.TableID)
		assert.Equal(t, model.Ready, event.Order.Status)
	})

	t.Run("Store failure is hidden", func(t *testing.T) {
		orderService, repo, dispatcher := setup(t, service.Options{})
		order, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
		dispatcher.Reset()
		repo.updateErr = &model.PersistenceError{Op: "update order status", Err: errors.New("connection reset")}

		_, err := orderService.ChangeStatus(context.Background(), order.ID, "ready")

		assert.ErrorIs(t, err, model.ErrOperationFailed)
		assert.NotContains(t, err.Error(), "connection reset")
		assert.Empty(t, dispatcher.events)
	})
}

func TestChangeStatusStrict(t *testing.T) {
	orderService, repo, dispatcher := setup(t, service.Options{StrictTransitions: true})
	order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(8))
	require.NoError(t, err)

	t.Run("Forward skip allowed", func(t *testing.T) {
		dispatcher.Reset()
		changed, err := orderService.ChangeStatus(context.Background(), order.ID, "ready")

		require.NoError(t, err)
		assert.Equal(t, model.Pending, changed.PreviousStatus)
		assert.Len(t, dispatcher.events, 1)
	})

	t.Run("Backward rejected", func(t *testing.T) {
		dispatcher.Reset()
		_, err := orderService.ChangeStatus(context.Background(), order.ID, "preparing")

		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		assert.Equal(t, model.Ready, repo.store[order.ID].Status)
		assert.Empty(t, dispatcher.events)
	})

	t.Run("Same status rejected", func(t *testing.T) {
		_, err := orderService.ChangeStatus(context.Background(), order.ID, "ready")
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})
}

func TestConcurrentStatusChangesPublishInCommitOrder(t *testing.T) {
	orderService, repo, dispatcher := setup(t, service.Options{})
	order, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
	require.NoError(t, err)
	dispatcher.Reset()

	statuses := []string{"preparing", "ready", "served", "pending", "ready", "preparing", "served", "ready"}
	var wg sync.WaitGroup
	for _, status := range statuses {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			_, err := orderService.ChangeStatus(context.Background(), order.ID, status)
			assert.NoError(t, err)
		}(status)
	}
	wg.Wait()

	events := dispatcher.snapshot()
	require.Len(t, events, len(statuses))

	// Each event's previous status is the status published just before it.
	var last model.OrderStatus = model.Pending
	for _, e := range events {
		changed := e.(model.OrderStatusChanged)
		assert.Equal(t, last, changed.PreviousStatus)
		last = changed.Order.Status
	}
	assert.Equal(t, last, repo.status(order.ID))
}

func TestStatusChangeDuringSubmitPublishedAfterCreation(t *testing.T) {
	orderService, repo, dispatcher := setup(t, service.Options{})

	var wg sync.WaitGroup
	repo.afterCreate = func(order *model.Order) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orderService.ChangeStatus(context.Background(), order.ID, "preparing")
			assert.NoError(t, err)
		}()
		// The status write commits while the submission has not published yet.
		require.Eventually(t, func() bool {
			return repo.status(order.ID) == model.Preparing
		}, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
	}

	_, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
	require.NoError(t, err)
	wg.Wait()

	events := dispatcher.snapshot()
	require.Len(t, events, 2)
	assert.IsType(t, model.OrderCreated{}, events[0])
	assert.IsType(t, model.OrderStatusChanged{}, events[1])
}

func TestSubmitOrderInvalidatesCachedTable(t *testing.T) {
	repo := &mockOrderRepository{
		store:  make(map[int64]*model.Order),
		tables: map[int64]*model.Table{7: {ID: 7, Number: "T7", Capacity: 4, Status: model.TableAvailable}},
	}
	tables := &mockCachingTableRepository{mockTableRepository: mockTableRepository{repo: repo}}
	orderService := service.NewOrderService(repo, tables, &mockEventDispatcher{}, service.Options{})

	_, err := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, tables.invalidated)

	_, err = orderService.SubmitOrder(context.Background(), twoItemRequest(99))
	require.Error(t, err)
	assert.Equal(t, []int64{7}, tables.invalidated)
}

func TestSumItems(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		total, err := model.SumItems([]model.Item{
			{Quantity: 2, UnitPrice: 500},
			{Quantity: 1, UnitPrice: 300},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1300), total)
	})

	t.Run("Fail on overflowing subtotal", func(t *testing.T) {
		_, err := model.SumItems([]model.Item{{Quantity: 2, UnitPrice: 1 << 62}})
		assert.ErrorIs(t, err, model.ErrAmountOverflow)
	})

	t.Run("Fail on overflowing sum", func(t *testing.T) {
		_, err := model.SumItems([]model.Item{
			{Quantity: 1, UnitPrice: math.MaxInt64},
			{Quantity: 1, UnitPrice: 1},
		})
		assert.ErrorIs(t, err, model.ErrAmountOverflow)
	})
}

func TestQueries(t *testing.T) {
	orderService, repo, _ := setup(t, service.Options{})
	first, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
	second, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(8))
	third, _ := orderService.SubmitOrder(context.Background(), twoItemRequest(7))
	_, err := orderService.ChangeStatus(context.Background(), second.ID, "ready")
	require.NoError(t, err)

	t.Run("Get order", func(t *testing.T) {
		order, err := orderService.GetOrder(context.Background(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, order.ID)

		_, err = orderService.GetOrder(context.Background(), 42)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})

	t.Run("Kitchen sees only active orders", func(t *testing.T) {
		orders, err := orderService.ListKitchenOrders(context.Background())
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, first.ID, orders[0].ID)
		assert.Equal(t, third.ID, orders[1].ID)
	})

	t.Run("Table orders", func(t *testing.T) {
		orders, err := orderService.ListTableOrders(context.Background(), 7)
		require.NoError(t, err)
		assert.Len(t, orders, 2)
	})

	t.Run("History defaults and caps limit", func(t *testing.T) {
		_, err := orderService.ListHistory(context.Background(), nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 10, repo.lastHistoryLimit)

		_, err = orderService.ListHistory(context.Background(), nil, 5000)
		require.NoError(t, err)
		assert.Equal(t, 100, repo.lastHistoryLimit)
	})

	t.Run("History filtered by table newest first", func(t *testing.T) {
		tableID := int64(7)
		orders, err := orderService.ListHistory(context.Background(), &tableID, 10)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, third.ID, orders[0].ID)
		assert.Equal(t, first.ID, orders[1].ID)
	})

	t.Run("Store failure is hidden", func(t *testing.T) {
		repo.queryErr = &model.PersistenceError{Op: "select active orders", Err: errors.New("timeout")}
		defer func() { repo.queryErr = nil }()

		_, err := orderService.ListKitchenOrders(context.Background())
		assert.ErrorIs(t, err, model.ErrOperationFailed)
	})
}

func TestCalls(t *testing.T) {
	orderService, _, dispatcher := setup(t, service.Options{})

	t.Run("Staff call", func(t *testing.T) {
		dispatcher.Reset()
		err := orderService.CallStaff(context.Background(), 7, "  need napkins ")

		require.NoError(t, err)
		require.Len(t, dispatcher.events, 1)
		called, ok := dispatcher.events[0].(model.StaffCalled)
		require.True(t, ok)
		assert.Equal(t, int64(7), called.TableID)
		assert.Equal(t, "need napkins", called.Reason)
		assert.WithinDuration(t, time.Now(), called.At, time.Minute)
	})

	t.Run("Service call", func(t *testing.T) {
		dispatcher.Reset()
		err := orderService.CallService(context.Background(), 8)

		require.NoError(t, err)
		require.Len(t, dispatcher.events, 1)
		_, ok := dispatcher.events[0].(model.CustomerCalled)
		assert.True(t, ok)
	})

	t.Run("Fail on invalid table", func(t *testing.T) {
		dispatcher.Reset()
		assert.ErrorIs(t, orderService.CallStaff(context.Background(), 0, ""), model.ErrInvalidRequest)
		assert.ErrorIs(t, orderService.CallService(context.Background(), -1), model.ErrInvalidRequest)
		assert.Empty(t, dispatcher.events)
	})
}

var _ model.OrderRepository = &mockOrderRepository{}

type mockOrderRepository struct {
	mu     sync.Mutex
	nextID int64
	store  map[int64]*model.Order
	tables map[int64]*model.Table

	createErr error
	updateErr error
	queryErr  error

	lastHistoryLimit int

	// afterCreate runs once the order is stored, outside the repository lock.
	afterCreate func(order *model.Order)
}

func (m *mockOrderRepository) Create(_ context.Context, order *model.Order) error {
	if err := m.create(order); err != nil {
		return err
	}
	if m.afterCreate != nil {
		m.afterCreate(order)
	}
	return nil
}

func (m *mockOrderRepository) create(order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	table, ok := m.tables[order.TableID]
	if !ok {
		return model.ErrTableNotFound
	}
	m.nextID++
	order.ID = m.nextID
	order.CreatedAt = time.Now().UTC().Add(time.Duration(m.nextID) * time.Second)
	for i := range order.Items {
		order.Items[i].ID = m.nextID*100 + int64(i)
		order.Items[i].OrderID = order.ID
	}
	stored := cloneOrder(order)
	m.store[order.ID] = stored
	table.Status = model.TableOccupied
	return nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, id int64, status model.OrderStatus, check model.TransitionCheck) (model.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return model.StatusChange{}, m.updateErr
	}
	order, ok := m.store[id]
	if !ok {
		return model.StatusChange{}, model.ErrOrderNotFound
	}
	if check != nil {
		if err := check(order.Status); err != nil {
			return model.StatusChange{}, err
		}
	}
	change := model.StatusChange{TableID: order.TableID, Previous: order.Status}
	order.Status = status
	return change, nil
}

func (m *mockOrderRepository) Find(_ context.Context, id int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	order, ok := m.store[id]
	if !ok {
		return nil, model.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (m *mockOrderRepository) FindByTable(_ context.Context, tableID int64) ([]model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.TableID == tableID }, false, 0)
}

func (m *mockOrderRepository) FindActive(_ context.Context) ([]model.Order, error) {
	return m.filter(func(o *model.Order) bool { return o.Status.Active() }, false, 0)
}

func (m *mockOrderRepository) FindHistory(_ context.Context, tableID *int64, limit int) ([]model.Order, error) {
	m.mu.Lock()
	m.lastHistoryLimit = limit
	m.mu.Unlock()
	return m.filter(func(o *model.Order) bool { return tableID == nil || o.TableID == *tableID }, true, limit)
}

func (m *mockOrderRepository) filter(keep func(*model.Order) bool, newestFirst bool, limit int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var orders []model.Order
	for _, o := range m.store {
		if keep(o) {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if newestFirst {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (m *mockOrderRepository) status(id int64) model.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id].Status
}

func cloneOrder(o *model.Order) *model.Order {
	clone := *o
	clone.Items = append([]model.Item(nil), o.Items...)
	return &clone
}

var _ model.TableRepository = &mockTableRepository{}

type mockTableRepository struct {
	repo *mockOrderRepository
}

func (m *mockTableRepository) Find(_ context.Context, id int64) (*model.Table, error) {
	m.repo.mu.Lock()
	defer m.repo.mu.Unlock()
	table, ok := m.repo.tables[id]
	if !ok {
		return nil, model.ErrTableNotFound
	}
	clone := *table
	return &clone, nil
}

type mockCachingTableRepository struct {
	mockTableRepository
	invalidated []int64
}

func (m *mockCachingTableRepository) Invalidate(_ context.Context, id int64) {
	m.invalidated = append(m.invalidated, id)
}

var _ service.EventDispatcher = &mockEventDispatcher{}

type mockEventDispatcher struct {
	mu     sync.Mutex
	events []service.Event
	err    error
}

func (m *mockEventDispatcher) Dispatch(event service.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

func (m *mockEventDispatcher) snapshot() []service.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.Event(nil), m.events...)
}
