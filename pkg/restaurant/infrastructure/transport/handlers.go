package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/service"
	"restaurant/pkg/restaurant/infrastructure/health"
	"restaurant/pkg/restaurant/infrastructure/hub"
	"restaurant/pkg/restaurant/infrastructure/payload"
)

const maxBodyBytes = 1 << 20

type Options struct {
	SubmitTimeout time.Duration
	SendBuffer    int
	Version       string
}

type HealthReporter interface {
	Status() health.Status
}

type Handler struct {
	orders service.OrderService
	hub    *hub.Hub
	health HealthReporter
	opts   Options
}

type submitOrderBody struct {
	TableID     int64            `json:"table_id"`
	CustomerID  *int64           `json:"customer_id"`
	Items       []submitItemBody `json:"items"`
	TotalAmount int64            `json:"total_amount"`
}

type submitItemBody struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Note      string `json:"note"`
}

func (b submitOrderBody) toRequest() service.SubmitOrderRequest {
	items := make([]service.SubmitItem, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, service.SubmitItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Note:      item.Note,
		})
	}
	return service.SubmitOrderRequest{
		TableID:     b.TableID,
		CustomerID:  b.CustomerID,
		Items:       items,
		TotalAmount: b.TotalAmount,
	}
}

type statusUpdate struct {
	OrderID        int64  `json:"orderId"`
	Status         string `json:"status"`
	TableID        int64  `json:"tableId"`
	PreviousStatus string `json:"previous_status"`
}

func Router(orders service.OrderService, h *hub.Hub, reporter HealthReporter, opts Options) http.Handler {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	handler := &Handler{orders: orders, hub: h, health: reporter, opts: opts}

	r := mux.NewRouter()
	r.HandleFunc("/health", handler.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", handler.websocketHandler).Methods(http.MethodGet)

	s := r.PathPrefix("/orders").Subrouter()
	s.HandleFunc("", handler.createOrderHandler).Methods(http.MethodPost)
	s.HandleFunc("", handler.tableOrdersHandler).Methods(http.MethodGet)
	s.HandleFunc("/kitchen", handler.kitchenOrdersHandler).Methods(http.MethodGet)
	s.HandleFunc("/history", handler.historyHandler).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}", handler.orderHandler).Methods(http.MethodGet)
	s.HandleFunc("/{id:[0-9]+}/status", handler.updateStatusHandler).Methods(http.MethodPut)

	return logMiddleware(r)
}

func (h *Handler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var body submitOrderBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeBadRequest(w, "request body must be a JSON order")
		return
	}

	order, err := h.orders.SubmitOrder(r.Context(), body.toRequest())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "Order created successfully", payload.NewOrder(*order))
}

func (h *Handler) orderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", payload.NewOrder(*order))
}

func (h *Handler) tableOrdersHandler(w http.ResponseWriter, r *http.Request) {
	tableID, err := strconv.ParseInt(r.URL.Query().Get("tableId"), 10, 64)
	if err != nil {
		writeBadRequest(w, "tableId query parameter is required")
		return
	}
	orders, err := h.orders.ListTableOrders(r.Context(), tableID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", payload.NewOrders(orders))
}

func (h *Handler) kitchenOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListKitchenOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", payload.NewOrders(orders))
}

func (h *Handler) historyHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var tableID *int64
	if raw := query.Get("tableId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, "tableId must be a number")
			return
		}
		tableID = &id
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be a number")
			return
		}
		limit = n
	}

	orders, err := h.orders.ListHistory(r.Context(), tableID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", payload.NewOrders(orders))
}

func (h *Handler) updateStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeBadRequest(w, "request body must be {\"status\": ...}")
		return
	}

	changed, err := h.orders.ChangeStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Order status updated", statusUpdate{
		OrderID:        changed.Order.ID,
		Status:         string(changed.Order.Status),
		TableID:        changed.Order.TableID,
		PreviousStatus: string(changed.PreviousStatus),
	})
}

func (h *Handler) healthHandler(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   "restaurant",
		"version":   h.opts.Version,
		"database":  "unknown",
	}
	code := http.StatusOK
	if h.health != nil {
		status := h.health.Status()
		switch {
		case status.CheckedAt.IsZero():
		case status.Healthy:
			body["database"] = "up"
		default:
			body["database"] = "down"
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, body)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "order id must be a positive number")
		return 0, false
	}
	return id, true
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
		}).Info("got a new request")
		h.ServeHTTP(w, r)
	})
}
