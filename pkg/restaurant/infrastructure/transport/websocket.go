package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/model"
	"restaurant/pkg/restaurant/infrastructure/hub"
	"restaurant/pkg/restaurant/infrastructure/payload"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Table tablets, the kitchen display and the admin dashboard are served from other origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan hub.Message

	mu     sync.RWMutex
	closed bool
}

var _ hub.Session = &session{}

func newSession(conn *websocket.Conn, buffer int) *session {
	return &session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan hub.Message, buffer),
	}
}

func (s *session) ID() string { return s.id }

// Send queues msg for the writer. A session that cannot keep up is disconnected
// instead of stalling the publisher.
func (s *session) Send(msg hub.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hub.ErrSessionClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		_ = s.conn.Close()
		return hub.ErrSendBufferFull
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (h *Handler) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s := newSession(conn, h.opts.SendBuffer)
	log.WithFields(log.Fields{"session": s.id, "remoteAddr": r.RemoteAddr}).Info("client connected")

	go s.writePump()
	h.readPump(r.Context(), s)

	h.hub.LeaveAll(s)
	s.close()
	log.WithField("session", s.id).Info("client disconnected")
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				log.WithError(err).WithField("session", s.id).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(ctx context.Context, s *session) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("session", s.id).Warn("websocket closed unexpectedly")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(payload.EventOrderError, payload.Error{Message: "message must be a JSON {event, data} object", Kind: KindInvalidRequest})
			continue
		}
		h.handle(ctx, s, msg)
	}
}

func (h *Handler) handle(ctx context.Context, s *session, msg inbound) {
	entry := log.WithFields(log.Fields{"session": s.id, "event": msg.Event})

	switch msg.Event {
	case "join_table", "leave_table":
		tableID, err := parseTableID(msg.Data)
		if err != nil {
			s.replyError(err)
			return
		}
		if msg.Event == "join_table" {
			h.hub.Join(hub.TableChannel(tableID), s)
		} else {
			h.hub.Leave(hub.TableChannel(tableID), s)
		}
	case "join_kitchen":
		h.hub.Join(hub.KitchenChannel, s)
	case "join_admin":
		h.hub.Join(hub.AdminChannel, s)
	case "new_order":
		var body submitOrderBody
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			s.replyError(errors.Wrap(model.ErrInvalidRequest, "order payload is malformed"))
			return
		}
		submitCtx, cancel := context.WithTimeout(ctx, h.opts.SubmitTimeout)
		defer cancel()
		order, err := h.orders.SubmitOrder(submitCtx, body.toRequest())
		if err != nil {
			entry.WithError(err).Warn("order submission failed")
			s.replyError(err)
			return
		}
		entry.WithField("order_id", order.ID).Info("order submitted over websocket")
	case "update_order_status":
		var body struct {
			OrderID flexibleID `json:"orderId"`
			Status  string     `json:"status"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			s.replyError(errors.Wrap(model.ErrInvalidRequest, "status payload is malformed"))
			return
		}
		if _, err := h.orders.ChangeStatus(ctx, int64(body.OrderID), body.Status); err != nil {
			entry.WithError(err).Warn("status update failed")
			s.replyError(err)
		}
	case "call_staff":
		var body struct {
			TableID flexibleID `json:"tableId"`
			Reason  string     `json:"reason"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			s.replyError(errors.Wrap(model.ErrInvalidRequest, "call payload is malformed"))
			return
		}
		if err := h.orders.CallStaff(ctx, int64(body.TableID), body.Reason); err != nil {
			s.replyError(err)
		}
	case "call_service":
		var body struct {
			TableID flexibleID `json:"tableId"`
		}
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			s.replyError(errors.Wrap(model.ErrInvalidRequest, "call payload is malformed"))
			return
		}
		if err := h.orders.CallService(ctx, int64(body.TableID)); err != nil {
			s.replyError(err)
		}
	default:
		entry.Debug("ignoring unknown websocket event")
	}
}

func (s *session) reply(event string, data interface{}) {
	if err := s.Send(hub.Message{Event: event, Data: data}); err != nil {
		log.WithError(err).WithFields(log.Fields{"session": s.id, "event": event}).Warn("failed to reply to session")
	}
}

func (s *session) replyError(err error) {
	_, kind, message := classify(err)
	s.reply(payload.EventOrderError, payload.Error{Message: message, Kind: kind})
}

// flexibleID accepts 7 as well as "7".
type flexibleID int64

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parse id %s", raw)
	}
	*id = flexibleID(n)
	return nil
}

func parseTableID(data json.RawMessage) (int64, error) {
	var id flexibleID
	if err := json.Unmarshal(data, &id); err != nil {
		var wrapped struct {
			TableID flexibleID `json:"tableId"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return 0, errors.Wrap(model.ErrInvalidRequest, "table id must be a number")
		}
		id = wrapped.TableID
	}
	if id <= 0 {
		return 0, errors.Wrap(model.ErrInvalidRequest, "table id must be positive")
	}
	return int64(id), nil
}
