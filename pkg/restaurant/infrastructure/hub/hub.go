package hub

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/model"
	"restaurant/pkg/restaurant/domain/service"
	"restaurant/pkg/restaurant/infrastructure/payload"
)

const (
	KitchenChannel = "kitchen"
	AdminChannel   = "admin"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("session send buffer is full")
)

func TableChannel(tableID int64) string {
	return fmt.Sprintf("table:%d", tableID)
}

type Message struct {
	Event   string      `json:"event"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data"`
}

// Session is one connected client. Send must not block on a slow peer.
type Session interface {
	ID() string
	Send(msg Message) error
}

type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[string]Session
	joined   map[string]map[string]struct{}
}

var _ service.EventDispatcher = &Hub{}

func New() *Hub {
	return &Hub{
		channels: make(map[string]map[string]Session),
		joined:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Join(channel string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]Session)
		h.channels[channel] = members
	}
	if _, ok := members[s.ID()]; ok {
		return
	}
	members[s.ID()] = s

	channels, ok := h.joined[s.ID()]
	if !ok {
		channels = make(map[string]struct{})
		h.joined[s.ID()] = channels
	}
	channels[channel] = struct{}{}

	log.WithFields(log.Fields{"session": s.ID(), "channel": channel}).Debug("session joined channel")
}

func (h *Hub) Leave(channel string, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(channel, s.ID())
}

// LeaveAll drops every membership of the session; called when its connection ends.
func (h *Hub) LeaveAll(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.joined[s.ID()] {
		h.leave(channel, s.ID())
	}
}

func (h *Hub) leave(channel, sessionID string) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	if _, ok := members[sessionID]; !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}

	if channels, ok := h.joined[sessionID]; ok {
		delete(channels, channel)
		if len(channels) == 0 {
			delete(h.joined, sessionID)
		}
	}
	log.WithFields(log.Fields{"session": sessionID, "channel": channel}).Debug("session left channel")
}

func (h *Hub) Members(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish sends the event to every current member of each channel and returns how many sends succeeded.
// Failed sends are logged; they never stop delivery to the remaining members.
func (h *Hub) Publish(event string, data interface{}, channels ...string) int {
	type target struct {
		channel string
		session Session
	}

	h.mu.RLock()
	var targets []target
	for _, channel := range channels {
		for _, s := range h.channels[channel] {
			targets = append(targets, target{channel: channel, session: s})
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		err := t.session.Send(Message{Event: event, Channel: t.channel, Data: data})
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"session": t.session.ID(),
				"channel": t.channel,
				"event":   event,
			}).Warn("failed to deliver event")
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) Dispatch(event service.Event) error {
	name, body, ok := payload.FromEvent(event)
	if !ok {
		return errors.Errorf("hub cannot route event %s", event.Type())
	}

	var channels []string
	switch e := event.(type) {
	case model.OrderCreated:
		channels = orderChannels(e.Order)
	case model.OrderStatusChanged:
		channels = orderChannels(e.Order)
	default:
		channels = []string{AdminChannel}
	}

	delivered := h.Publish(name, body, channels...)
	log.WithFields(log.Fields{
		"event":     name,
		"channels":  channels,
		"delivered": delivered,
	}).Debug("event published")
	return nil
}

func orderChannels(o model.Order) []string {
	return []string{TableChannel(o.TableID), KitchenChannel, AdminChannel}
}
