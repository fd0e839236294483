package amqp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp091 "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"restaurant/pkg/restaurant/domain/service"
	"restaurant/pkg/restaurant/infrastructure/payload"
)

const defaultPublishTimeout = 5 * time.Second

type Config struct {
	URL            string
	Exchange       string
	PublishTimeout time.Duration
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher mirrors order events to a fanout exchange so other services can follow the order lifecycle.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	exchange string
	timeout  time.Duration
}

var _ service.EventDispatcher = &Publisher{}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func Dial(cfg Config) (*Publisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", cfg.Exchange)
	}

	p := newPublisher(ch, cfg.Exchange, cfg.PublishTimeout)
	p.conn = conn
	log.WithField("exchange", cfg.Exchange).Info("amqp publisher ready")
	return p, nil
}

func newPublisher(ch channel, exchange string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{ch: ch, exchange: exchange, timeout: timeout}
}

func (p *Publisher) Dispatch(event service.Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type(), false, false, msg); err != nil {
		return errors.Wrapf(err, "publish %s", event.Type())
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func newPublishing(event service.Event) (amqp091.Publishing, error) {
	name, data, ok := payload.FromEvent(event)
	if !ok {
		return amqp091.Publishing{}, errors.Errorf("no wire form for event %s", event.Type())
	}
	body, err := json.Marshal(envelope{Event: name, Data: data})
	if err != nil {
		return amqp091.Publishing{}, errors.Wrap(err, "marshal event")
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         event.Type(),
		Body:         body,
	}, nil
}
