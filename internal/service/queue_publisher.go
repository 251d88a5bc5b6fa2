// Package service holds application services that sit between handlers and
// repositories: account management and the session event publisher.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/videotube-identity/internal/config"
	"github.com/iliyamo/videotube-identity/internal/queue"
)

var (
	// ErrPublisherBusy is returned when the delivery buffer is full and the
	// event was dropped.
	ErrPublisherBusy = errors.New("session event buffer full")
	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("session event publisher closed")
)

// QueuePublisher publishes session events to a durable RabbitMQ queue.
// PublishSessionEvent only enqueues; a single goroutine owns the broker
// connection, dials lazily and re-dials after any failure. A slow or absent
// broker therefore never delays the caller, it only costs events.
type QueuePublisher struct {
	url     string
	queue   string
	timeout time.Duration
	log     zerolog.Logger

	events    chan queue.SessionEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewQueuePublisher starts the delivery goroutine. Call Close to stop it.
func NewQueuePublisher(cfg config.BrokerConfig, log zerolog.Logger) *QueuePublisher {
	buffer := cfg.Buffer
	if buffer < 1 {
		buffer = 1
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &QueuePublisher{
		url:     cfg.URL,
		queue:   cfg.Queue,
		timeout: timeout,
		log:     log,
		events:  make(chan queue.SessionEvent, buffer),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// PublishSessionEvent queues ev for delivery without blocking. A full
// buffer drops the event and returns ErrPublisherBusy.
func (p *QueuePublisher) PublishSessionEvent(_ context.Context, ev queue.SessionEvent) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrPublisherBusy
	}
}

// Close stops the delivery goroutine and releases the broker connection.
// Events still buffered are dropped.
func (p *QueuePublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	return nil
}

func (p *QueuePublisher) run() {
	defer p.wg.Done()
	defer p.reset()
	for {
		select {
		case <-p.done:
			if n := len(p.events); n > 0 {
				p.log.Warn().Int("dropped", n).Msg("publisher closed with pending session events")
			}
			return
		case ev := <-p.events:
			if err := p.send(ev); err != nil {
				p.log.Warn().Err(err).Str("event", ev.Type).Msg("publish session event failed")
			}
		}
	}
}

// send marshals ev and publishes it as a persistent message routed to the
// session events queue through the default exchange.
func (p *QueuePublisher) send(ev queue.SessionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns an open channel, dialling and declaring the queue when
// needed.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.timeout)})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.log.Debug().Str("queue", p.queue).Msg("connected to broker")
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
