package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errNoSession = errors.New("rabbitmq session unavailable")

// amqpSession is a broker connection with one channel on which the fit event
// queue has been declared.
type amqpSession struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// dialSession connects to the broker, retrying up to MaxConnectRetry times.
// A positive prefetch limits the unacknowledged deliveries on the channel.
func dialSession(url string, prefetch int) (*amqpSession, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= MaxConnectRetry; attempt++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		slog.Warn("rabbitmq dial failed", "attempt", attempt, "max_attempts", MaxConnectRetry, "error", err)
		if attempt < MaxConnectRetry {
			time.Sleep(RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("unable to reach rabbitmq after %d attempts: %w", MaxConnectRetry, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening rabbitmq channel: %w", err)
	}

	if prefetch > 0 {
		if err := channel.Qos(prefetch, 0, false); err != nil {
			conn.Close()
			return nil, fmt.Errorf("error setting rabbitmq prefetch: %w", err)
		}
	}

	if _, err := channel.QueueDeclare(FitEventQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error declaring queue %s: %w", FitEventQueue, err)
	}

	return &amqpSession{conn: conn, channel: channel}, nil
}

func (s *amqpSession) close() {
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		slog.Error("error closing rabbitmq connection", "error", err)
	}
}

// RabbitMQPublisher publishes fit events as persistent messages. When the
// broker drops the session, publishes fail until a new one is dialed.
type RabbitMQPublisher struct {
	url string

	mu      sync.RWMutex
	session *amqpSession
	closed  bool
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	session, err := dialSession(rabbitMQURL, 0)
	if err != nil {
		return nil, err
	}

	p := &RabbitMQPublisher{url: rabbitMQURL, session: session}
	go p.watch(session)

	slog.Info("rabbitmq publisher ready", "queue", FitEventQueue)
	return p, nil
}

func (p *RabbitMQPublisher) watch(session *amqpSession) {
	for {
		amqpErr, ok := <-session.channel.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}
		slog.Warn("rabbitmq publisher session lost", "error", amqpErr)

		p.mu.Lock()
		p.session = nil
		p.mu.Unlock()

		next := p.redial()
		if next == nil {
			return
		}
		session = next
		slog.Info("rabbitmq publisher session restored")
	}
}

// redial returns a fresh session, or nil once the publisher is closed.
func (p *RabbitMQPublisher) redial() *amqpSession {
	for {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			return nil
		}

		session, err := dialSession(p.url, 0)
		if err != nil {
			slog.Error("error redialing rabbitmq publisher", "error", err)
			time.Sleep(RetryDelay * 10)
			continue
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			session.close()
			return nil
		}
		p.session = session
		return session
	}
}

func (p *RabbitMQPublisher) PublishFitEvent(ctx context.Context, payload FitEventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding fit event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.session == nil || p.session.channel.IsClosed() {
		return errNoSession
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := p.session.channel.PublishWithContext(ctx, "", FitEventQueue, false, false, msg); err != nil {
		slog.Error("error publishing fit event", "task_id", payload.TaskId, "error", err)
		return fmt.Errorf("error publishing to %s: %w", FitEventQueue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.session != nil {
		p.session.close()
	}
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack drops the message without requeueing it; fit events are not retried.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

// RabbitMQReceiver consumes the fit event queue one delivery at a time. The
// Tasks channel is closed after Close once the consumer has shut down.
type RabbitMQReceiver struct {
	url      string
	tasks    chan Task
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRabbitMQReceiver(rabbitMQURL string) (*RabbitMQReceiver, error) {
	session, deliveries, err := openConsumer(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	r := &RabbitMQReceiver{
		url:   rabbitMQURL,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}
	go r.run(session, deliveries)

	slog.Info("rabbitmq receiver ready", "queue", FitEventQueue)
	return r, nil
}

func openConsumer(url string) (*amqpSession, <-chan amqp.Delivery, error) {
	session, err := dialSession(url, 1)
	if err != nil {
		return nil, nil, err
	}

	deliveries, err := session.channel.Consume(FitEventQueue, "", false, false, false, false, nil)
	if err != nil {
		session.close()
		return nil, nil, fmt.Errorf("error consuming from %s: %w", FitEventQueue, err)
	}

	return session, deliveries, nil
}

func (r *RabbitMQReceiver) run(session *amqpSession, deliveries <-chan amqp.Delivery) {
	defer close(r.tasks)

	for {
		if !r.forward(deliveries) {
			session.close()
			slog.Info("rabbitmq receiver stopped")
			return
		}
		slog.Warn("rabbitmq delivery stream ended, reconnecting")

		for {
			var err error
			session, deliveries, err = openConsumer(r.url)
			if err == nil {
				break
			}
			slog.Error("error reconnecting rabbitmq receiver", "error", err)

			select {
			case <-r.stop:
				return
			case <-time.After(RetryDelay * 10):
			}
		}
		slog.Info("rabbitmq receiver reconnected")
	}
}

// forward hands deliveries to Tasks. It returns false when the receiver is
// closed and true when the delivery stream ends.
func (r *RabbitMQReceiver) forward(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-r.stop:
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			select {
			case r.tasks <- &RabbitMQTask{d: d}:
			case <-r.stop:
				return false
			}
		}
	}
}

func (r *RabbitMQReceiver) Tasks() <-chan Task {
	return r.tasks
}

func (r *RabbitMQReceiver) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
