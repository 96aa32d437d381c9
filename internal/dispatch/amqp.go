// internal/dispatch/amqp.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"booking-workers/internal/common/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPChannel is the part of *amqp.Channel the dispatcher uses.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// AMQPDispatcher queues jobs on a durable RabbitMQ queue so any instance can deliver them.
type AMQPDispatcher struct {
	conn    *amqp.Connection
	ch      AMQPChannel
	queue   string
	workers int
	errs    *errorSink
	log     logger.Logger

	wg sync.WaitGroup
}

// DialAMQP connects, opens a channel and declares the delivery queue.
func DialAMQP(url, queue string, workers int, log logger.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	d, err := NewAMQPDispatcher(ch, queue, workers, log)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	d.conn = conn
	return d, nil
}

func NewAMQPDispatcher(ch AMQPChannel, queue string, workers int, log logger.Logger) (*AMQPDispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	log = log.WithFields(map[string]interface{}{"component": "dispatch", "backend": "amqp", "queue": queue})
	return &AMQPDispatcher{
		ch:      ch,
		queue:   queue,
		workers: workers,
		errs:    newErrorSink(64, log),
		log:     log,
	}, nil
}

func (d *AMQPDispatcher) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	err = d.ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

// Start consumes with manual acks. Failed deliveries are nacked without requeue.
func (d *AMQPDispatcher) Start(ctx context.Context, h Handler) error {
	if err := d.ch.Qos(d.workers, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := d.ch.Consume(d.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for msg := range deliveries {
				d.handle(ctx, h, msg)
			}
		}()
	}
	d.log.Info("dispatcher started", map[string]interface{}{"workers": d.workers})
	return nil
}

func (d *AMQPDispatcher) handle(ctx context.Context, h Handler, msg amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		d.log.Error("undecodable delivery job rejected", map[string]interface{}{"messageId": msg.MessageId, "error": err})
		_ = msg.Nack(false, false)
		return
	}

	if err := d.errs.run(ctx, h, job); err != nil {
		if nackErr := msg.Nack(false, false); nackErr != nil {
			d.log.Error("failed to nack delivery job", map[string]interface{}{"jobId": job.ID, "error": nackErr})
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		d.log.Error("failed to ack delivery job", map[string]interface{}{"jobId": job.ID, "error": err})
	}
}

func (d *AMQPDispatcher) Errors() <-chan error {
	return d.errs.ch
}

// Close closes the channel, which ends the consumers, then the connection.
func (d *AMQPDispatcher) Close() error {
	err := d.ch.Close()
	d.wg.Wait()
	if d.conn != nil {
		if cerr := d.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
