package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// RabbitDigestQueue реализует очередь задач поверх AMQP 0-9-1.
type RabbitDigestQueue struct {
	conn  *amqp.Connection
	queue string

	pubMu sync.Mutex
	pub   *amqp.Channel

	consumeOnce sync.Once
	consumeErr  error
	deliveries  <-chan amqp.Delivery
}

// NewRabbitDigestQueue подключается к брокеру и объявляет долговечную очередь.
func NewRabbitDigestQueue(amqpURL, queue string) (*RabbitDigestQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := pub.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitDigestQueue{conn: conn, queue: queue, pub: pub}, nil
}

// Close закрывает соединение с брокером.
func (q *RabbitDigestQueue) Close() error {
	return q.conn.Close()
}

// Enqueue публикует задачу в очередь.
func (q *RabbitDigestQueue) Enqueue(ctx context.Context, job domain.DigestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	q.pubMu.Lock()
	err = q.pub.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	q.pubMu.Unlock()
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *RabbitDigestQueue) startConsumer() error {
	q.consumeOnce.Do(func() {
		ch, err := q.conn.Channel()
		if err != nil {
			q.consumeErr = fmt.Errorf("amqp channel: %w", err)
			return
		}
		if err := ch.Qos(1, 0, false); err != nil {
			q.consumeErr = fmt.Errorf("amqp qos: %w", err)
			return
		}
		q.deliveries, q.consumeErr = ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	return q.consumeErr
}

// Receive блокирующе читает задачу из очереди. Неуспешные задачи отклоняются
// без повторной постановки и уходят в dead-letter, если он настроен у очереди.
func (q *RabbitDigestQueue) Receive(ctx context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	if err := q.startConsumer(); err != nil {
		return domain.DigestJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.DigestJob{}, nil, ctx.Err()
	case d, ok := <-q.deliveries:
		if !ok {
			return domain.DigestJob{}, nil, errors.New("rabbitmq: delivery channel closed")
		}
		var job domain.DigestJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			_ = d.Nack(false, false)
			return domain.DigestJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, false)
		}
		return job, ack, nil
	}
}
