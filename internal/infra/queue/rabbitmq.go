package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"game-pulse/internal/domain"
	"game-pulse/internal/infra/metrics"
)

// RabbitJobEvents публикует события завершённых запусков в очередь RabbitMQ.
// Потребители — смежные воркеры (например, обновление эмбеддингов) и
// операционный мониторинг.
type RabbitJobEvents struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitJobEvents подключается к RabbitMQ и объявляет очередь.
func NewRabbitJobEvents(url, queue string) (*RabbitJobEvents, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}
	return &RabbitJobEvents{conn: conn, channel: channel, queue: queue}, nil
}

// PublishJobEvent публикует событие о завершении запуска.
func (q *RabbitJobEvents) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("публикация события: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (q *RabbitJobEvents) Close() error {
	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
