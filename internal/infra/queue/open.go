package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"repo-digest/internal/domain"
)

const (
	BackendRabbitMQ = "rabbitmq"
	BackendRedis    = "redis"
)

// Open выбирает реализацию очереди по имени бэкенда. Возвращаемая функция
// освобождает соединение брокера.
func Open(backend, rabbitURL string, client *redis.Client, key string) (domain.DigestQueue, func() error, error) {
	switch backend {
	case BackendRabbitMQ:
		q, err := NewRabbitDigestQueue(rabbitURL, key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	case BackendRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("queue backend %q requires REDIS_ADDR", backend)
		}
		return NewRedisDigestQueue(client, key), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}
