package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repo-digest/internal/domain"
	"repo-digest/internal/infra/metrics"
)

// RedisDigestQueue реализует очередь задач на базе Redis lists.
// Взятая задача лежит в списке <key>:processing до подтверждения,
// неуспешные задачи переносятся в <key>:failed.
type RedisDigestQueue struct {
	client *redis.Client
	key    string
}

// NewRedisDigestQueue создаёт очередь по указанному ключу.
func NewRedisDigestQueue(client *redis.Client, key string) *RedisDigestQueue {
	return &RedisDigestQueue{client: client, key: key}
}

func (q *RedisDigestQueue) processingKey() string { return q.key + ":processing" }
func (q *RedisDigestQueue) failedKey() string     { return q.key + ":failed" }

// Enqueue публикует задачу в очередь.
func (q *RedisDigestQueue) Enqueue(ctx context.Context, job domain.DigestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RedisDigestQueue) Receive(ctx context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.DigestJob{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processingKey(), "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return domain.DigestJob{}, nil, ctx.Err()
			}
			return domain.DigestJob{}, nil, err
		}
		ack := q.ackFunc(raw)
		var job domain.DigestJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			_ = ack(false)
			return domain.DigestJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, ack, nil
	}
}

func (q *RedisDigestQueue) ackFunc(raw string) domain.DigestAckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processingKey(), 1, raw)
			if !success {
				pipe.LPush(ctx, q.failedKey(), raw)
			}
			return nil
		})
		return err
	}
}
