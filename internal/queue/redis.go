package queue

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// brpopTimeout bounds each blocking pop so the loop can observe cancellation.
const brpopTimeout = 5 * time.Second

// redisQueue implements Queue as a redis list: LPUSH to enqueue, blocking
// BRPOP to consume.
type redisQueue struct {
	client *goredis.Client
	key    string
	logger *zap.Logger
}

func newRedisQueue(lc fx.Lifecycle, cfg config.Queue, logger *zap.Logger) *redisQueue {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	q := &redisQueue{client: client, key: cfg.Key, logger: logger}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			logger.Info("redis queue connected", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Key))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis queue")

			return client.Close()
		},
	})

	return q
}

func (q *redisQueue) Enqueue(ctx context.Context, orderID string) error {
	return q.client.LPush(ctx, q.key, orderID).Err()
}

func (q *redisQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := q.client.BRPop(ctx, brpopTimeout, q.key).Result()
		if errors.Is(err, goredis.Nil) {
			// Timed out with an empty list; keep waiting.
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			q.logger.Error("redis queue pop failed", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			continue
		}

		if err := handler(ctx, res[1]); err != nil {
			// The popped id is gone; dropping it here avoids poison loops.
			q.logger.Error("queue handler failed", zap.String("order_id", res[1]), zap.Error(err))
		}
	}
}

func (q *redisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
