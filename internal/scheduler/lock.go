package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker выдаёт эксклюзивную блокировку на время одного прохода.
type Locker interface {
	// TryLock возвращает release и true, если блокировка взята.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, bool, error)
}

// Снимает ключ, только если он всё ещё принадлежит нам.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker - блокировка через SET NX PX со случайным токеном.
type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	if key == "" {
		return nil, false, errors.New("lock key cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}

	token := uuid.NewString()
	_, err := l.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		// NX не выполнен: ключ держит другой экземпляр
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// LocalLocker - блокировка в пределах процесса, когда redis не настроен.
type LocalLocker struct {
	held chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(chan struct{}, 1)}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	select {
	case l.held <- struct{}{}:
		return func(context.Context) error {
			<-l.held
			return nil
		}, true, nil
	default:
		return nil, false, nil
	}
}
