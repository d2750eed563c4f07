package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Deduper отмечает уже отправленные push-уведомления, чтобы повторная доставка
// одного и того же перехода не дала второй push.
type Deduper struct {
	c      *redis.Client
	prefix string
}

func NewDeduper(addr string) *Deduper {
	return &Deduper{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "push:dedup:",
	}
}

// Claim делает INCR по ключу и ставит TTL. Возвращает true только первому вызвавшему в окне.
func (d *Deduper) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	pipe := d.c.TxPipeline()
	incr := pipe.Incr(ctx, d.prefix+key)
	pipe.Expire(ctx, d.prefix+key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "redis dedup")
	}
	return incr.Val() == 1, nil
}

// Release снимает отметку, чтобы неудачную отправку можно было повторить.
func (d *Deduper) Release(ctx context.Context, key string) error {
	if err := d.c.Del(ctx, d.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis dedup release")
	}
	return nil
}

func (d *Deduper) Close() error {
	return d.c.Close()
}
