// Package ratelimit - token bucket под лимиты Kite Connect API.
//
// Брокер лимитирует каждую категорию запросов отдельно (ордера 10/сек,
// котировки 1/сек, история 3/сек), поэтому лимитер держит отдельное
// ведро на категорию. Burst нужен парному исполнению: обе ноги позиции
// уходят одновременно и не должны ждать друг друга.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket - одно ведро: пополняется со скоростью rate токенов/сек
// до ёмкости burst, запрос стоит один токен.
type Bucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

// NewBucket создаёт полное ведро. Некорректные параметры приводятся
// к рабочим: rate<=0 становится 1, ёмкость не меньше одного токена.
// burst ниже rate допустим: высокая скорость пополнения при ёмкости 1
// даёт строгий "не чаще чем" без всплесков.
func NewBucket(rate, burst float64) *Bucket {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Bucket{rate: rate, burst: burst, tokens: burst, last: time.Now()}
}

// credit добавляет токены за время с последнего обращения. Под mu.
func (b *Bucket) credit(now time.Time) {
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.last = now
}

// take снимает токен, либо возвращает сколько ждать до его появления.
func (b *Bucket) take() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(time.Now())
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second)), false
}

// Allow - неблокирующая попытка снять токен.
func (b *Bucket) Allow() bool {
	_, ok := b.take()
	return ok
}

// Wait блокирует до токена или отмены контекста.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		wait, ok := b.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// MultiLimiter - вёдра по категориям запросов брокера.
type MultiLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{buckets: make(map[string]*Bucket)}
}

// Add регистрирует лимит категории. Повторный Add заменяет ведро.
func (ml *MultiLimiter) Add(category string, rate, burst float64) {
	ml.mu.Lock()
	ml.buckets[category] = NewBucket(rate, burst)
	ml.mu.Unlock()
}

// Wait ожидает токен категории. Незарегистрированная категория
// не лимитируется.
func (ml *MultiLimiter) Wait(ctx context.Context, category string) error {
	ml.mu.RLock()
	b, ok := ml.buckets[category]
	ml.mu.RUnlock()
	if !ok {
		return nil
	}
	return b.Wait(ctx)
}
