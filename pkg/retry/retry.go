// Package retry - экспоненциальный backoff для запросов к брокеру.
//
// Используется только для идемпотентных вызовов (GET котировок, позиции,
// маржа). Размещение ордеров НЕ ретраится: повтор POST может создать
// дубликат ордера.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config задаёт параметры повторов.
//
// Задержка перед попыткой n: InitialDelay * Multiplier^n,
// ограниченная MaxDelay, плюс jitter в пределах ±JitterFactor.
type Config struct {
	// MaxRetries - всего попыток, включая первую. <=0 означает без лимита.
	MaxRetries int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor размазывает повторы во времени, [0, 1].
	JitterFactor float64

	// RetryIf решает, имеет ли смысл повторять после данной ошибки.
	// nil = повторять любую.
	RetryIf func(error) bool

	// OnRetry вызывается перед паузой между попытками.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig - профиль для REST вызовов Kite: 4 попытки,
// 100ms/200ms/400ms между ними.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (c *Config) normalize() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	} else if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
}

func (c *Config) backoff(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Multiplier
		if d >= float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
			break
		}
	}
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do выполняет operation до первого успеха.
//
// Возвращает nil при успехе, иначе последнюю ошибку операции. Отмена
// контекста прерывает и паузу, и цикл; если ни одна попытка ещё не
// выполнялась, возвращается ошибка контекста.
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.normalize()

	var lastErr error
	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return lastErr
		}
		if cfg.MaxRetries > 0 && attempt == cfg.MaxRetries-1 {
			return lastErr
		}

		delay := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}
	return lastErr
}

// DoWithResult - типизированная обёртка над Do для операций с результатом.
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = operation()
		return opErr
	}, cfg)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// PermanentError помечает ошибку, повтор которой бессмыслен:
// отклонение по марже, невалидный символ, просроченный токен.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent оборачивает err так, что NotPermanent остановит повторы.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// NotPermanent - фильтр RetryIf: повторять всё, кроме PermanentError.
func NotPermanent(err error) bool {
	var perm *PermanentError
	return !errors.As(err, &perm)
}
