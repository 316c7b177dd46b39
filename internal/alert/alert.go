// Package alert - шина оповещений движка. Продьюсеры пишут неблокирующе,
// потребители (лог, внешние нотификаторы) читают из каналов.
package alert

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"statarb/internal/models"
)

// Sink принимает оповещение. Publish не должен блокировать продьюсера.
type Sink interface {
	Publish(level, source, message string, data map[string]interface{})
}

// Bus раздаёт оповещения подписчикам через буферизованные каналы.
// Медленный подписчик теряет сообщения, а не тормозит торговый путь.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs []chan models.Alert

	dropped atomic.Uint64
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe возвращает канал подписчика с буфером size
func (b *Bus) Subscribe(size int) <-chan models.Alert {
	ch := make(chan models.Alert, size)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish рассылает оповещение. Всегда дублирует в лог:
// даже без подписчиков CRITICAL не пропадает.
func (b *Bus) Publish(level, source, message string, data map[string]interface{}) {
	a := models.Alert{
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Message:   message,
		Data:      data,
	}

	fields := []zap.Field{
		zap.String("source", source),
		zap.Any("data", data),
	}
	switch level {
	case models.AlertCritical:
		b.log.Error(message, fields...)
	case models.AlertWarning:
		b.log.Warn(message, fields...)
	default:
		b.log.Info(message, fields...)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- a:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped возвращает число потерянных из-за переполнения сообщений
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// NopSink - заглушка для тестов
type NopSink struct{}

func (NopSink) Publish(string, string, string, map[string]interface{}) {}
