package bot

import (
	"time"

	"go.uber.org/zap"

	"statarb/internal/models"
	"statarb/pkg/utils"
)

// FeedAggregator сворачивает поток тиков в бары фиксированного интервала.
// Бар инструмента закрывается и публикуется, когда приходит первый тик
// следующего интервала (rollover по времени тика, не по wall-clock).
type FeedAggregator struct {
	interval time.Duration
	symbols  map[uint32]string // token -> торговый символ
	buckets  map[uint32]*models.Bar
	out      chan models.Bar
	log      *zap.Logger

	droppedBars uint64
}

// NewFeedAggregator создаёт агрегатор. symbols задаёт соответствие
// токен -> символ; тики неизвестных токенов отбрасываются.
func NewFeedAggregator(interval time.Duration, symbols map[uint32]string, buffer int, log *zap.Logger) *FeedAggregator {
	return &FeedAggregator{
		interval: interval,
		symbols:  symbols,
		buckets:  make(map[uint32]*models.Bar),
		out:      make(chan models.Bar, buffer),
		log:      log,
	}
}

// Bars возвращает канал готовых баров
func (f *FeedAggregator) Bars() <-chan models.Bar {
	return f.out
}

// OnTick обрабатывает один тик. Вызывается только горутиной
// чтения тикера, поэтому блокировок нет.
func (f *FeedAggregator) OnTick(t models.Tick) {
	symbol, ok := f.symbols[t.Token]
	if !ok {
		return
	}
	if t.LastPrice <= 0 {
		return
	}

	start := utils.BarBucket(t.Timestamp, f.interval)

	cur, ok := f.buckets[t.Token]
	if ok && start.After(cur.Start) {
		f.emit(*cur)
		ok = false
	}
	if !ok {
		f.buckets[t.Token] = &models.Bar{
			Symbol: symbol,
			Token:  t.Token,
			Start:  start,
			End:    start.Add(f.interval),
			Open:   t.LastPrice,
			High:   t.LastPrice,
			Low:    t.LastPrice,
			Close:  t.LastPrice,
			Volume: t.Volume,
		}
		return
	}

	if t.LastPrice > cur.High {
		cur.High = t.LastPrice
	}
	if t.LastPrice < cur.Low {
		cur.Low = t.LastPrice
	}
	cur.Close = t.LastPrice
	cur.Volume = t.Volume
}

// Flush закрывает и публикует все недостроенные бары
// (конец сессии или остановка движка)
func (f *FeedAggregator) Flush() {
	for token, bar := range f.buckets {
		f.emit(*bar)
		delete(f.buckets, token)
	}
}

// Close публикует недостроенные бары и закрывает выходной канал.
// Потребитель дочитывает буфер и завершается сам. Вызывать после
// остановки тикера: новых тиков быть не должно.
func (f *FeedAggregator) Close() {
	f.Flush()
	close(f.out)
}

func (f *FeedAggregator) emit(bar models.Bar) {
	select {
	case f.out <- bar:
	default:
		// Потребитель отстал. Бар теряется: лучше пропущенный бар,
		// чем блокировка горутины чтения тикера.
		f.droppedBars++
		f.log.Warn("bar dropped, consumer too slow",
			zap.String("symbol", bar.Symbol),
			zap.Time("start", bar.Start))
	}
}
