package models

import "time"

// Tick - одно обновление цены из мультиплексированного потока брокера
type Tick struct {
	Token     uint32    `json:"token"`
	LastPrice float64   `json:"last_price"`
	Volume    int64     `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Bar - завершённая OHLCV-свеча фиксированной ширины по одному инструменту
type Bar struct {
	Symbol string    `json:"symbol"`
	Token  uint32    `json:"token"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
