package models

import "time"

// Режимы исполнения. В paper-режиме ордера не уходят брокеру,
// но журнал сделок ведётся так же, как в live.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// TradeRecord - строка append-only журнала сделок.
// Журнал никогда не обновляется и не удаляется, только вставки.
type TradeRecord struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Side      string    `json:"side" db:"side"`
	Quantity  int       `json:"qty" db:"qty"`
	Price     float64   `json:"price" db:"price"`
	Strategy  string    `json:"strategy" db:"strategy"`
	Mode      string    `json:"mode" db:"mode"`
	OrderTag  string    `json:"order_tag" db:"order_tag"`
}
