package utils

import (
	"math"
	"strings"
)

// math.go - математические утилиты для парной торговли
//
// Назначение:
// Вспомогательные математические функции для торговых операций.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToTick: округление цены до биржевого шага
// - MarketableLimitPrice: цена маркетабельного лимитника с буфером
// - CalculatePNL: прибыль/убыток одной ноги
// - Clamp: ограничение значения диапазоном

// RoundToTick округляет цену к ближайшему кратному шага цены.
//
// Параметры:
//   - price: исходная цена
//   - tick: шаг цены биржи (для NSE обычно 0.05)
//
// Возвращает:
//   - Округлённую цену, кратную tick
//   - Если tick <= 0, возвращает исходную цену
//
// Примеры:
//   - RoundToTick(101.234, 0.05) = 101.25
//   - RoundToTick(101.22, 0.05) = 101.20
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// MarketableLimitPrice строит цену агрессивного лимитного ордера.
//
// Покупка выставляется чуть ВЫШЕ последней цены, продажа чуть НИЖЕ:
// ордер исполняется как рыночный, но цена исполнения ограничена.
//
// Параметры:
//   - ltp: последняя цена сделки
//   - isBuy: направление ордера
//   - bufferPct: буфер в процентах (0.3 = 0.3%)
//   - tick: шаг цены
//
// Возвращает:
//   - Цену лимитника, округлённую до tick
//
// Примеры:
//   - MarketableLimitPrice(100.0, true, 0.3, 0.05) = 100.30
//   - MarketableLimitPrice(100.0, false, 0.3, 0.05) = 99.70
func MarketableLimitPrice(ltp float64, isBuy bool, bufferPct, tick float64) float64 {
	factor := 1 + bufferPct/100
	if !isBuy {
		factor = 1 - bufferPct/100
	}
	return RoundToTick(ltp*factor, tick)
}

// CalculatePNL расчитывает прибыль/убыток одной ноги позиции.
//
// Формулы:
//   - Long PNL = (P_current - P_entry) × qty
//   - Short PNL = (P_entry - P_current) × qty
//
// Параметры:
//   - side: "LONG" или "SHORT" (регистр не важен)
//   - entryPrice: цена входа
//   - currentPrice: текущая цена
//   - quantity: объём в штуках
//
// Возвращает:
//   - PNL в валюте счёта, 0 при некорректном объёме или стороне
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}
	switch strings.ToUpper(side) {
	case "LONG":
		return (currentPrice - entryPrice) * quantity
	case "SHORT":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// PercentDeviation возвращает относительное отклонение actual от target
// в процентах. При нулевом target возвращает 0.
func PercentDeviation(actual, target float64) float64 {
	if target == 0 {
		return 0
	}
	return (actual - target) / target * 100
}
