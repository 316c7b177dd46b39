package utils

import (
	"time"
)

// time.go - утилиты для работы с торговым временем
//
// Назначение:
// Вспомогательные функции для агрегации баров и контроля торговой
// сессии (принудительное закрытие в конце дня).
//
// Функции:
// - BarBucket: начало бара фиксированной ширины для отметки времени
// - AfterClock: сравнение времени суток с порогом HH:MM
// - GetDayStartFrom: начало дня в UTC

// BarBucket возвращает начало бара, в который попадает отметка t.
//
// Граница бара вычисляется усечением к кратному interval:
// тик 10:03:27 при минутных барах попадает в бар 10:03:00.
//
// Параметры:
//   - t: отметка времени тика
//   - interval: ширина бара (> 0)
//
// Возвращает:
//   - Начало бара; при некорректном interval исходное время
func BarBucket(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	return t.Truncate(interval)
}

// AfterClock проверяет, наступило ли время суток hhmm ("15:10")
// для отметки t в её собственной timezone.
//
// Возвращает false при пустой или некорректной строке hhmm.
func AfterClock(t time.Time, hhmm string) bool {
	if hhmm == "" {
		return false
	}
	mark, err := time.Parse("15:04", hhmm)
	if err != nil {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	threshold := mark.Hour()*60 + mark.Minute()
	return cur >= threshold
}

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameTradingDay проверяет, относятся ли две отметки к одному
// календарному дню UTC. Используется для сброса дневных лимитов.
func SameTradingDay(a, b time.Time) bool {
	return GetDayStartFrom(a).Equal(GetDayStartFrom(b))
}
