package models

import "time"

// Tick — одно обновление best bid/ask из фида. Живёт только в очереди,
// после свёртки в агрегаторе выбрасывается.
type Tick struct {
	Ts       time.Time
	Bid      float64
	Ask      float64
	UpdateID int64
}

// Mid — средняя между лучшим бидом и аском.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2.0
}

// Day — календарный день тика (UTC, полночь).
func (t Tick) Day() time.Time {
	u := t.Ts.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyClose — синтетическая цена закрытия дня: последний mid до перехода
// границы суток. Одна запись на (day, symbol), upsert.
type DailyClose struct {
	Date         string    `bson:"date"` // YYYY-MM-DD
	Symbol       string    `bson:"symbol"`
	Price        float64   `bson:"price"`
	TimestampUTC time.Time `bson:"timestamp_utc"`
	IsHistorical bool      `bson:"is_historical,omitempty"`
}

// CloseEvent — завершённый день и его derived close; уходит в детектор.
type CloseEvent struct {
	Day    time.Time // UTC, полночь
	Symbol string
	Price  float64
}

const DateLayout = "2006-01-02"
