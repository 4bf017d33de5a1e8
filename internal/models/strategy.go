package models

import "time"

// Side как в ордерах биржи: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal — факт пересечения SMA. Append-only, не мутируется.
type Signal struct {
	Timestamp        time.Time `bson:"timestamp"` // полночь завершённого дня
	Symbol           string    `bson:"symbol"`
	Type             Side      `bson:"signal_type"`
	Reason           string    `bson:"reason"`
	PriceAtSignal    float64   `bson:"price_at_signal"`
	SMAShort         float64   `bson:"sma_short"`
	SMALong          float64   `bson:"sma_long"`
	CalculationRanAt time.Time `bson:"calculation_ran_at"`
}
