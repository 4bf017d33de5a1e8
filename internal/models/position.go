package models

import "time"

// PositionState — состояние симулируемой позиции по инструменту.
type PositionState string

const (
	PositionFlat PositionState = "FLAT"
	PositionLong PositionState = "LONG"
)

// Order — симулированный маркет-ордер. Пишется в лог ДО смены позиции.
type Order struct {
	Timestamp time.Time `bson:"timestamp"`
	Symbol    string    `bson:"symbol"`
	Side      Side      `bson:"side"`
	Type      string    `bson:"type"`   // MARKET
	Price     float64   `bson:"price"`  // цена на момент сигнала
	Status    string    `bson:"status"` // SIMULATED_FILLED
	SignalDay time.Time `bson:"signal_based_on_date"`
}

const (
	OrderTypeMarket      = "MARKET"
	OrderStatusSimulated = "SIMULATED_FILLED"
)
