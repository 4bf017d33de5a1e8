package service

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signal_bot/internal/models"
)

const (
	dailyClosesCollection = "daily_derived_prices"
	signalsCollection     = "signals"
	ordersCollection      = "orders"
)

// Store — документное хранилище: дневные закрытия (upsert по date+symbol),
// сигналы и ордера (append-only).
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// UpsertDailyClose — одна запись на (date, symbol): повторный прогон
// перезаписывает, дублей не бывает.
func (s *Store) UpsertDailyClose(ctx context.Context, dc models.DailyClose) error {
	filter := bson.M{"date": dc.Date, "symbol": dc.Symbol}
	update := bson.M{"$set": dc}
	_, err := s.db.Collection(dailyClosesCollection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "upsert daily close %s/%s", dc.Date, dc.Symbol)
	}
	return nil
}

func (s *Store) InsertSignal(ctx context.Context, sig models.Signal) error {
	if _, err := s.db.Collection(signalsCollection).InsertOne(ctx, sig); err != nil {
		return errors.Wrap(err, "insert signal")
	}
	return nil
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) error {
	if _, err := s.db.Collection(ordersCollection).InsertOne(ctx, o); err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}
