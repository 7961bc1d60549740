package postgres

import (
	"context"

	"tradesignal/internal/strategy"
)

// SignalStore is the engine.SignalSink implementation backed by Postgres.
type SignalStore struct {
	client *PostgresClient
}

func NewSignalStore(client *PostgresClient) *SignalStore {
	return &SignalStore{client: client}
}

// Persist inserts one emitted signal and returns its row id.
func (s *SignalStore) Persist(ctx context.Context, sig strategy.TradingSignal) (int64, error) {
	record, err := ToSignalRecord(sig)
	if err != nil {
		return 0, err
	}

	if err := s.client.DB.WithContext(ctx).Create(record).Error; err != nil {
		return 0, err
	}
	return int64(record.ID), nil
}

// MarkExecuted flags a signal row after its order was accepted.
func (s *SignalStore) MarkExecuted(ctx context.Context, signalID int64) error {
	return s.client.DB.WithContext(ctx).
		Model(&SignalRecord{}).
		Where("id = ?", signalID).
		Update("executed", true).Error
}

// RecentSignals returns the latest signals for a strategy, newest first.
func (s *SignalStore) RecentSignals(ctx context.Context, strategyID int64, limit int) ([]SignalRecord, error) {
	var records []SignalRecord
	err := s.client.DB.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error

	if err != nil {
		return nil, err
	}
	return records, nil
}
