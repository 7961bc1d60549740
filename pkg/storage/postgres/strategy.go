package postgres

import (
	"context"

	"tradesignal/internal/strategy"

	"go.uber.org/zap"
)

// StrategyStore is the engine.StrategyRepository implementation backed by
// Postgres. Rows with undecodable condition JSON are skipped, not fatal.
type StrategyStore struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewStrategyStore(client *PostgresClient, logger *zap.Logger) *StrategyStore {
	return &StrategyStore{client: client, logger: logger}
}

// ActiveStrategies loads every active strategy definition.
func (s *StrategyStore) ActiveStrategies(ctx context.Context) ([]strategy.Definition, error) {
	var records []StrategyRecord
	err := s.client.DB.WithContext(ctx).
		Where("active = ?", true).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	defs := make([]strategy.Definition, 0, len(records))
	for _, record := range records {
		def, err := record.ToDefinition()
		if err != nil {
			s.logger.Warn("skipping strategy with bad condition JSON",
				zap.Uint("strategy_id", record.ID), zap.Error(err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Insert stores a new strategy row.
func (s *StrategyStore) Insert(ctx context.Context, def strategy.Definition, active bool) (int64, error) {
	record, err := FromDefinition(def, active)
	if err != nil {
		return 0, err
	}
	if err := s.client.DB.WithContext(ctx).Create(record).Error; err != nil {
		return 0, err
	}
	return int64(record.ID), nil
}

// SetActive toggles a strategy in or out of the realtime evaluation set.
func (s *StrategyStore) SetActive(ctx context.Context, strategyID int64, active bool) error {
	return s.client.DB.WithContext(ctx).
		Model(&StrategyRecord{}).
		Where("id = ?", strategyID).
		Update("active", active).Error
}
