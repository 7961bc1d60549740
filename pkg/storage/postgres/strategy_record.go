package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"tradesignal/internal/strategy"
)

// StrategyRecord is one user-defined strategy. Condition thresholds and
// periods live in a JSON column; the realtime core reads them, the editing
// surface (out of scope here) writes them.
type StrategyRecord struct {
	ID uint `gorm:"primaryKey"`

	Name           string `gorm:"type:text;not null"`
	InstrumentID   int64  `gorm:"not null"`
	InstrumentCode string `gorm:"type:varchar(12);not null;index:idx_strategy_code"`

	Conditions string `gorm:"type:jsonb;not null"`

	AutoTrade bool `gorm:"not null;default:false"`
	Active    bool `gorm:"not null;default:true;index:idx_strategy_active"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (StrategyRecord) TableName() string {
	return "trading_strategy"
}

// ToDefinition decodes the condition column into the evaluator's view of
// the strategy.
func (r *StrategyRecord) ToDefinition() (strategy.Definition, error) {
	var cond strategy.Condition
	if err := json.Unmarshal([]byte(r.Conditions), &cond); err != nil {
		return strategy.Definition{}, fmt.Errorf("decode conditions for strategy %d: %w", r.ID, err)
	}

	return strategy.Definition{
		ID:             int64(r.ID),
		Name:           r.Name,
		InstrumentID:   r.InstrumentID,
		InstrumentCode: r.InstrumentCode,
		AutoTrade:      r.AutoTrade,
		Condition:      cond,
	}, nil
}

// FromDefinition encodes a definition into its DB row, used by tests and
// seeding.
func FromDefinition(def strategy.Definition, active bool) (*StrategyRecord, error) {
	conditions, err := json.Marshal(def.Condition)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}

	return &StrategyRecord{
		Name:           def.Name,
		InstrumentID:   def.InstrumentID,
		InstrumentCode: def.InstrumentCode,
		Conditions:     string(conditions),
		AutoTrade:      def.AutoTrade,
		Active:         active,
	}, nil
}
