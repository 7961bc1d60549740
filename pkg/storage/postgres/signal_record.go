package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"tradesignal/internal/strategy"
)

// SignalRecord is an emitted BUY/SELL signal stored for audit. HOLD
// decisions never reach this table.
type SignalRecord struct {
	ID uint `gorm:"primaryKey"`

	StrategyID     int64  `gorm:"not null;index:idx_signal_strategy"`
	InstrumentID   int64  `gorm:"not null;index:idx_signal_instrument"`
	InstrumentCode string `gorm:"type:varchar(12);not null"`

	SignalType string  `gorm:"type:varchar(4);not null"`
	Confidence float64 `gorm:"type:numeric;not null"`
	Price      float64 `gorm:"type:numeric;not null"`
	Volume     int64   `gorm:"not null"`

	// Indicator snapshot that produced the decision, as JSON.
	Indicators string `gorm:"type:jsonb"`

	Executed  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;index:idx_signal_created"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SignalRecord) TableName() string {
	return "trading_signal"
}

// ToSignalRecord converts an emitted signal into its DB row.
func ToSignalRecord(sig strategy.TradingSignal) (*SignalRecord, error) {
	snapshot, err := json.Marshal(sig.Indicators)
	if err != nil {
		return nil, fmt.Errorf("marshal indicator snapshot: %w", err)
	}

	return &SignalRecord{
		StrategyID:     sig.StrategyID,
		InstrumentID:   sig.InstrumentID,
		InstrumentCode: sig.InstrumentCode,
		SignalType:     string(sig.Type),
		Confidence:     sig.Confidence,
		Price:          sig.Price,
		Volume:         sig.Volume,
		Indicators:     string(snapshot),
		Executed:       sig.Executed,
		CreatedAt:      sig.CreatedAt,
	}, nil
}
