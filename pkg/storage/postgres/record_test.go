package postgres

import (
	"strings"
	"testing"
	"time"

	"tradesignal/internal/indicator"
	"tradesignal/internal/strategy"
)

func TestToSignalRecord(t *testing.T) {
	rsi := 25.5
	sig := strategy.TradingSignal{
		StrategyID:     3,
		InstrumentID:   7,
		InstrumentCode: "005930",
		Type:           strategy.SignalBuy,
		Confidence:     1.0,
		Price:          71500,
		Volume:         120,
		Indicators:     indicator.Set{RSI: &rsi},
		CreatedAt:      time.Date(2024, 1, 5, 9, 30, 15, 0, time.UTC),
	}

	record, err := ToSignalRecord(sig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.StrategyID != 3 || record.InstrumentID != 7 {
		t.Errorf("unexpected ids: %+v", record)
	}
	if record.SignalType != "BUY" || record.Confidence != 1.0 {
		t.Errorf("unexpected decision columns: %+v", record)
	}
	if !strings.Contains(record.Indicators, "25.5") {
		t.Errorf("indicator snapshot missing RSI value: %s", record.Indicators)
	}
	if record.Executed {
		t.Error("fresh signals must not be marked executed")
	}
}

func TestStrategyDefinitionRoundtrip(t *testing.T) {
	def := strategy.Definition{
		Name:           "rsi reversal",
		InstrumentID:   7,
		InstrumentCode: "005930",
		AutoTrade:      true,
		Condition: strategy.Condition{
			Indicators: strategy.IndicatorConfig{
				RSI: &strategy.RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
			},
			Price:  strategy.PriceConditions{ChangePercent: 1.5},
			Volume: strategy.VolumeConditions{Min: 1000},
			Time:   strategy.TimeConditions{Start: "0900", End: "1530"},
		},
	}

	record, err := FromDefinition(def, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.Active || !record.AutoTrade {
		t.Errorf("unexpected flags: %+v", record)
	}

	got, err := record.ToDefinition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != def.Name || got.InstrumentCode != def.InstrumentCode {
		t.Errorf("identity columns lost in roundtrip: %+v", got)
	}
	if got.Condition.Indicators.RSI == nil || got.Condition.Indicators.RSI.Oversold != 30 {
		t.Errorf("RSI config lost in roundtrip: %+v", got.Condition)
	}
	if got.Condition.Volume.Min != 1000 || got.Condition.Time.Start != "0900" {
		t.Errorf("gate conditions lost in roundtrip: %+v", got.Condition)
	}
	if got.Condition.Price.ChangePercent != 1.5 {
		t.Errorf("change-percent threshold lost in roundtrip: %+v", got.Condition.Price)
	}
}

func TestToDefinitionBadJSON(t *testing.T) {
	record := &StrategyRecord{ID: 9, Conditions: "{not json"}
	if _, err := record.ToDefinition(); err == nil {
		t.Error("expected decode error for malformed conditions")
	}
}
