package strategy

import (
	"testing"
	"time"

	"tradesignal/internal/indicator"
)

func fptr(v float64) *float64 { return &v }

var noon = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

func TestEvaluateNoConditions(t *testing.T) {
	got := Evaluate(Condition{}, 71500, 0, 100, 0, indicator.Set{}, noon)
	if got.Type != SignalHold || got.Confidence != 0 {
		t.Errorf("expected {HOLD, 0}, got %+v", got)
	}
}

func TestEvaluateRSIOversold(t *testing.T) {
	cond := Condition{Indicators: IndicatorConfig{
		RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
	}}
	set := indicator.Set{RSI: fptr(25)}

	got := Evaluate(cond, 71500, 0, 100, 0, set, noon)
	if got.Type != SignalBuy {
		t.Fatalf("expected BUY, got %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %.2f", got.Confidence)
	}
}

func TestEvaluateRSIOverbought(t *testing.T) {
	cond := Condition{Indicators: IndicatorConfig{
		RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
	}}
	set := indicator.Set{RSI: fptr(85)}

	got := Evaluate(cond, 71500, 0, 100, 0, set, noon)
	if got.Type != SignalSell || got.Confidence != 1.0 {
		t.Errorf("expected {SELL, 1.0}, got %+v", got)
	}
}

func TestEvaluateSplitVoteHolds(t *testing.T) {
	// RSI votes buy, moving average votes sell: 0.5 is not a majority.
	cond := Condition{Indicators: IndicatorConfig{
		RSI:           &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		MovingAverage: &MAConfig{ShortPeriod: 5, LongPeriod: 20},
	}}
	set := indicator.Set{
		RSI:     fptr(25),
		ShortMA: fptr(70000),
		LongMA:  fptr(71000),
	}

	got := Evaluate(cond, 71500, 0, 100, 0, set, noon)
	if got.Type != SignalHold || got.Confidence != 0 {
		t.Errorf("expected {HOLD, 0} on split vote, got %+v", got)
	}
}

func TestEvaluateVolumeGate(t *testing.T) {
	cond := Condition{
		Indicators: IndicatorConfig{
			RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Volume: VolumeConditions{Min: 1000},
	}
	set := indicator.Set{RSI: fptr(25)}

	got := Evaluate(cond, 71500, 0, 500, 0, set, noon)
	if got.Type != SignalHold {
		t.Errorf("volume gate must override votes, got %+v", got)
	}
}

func TestEvaluateTimeWindowGate(t *testing.T) {
	cond := Condition{
		Indicators: IndicatorConfig{
			RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Time: TimeConditions{Start: "0900", End: "1530"},
	}
	set := indicator.Set{RSI: fptr(25)}

	afterClose := time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC)
	if got := Evaluate(cond, 71500, 0, 100, 0, set, afterClose); got.Type != SignalHold {
		t.Errorf("expected HOLD outside trading hours, got %+v", got)
	}

	if got := Evaluate(cond, 71500, 0, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY inside trading hours, got %+v", got)
	}
}

func TestEvaluatePriceChangePercentGate(t *testing.T) {
	cond := Condition{
		Indicators: IndicatorConfig{
			RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Price: PriceConditions{ChangePercent: 1.0},
	}
	set := indicator.Set{RSI: fptr(25)}

	// 71500 vs 71400 is a 0.14% move, below the 1% threshold.
	if got := Evaluate(cond, 71500, 71400, 100, 0, set, noon); got.Type != SignalHold {
		t.Errorf("expected HOLD below movement threshold, got %+v", got)
	}
	// 71500 vs 70000 is a 2.14% move.
	if got := Evaluate(cond, 71500, 70000, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY above movement threshold, got %+v", got)
	}
	// Downward moves count by magnitude.
	if got := Evaluate(cond, 70000, 71500, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY on a large downward move, got %+v", got)
	}
	// No reference point yet: the gate passes.
	if got := Evaluate(cond, 71500, 0, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY without a prior price, got %+v", got)
	}
}

func TestEvaluateVolumeChangePercentGate(t *testing.T) {
	cond := Condition{
		Indicators: IndicatorConfig{
			RSI: &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Volume: VolumeConditions{ChangePercent: 50},
	}
	set := indicator.Set{RSI: fptr(25)}

	// 120 vs 100 is a 20% rise, below the 50% threshold.
	if got := Evaluate(cond, 71500, 0, 120, 100, set, noon); got.Type != SignalHold {
		t.Errorf("expected HOLD below volume surge threshold, got %+v", got)
	}
	// 200 vs 100 is a 100% rise.
	if got := Evaluate(cond, 71500, 0, 200, 100, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY on a volume surge, got %+v", got)
	}
	// No reference point yet: the gate passes.
	if got := Evaluate(cond, 71500, 0, 120, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY without a prior volume, got %+v", got)
	}
}

func TestEvaluatePriceFilters(t *testing.T) {
	cond := Condition{Price: PriceConditions{Max: 70000}}
	if got := Evaluate(cond, 71500, 0, 100, 0, indicator.Set{}, noon); got.Type != SignalSell {
		t.Errorf("expected SELL above max price, got %+v", got)
	}

	cond = Condition{Price: PriceConditions{Min: 80000}}
	if got := Evaluate(cond, 71500, 0, 100, 0, indicator.Set{}, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY below min price, got %+v", got)
	}
}

func TestEvaluateMACDVote(t *testing.T) {
	cond := Condition{Indicators: IndicatorConfig{MACD: &MACDConfig{}}}
	set := indicator.Set{MACD: &indicator.MACDValue{MACD: 12.5, Signal: 10.1, Histogram: 2.4}}

	if got := Evaluate(cond, 71500, 0, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY on bullish MACD, got %+v", got)
	}

	set = indicator.Set{MACD: &indicator.MACDValue{MACD: -12.5, Signal: -10.1, Histogram: -2.4}}
	if got := Evaluate(cond, 71500, 0, 100, 0, set, noon); got.Type != SignalSell {
		t.Errorf("expected SELL on bearish MACD, got %+v", got)
	}
}

func TestEvaluateBollingerVote(t *testing.T) {
	cond := Condition{Indicators: IndicatorConfig{Bollinger: &BollingerConfig{}}}
	set := indicator.Set{Bollinger: &indicator.Bands{Upper: 72000, Middle: 71000, Lower: 70000}}

	if got := Evaluate(cond, 69900, 0, 100, 0, set, noon); got.Type != SignalBuy {
		t.Errorf("expected BUY at lower band, got %+v", got)
	}
	if got := Evaluate(cond, 72100, 0, 100, 0, set, noon); got.Type != SignalSell {
		t.Errorf("expected SELL at upper band, got %+v", got)
	}
	if got := Evaluate(cond, 71000, 0, 100, 0, set, noon); got.Type != SignalHold {
		t.Errorf("expected HOLD between bands, got %+v", got)
	}
}

func TestEvaluateMajorityConfidence(t *testing.T) {
	// Two buy votes out of three conditions: confidence is the ratio.
	cond := Condition{Indicators: IndicatorConfig{
		RSI:           &RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		MovingAverage: &MAConfig{ShortPeriod: 5, LongPeriod: 20},
		MACD:          &MACDConfig{},
	}}
	set := indicator.Set{
		RSI:     fptr(25),
		ShortMA: fptr(72000),
		LongMA:  fptr(71000),
		MACD:    &indicator.MACDValue{}, // neutral, votes neither side
	}

	got := Evaluate(cond, 71500, 0, 100, 0, set, noon)
	if got.Type != SignalBuy {
		t.Fatalf("expected BUY, got %+v", got)
	}
	want := 2.0 / 3.0
	if got.Confidence != want {
		t.Errorf("expected confidence %.4f, got %.4f", want, got.Confidence)
	}
}

func TestComputeIndicatorsOnlyConfigured(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 104}
	volumes := []int64{10, 20, 30, 40, 50}

	cond := Condition{Indicators: IndicatorConfig{
		MovingAverage: &MAConfig{ShortPeriod: 2, LongPeriod: 4},
	}}

	set := cond.ComputeIndicators(prices, volumes)
	if set.ShortMA == nil || set.LongMA == nil {
		t.Fatal("expected moving averages to be computed")
	}
	if *set.ShortMA != 103.5 {
		t.Errorf("unexpected short MA: %.2f", *set.ShortMA)
	}
	if set.RSI != nil || set.MACD != nil || set.Bollinger != nil || set.VolumeMA != nil {
		t.Errorf("unconfigured indicators must stay nil: %+v", set)
	}
}
