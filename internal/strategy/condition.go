// Package strategy defines user-configured trading conditions and the
// evaluator that turns a tick plus computed indicators into a BUY/SELL/HOLD
// decision.
package strategy

import (
	"time"

	"tradesignal/internal/indicator"
)

// Definition is one active strategy: its identity plus the condition set the
// evaluator runs per tick. Read-only to the realtime pipeline.
type Definition struct {
	ID             int64
	Name           string
	InstrumentID   int64
	InstrumentCode string
	AutoTrade      bool
	Condition      Condition
}

// Condition is the full configuration record for one strategy.
type Condition struct {
	Indicators IndicatorConfig  `json:"indicators"`
	Price      PriceConditions  `json:"price"`
	Volume     VolumeConditions `json:"volume"`
	Time       TimeConditions   `json:"time"`
}

// IndicatorConfig enables individual indicator conditions. A nil entry means
// the indicator is not part of this strategy.
type IndicatorConfig struct {
	RSI            *RSIConfig       `json:"rsi,omitempty"`
	MovingAverage  *MAConfig        `json:"moving_average,omitempty"`
	MACD           *MACDConfig      `json:"macd,omitempty"`
	Bollinger      *BollingerConfig `json:"bollinger,omitempty"`
	VolumeMAPeriod int              `json:"volume_ma_period,omitempty"`
}

type RSIConfig struct {
	Period     int     `json:"period"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
}

type MAConfig struct {
	ShortPeriod int `json:"short_period"`
	LongPeriod  int `json:"long_period"`
}

type MACDConfig struct {
	Fast   int `json:"fast"`
	Slow   int `json:"slow"`
	Signal int `json:"signal"`
}

type BollingerConfig struct {
	Period int     `json:"period"`
	K      float64 `json:"k"`
}

// PriceConditions are absolute price filters plus a minimum tick-to-tick
// movement gate (percent). Zero values disable each one.
type PriceConditions struct {
	Min           float64 `json:"min,omitempty"`
	Max           float64 `json:"max,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`
}

// VolumeConditions gate evaluation on traded volume: an absolute floor and a
// minimum percent increase over the previous tick.
type VolumeConditions struct {
	Min           int64   `json:"min,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`
}

// TimeConditions restrict evaluation to a trading-hours window ("HHMM").
type TimeConditions struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Indicator defaults applied when a config leaves periods zero.
const (
	defaultRSIPeriod       = 14
	defaultMACDFast        = 12
	defaultMACDSlow        = 26
	defaultMACDSignal      = 9
	defaultBollingerPeriod = 20
	defaultBollingerK      = 2.0
)

// ComputeIndicators builds the indicator set this condition needs from the
// given price/volume window. Indicators the strategy did not configure stay
// nil.
func (c Condition) ComputeIndicators(prices []float64, volumes []int64) indicator.Set {
	var set indicator.Set

	if cfg := c.Indicators.RSI; cfg != nil {
		period := cfg.Period
		if period <= 0 {
			period = defaultRSIPeriod
		}
		v := indicator.RSI(prices, period)
		set.RSI = &v
	}

	if cfg := c.Indicators.MovingAverage; cfg != nil {
		short := indicator.SMA(prices, cfg.ShortPeriod)
		long := indicator.SMA(prices, cfg.LongPeriod)
		set.ShortMA = &short
		set.LongMA = &long
	}

	if cfg := c.Indicators.MACD; cfg != nil {
		fast, slow, signal := cfg.Fast, cfg.Slow, cfg.Signal
		if fast <= 0 {
			fast = defaultMACDFast
		}
		if slow <= 0 {
			slow = defaultMACDSlow
		}
		if signal <= 0 {
			signal = defaultMACDSignal
		}
		v := indicator.MACD(prices, fast, slow, signal)
		set.MACD = &v
	}

	if cfg := c.Indicators.Bollinger; cfg != nil {
		period := cfg.Period
		if period <= 0 {
			period = defaultBollingerPeriod
		}
		k := cfg.K
		if k <= 0 {
			k = defaultBollingerK
		}
		v := indicator.BollingerBands(prices, period, k)
		set.Bollinger = &v
	}

	if period := c.Indicators.VolumeMAPeriod; period > 0 {
		v := indicator.VolumeMA(volumes, period)
		set.VolumeMA = &v
	}

	return set
}

// withinWindow reports whether the clock falls inside the configured
// trading-hours window. An unconfigured window always passes.
func (t TimeConditions) withinWindow(ts time.Time) bool {
	if t.Start == "" || t.End == "" {
		return true
	}
	clock := ts.Format("1504")
	return clock >= t.Start && clock <= t.End
}
