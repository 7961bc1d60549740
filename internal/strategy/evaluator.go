package strategy

import (
	"math"
	"time"

	"tradesignal/internal/indicator"
)

// SignalType is the trading decision a strategy evaluation produces.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Decision is the outcome of one evaluation. Confidence is the winning vote
// ratio and is only non-zero for BUY/SELL.
type Decision struct {
	Type       SignalType
	Confidence float64
}

var hold = Decision{Type: SignalHold}

// TradingSignal is an emitted BUY/SELL decision with the indicator values
// that produced it, snapshotted for audit.
type TradingSignal struct {
	StrategyID     int64
	InstrumentID   int64
	InstrumentCode string
	Type           SignalType
	Confidence     float64
	Price          float64
	Volume         int64
	Indicators     indicator.Set
	CreatedAt      time.Time
	Executed       bool
}

// Evaluate runs strict-majority voting over the configured
// conditions: each configured and evaluable condition casts at most one
// BUY or SELL vote, and a decision is only emitted when one side holds a
// strict majority. The volume floor, trading-hours window, and change-percent
// thresholds are absolute gates, not votes. prevPrice and prevVolume are the
// prior point in the instrument's history; zero means no reference exists yet
// and the change-percent gates pass.
func Evaluate(cond Condition, price, prevPrice float64, volume, prevVolume int64, set indicator.Set, ts time.Time) Decision {
	if !cond.Time.withinWindow(ts) {
		return hold
	}
	if cond.Volume.Min > 0 && volume < cond.Volume.Min {
		return hold
	}
	if cond.Price.ChangePercent > 0 && prevPrice > 0 {
		pct := math.Abs(price-prevPrice) / prevPrice * 100
		if pct < cond.Price.ChangePercent {
			return hold
		}
	}
	if cond.Volume.ChangePercent > 0 && prevVolume > 0 {
		pct := (float64(volume) - float64(prevVolume)) / float64(prevVolume) * 100
		if pct < cond.Volume.ChangePercent {
			return hold
		}
	}

	var buyVotes, sellVotes, total int

	if cfg := cond.Indicators.RSI; cfg != nil && set.RSI != nil {
		total++
		switch {
		case *set.RSI < cfg.Oversold:
			buyVotes++
		case *set.RSI > cfg.Overbought:
			sellVotes++
		}
	}

	if cond.Indicators.MovingAverage != nil && set.ShortMA != nil && set.LongMA != nil {
		total++
		switch {
		case *set.ShortMA > *set.LongMA:
			buyVotes++
		case *set.ShortMA < *set.LongMA:
			sellVotes++
		}
	}

	if cond.Indicators.MACD != nil && set.MACD != nil {
		total++
		switch {
		case set.MACD.MACD > set.MACD.Signal && set.MACD.Histogram > 0:
			buyVotes++
		case set.MACD.MACD < set.MACD.Signal && set.MACD.Histogram < 0:
			sellVotes++
		}
	}

	if cond.Indicators.Bollinger != nil && set.Bollinger != nil {
		total++
		switch {
		case price <= set.Bollinger.Lower:
			buyVotes++
		case price >= set.Bollinger.Upper:
			sellVotes++
		}
	}

	// Absolute price filters force a vote when they trigger.
	if cond.Price.Max > 0 && price > cond.Price.Max {
		total++
		sellVotes++
	}
	if cond.Price.Min > 0 && price < cond.Price.Min {
		total++
		buyVotes++
	}

	if total == 0 {
		return hold
	}

	buyRatio := float64(buyVotes) / float64(total)
	sellRatio := float64(sellVotes) / float64(total)

	switch {
	case buyRatio > 0.5:
		return Decision{Type: SignalBuy, Confidence: buyRatio}
	case sellRatio > 0.5:
		return Decision{Type: SignalSell, Confidence: sellRatio}
	default:
		return hold
	}
}
