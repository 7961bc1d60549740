// Package indicator computes technical indicators over price/volume windows.
// All functions are pure: inputs are never mutated, insufficient history
// degrades to a documented neutral value instead of failing, and outputs are
// rounded to 2 decimal places (volume MA to the nearest integer) for
// stability.
package indicator

import "math"

// Set holds the indicator values a single evaluation computed. Only the
// indicators the strategy configured are present.
type Set struct {
	RSI       *float64
	ShortMA   *float64
	LongMA    *float64
	MACD      *MACDValue
	Bollinger *Bands
	VolumeMA  *int64
}

// MACDValue is the MACD line, its signal line, and their difference.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// Bands are Bollinger bands: SMA ± k standard deviations.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// RSI computes the Wilder-style Relative Strength Index over the last
// `period` price changes. Returns 50 (neutral) when history is shorter than
// period+1 and 100 when there are no losses in the window.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}

	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain := emaRaw(gains, period)
	avgLoss := emaRaw(losses, period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return round2(100 - 100/(1+rs))
}

// SMA is the mean of the last `period` prices. Shorter history degrades to
// the most recent price.
func SMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return round2(prices[len(prices)-1])
	}

	window := prices[len(prices)-period:]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	return round2(sum / float64(period))
}

// EMA is the exponential moving average with multiplier 2/(period+1), seeded
// with the oldest price. Same insufficient-history fallback as SMA.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if period <= 0 || len(prices) < period {
		return round2(prices[len(prices)-1])
	}
	return round2(emaRaw(prices, period))
}

// MACD computes the MACD line, signal line, and histogram. Histories shorter
// than the slow period return the all-zero triple.
func MACD(prices []float64, fast, slow, signal int) MACDValue {
	if len(prices) < slow {
		return MACDValue{}
	}

	macdLine := emaRaw(prices, fast) - emaRaw(prices, slow)

	// Signal line is an EMA over the macd value of every growing prefix.
	history := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		prefix := prices[:i+1]
		history = append(history, emaRaw(prefix, fast)-emaRaw(prefix, slow))
	}
	signalLine := emaRaw(history, signal)

	return MACDValue{
		MACD:      round2(macdLine),
		Signal:    round2(signalLine),
		Histogram: round2(macdLine - signalLine),
	}
}

// BollingerBands computes SMA ± k standard deviations over the last `period`
// prices. Insufficient history collapses all three bands onto the latest
// price.
func BollingerBands(prices []float64, period int, k float64) Bands {
	if len(prices) == 0 {
		return Bands{}
	}
	if period <= 0 || len(prices) < period {
		latest := round2(prices[len(prices)-1])
		return Bands{Upper: latest, Middle: latest, Lower: latest}
	}

	window := prices[len(prices)-period:]
	sum := 0.0
	for _, p := range window {
		sum += p
	}
	middle := sum / float64(period)

	variance := 0.0
	for _, p := range window {
		variance += (p - middle) * (p - middle)
	}
	stdDev := math.Sqrt(variance / float64(period))

	return Bands{
		Upper:  round2(middle + k*stdDev),
		Middle: round2(middle),
		Lower:  round2(middle - k*stdDev),
	}
}

// VolumeMA is the windowed mean of the last `period` volumes, rounded to the
// nearest integer. Shorter history degrades to the most recent volume.
func VolumeMA(volumes []int64, period int) int64 {
	if len(volumes) == 0 {
		return 0
	}
	if period <= 0 || len(volumes) < period {
		return volumes[len(volumes)-1]
	}

	window := volumes[len(volumes)-period:]
	sum := int64(0)
	for _, v := range window {
		sum += v
	}
	return int64(math.Round(float64(sum) / float64(period)))
}

// emaRaw blends the series without rounding, seeded with the first element.
func emaRaw(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
