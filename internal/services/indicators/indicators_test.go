package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	assertion := assert.New(t)

	assertion.Equal(4.0, SMA([]float64{1, 2, 3, 4, 5}, 3))
	assertion.Equal(3.0, SMA([]float64{1, 2, 3, 4, 5}, 5))
	assertion.Equal(0.0, SMA([]float64{1, 2}, 3))
	assertion.Equal(0.0, SMA([]float64{1, 2, 3}, 0))
}

func TestEMASeries(t *testing.T) {
	assertion := assert.New(t)

	ema := EMASeries([]float64{1, 2, 3, 4, 5}, 3)
	assertion.Len(ema, 5)
	assertion.Equal(0.0, ema[0])
	assertion.Equal(0.0, ema[1])
	assertion.Equal(2.0, ema[2]) // seeded with SMA of the first three
	assertion.Equal(3.0, ema[3])
	assertion.Equal(4.0, ema[4])

	assertion.Nil(EMASeries([]float64{1, 2}, 3))
}

func TestMACDOnLinearRamp(t *testing.T) {
	assertion := assert.New(t)

	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	macd, sig, hist := MACD(values, 3, 5, 3)
	assertion.Len(macd, len(values))

	// On a constant-slope ramp both EMAs run parallel, so the MACD line
	// settles to a constant and the histogram collapses to zero.
	assertion.InDelta(1.0, macd[11], 1e-9)
	assertion.InDelta(1.0, sig[11], 1e-9)
	assertion.InDelta(0.0, hist[11], 1e-9)
}

func TestMACDInsufficientData(t *testing.T) {
	assertion := assert.New(t)

	macd, sig, hist := MACD([]float64{1, 2, 3, 4, 5}, 3, 5, 3)
	assertion.Nil(macd)
	assertion.Nil(sig)
	assertion.Nil(hist)
}

func TestRSI(t *testing.T) {
	assertion := assert.New(t)

	// Monotonic gains saturate the index.
	assertion.Equal(100.0, RSI([]float64{1, 2, 3, 4, 5}, 3))

	values := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83}
	assertion.InDelta(67.2199, RSI(values, 6), 0.001)

	assertion.Equal(0.0, RSI([]float64{1, 2, 3}, 3))
}

func TestStdDev(t *testing.T) {
	assertion := assert.New(t)

	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assertion.InDelta(2.0, StdDev(values, 8), 1e-9)
	assertion.Equal(0.0, StdDev(values, 9))
}

func TestBollinger(t *testing.T) {
	assertion := assert.New(t)

	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	upper, middle, lower := Bollinger(values, 8, 2.0)
	assertion.InDelta(5.0, middle, 1e-9)
	assertion.InDelta(9.0, upper, 1e-9)
	assertion.InDelta(1.0, lower, 1e-9)

	upper, middle, lower = Bollinger(values, 9, 2.0)
	assertion.Equal(0.0, upper)
	assertion.Equal(0.0, middle)
	assertion.Equal(0.0, lower)
}

func TestMidpoint(t *testing.T) {
	assertion := assert.New(t)

	highs := []float64{1, 5, 3, 8, 4}
	lows := []float64{0, 2, 1, 6, 3}

	assertion.Equal(4.5, Midpoint(highs, lows, 3))
	assertion.Equal(2.5, MidpointAt(highs, lows, 3, 2))
	assertion.Equal(0.0, MidpointAt(highs, lows, 3, 1))
	assertion.Equal(0.0, MidpointAt(highs, lows, 6, 4))
}
