package indicators

import "math"

// StdDev computes the population standard deviation of the last period
// values. Returns 0 when the series is shorter than the period.
func StdDev(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	mean := SMA(values, period)
	variance := 0.0
	for i := len(values) - period; i < len(values); i++ {
		diff := values[i] - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(period))
}

// Bollinger computes the upper, middle, and lower Bollinger bands for the
// last period values with the given standard-deviation multiplier.
// All three are 0 when the series is shorter than the period.
func Bollinger(values []float64, period int, numStdDev float64) (upper, middle, lower float64) {
	if period <= 0 || len(values) < period {
		return 0, 0, 0
	}
	middle = SMA(values, period)
	sd := StdDev(values, period)
	upper = middle + numStdDev*sd
	lower = middle - numStdDev*sd
	return upper, middle, lower
}
