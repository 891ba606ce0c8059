package indicators

// Midpoint computes (highest high + lowest low) / 2 over the last period
// bars, the building block of the Ichimoku lines. Returns 0 when either
// series is shorter than the period.
func Midpoint(highs, lows []float64, period int) float64 {
	if len(highs) == 0 {
		return 0
	}
	return MidpointAt(highs, lows, period, len(highs)-1)
}

// MidpointAt computes the midpoint for the period window ending at index
// end (inclusive). Displaced Ichimoku spans are read by passing an end
// index in the past. Returns 0 when the window does not fit.
func MidpointAt(highs, lows []float64, period, end int) float64 {
	if period <= 0 || end < period-1 || end >= len(highs) || end >= len(lows) {
		return 0
	}
	hh := highs[end-period+1]
	ll := lows[end-period+1]
	for i := end - period + 2; i <= end; i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	return (hh + ll) / 2
}
