package indicators

// SMA computes the simple moving average of the last period values.
// Returns 0 when the series is shorter than the period.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMASeries computes the exponential moving average over the full series.
// The output is aligned with the input: entries before index period-1 are 0,
// the entry at period-1 seeds with the SMA of the first period values, and
// later entries apply the standard smoothing factor 2/(period+1).
// Returns nil if the series is shorter than the period.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	out[period-1] = seed / float64(period)
	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACD computes the MACD line, its signal line, and the histogram for the
// given fast/slow/signal periods. All three outputs are aligned with the
// input series; entries before the first computable index are 0. Returns
// nils when the series cannot cover slow+signal periods.
func MACD(values []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal {
		return nil, nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)

	macd = make([]float64, len(values))
	for i := slow - 1; i < len(values); i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal is an EMA of the MACD line, seeded from its first signal values.
	sig = make([]float64, len(values))
	start := slow - 1
	seed := 0.0
	for i := start; i < start+signal; i++ {
		seed += macd[i]
	}
	sig[start+signal-1] = seed / float64(signal)
	k := 2.0 / (float64(signal) + 1.0)
	for i := start + signal; i < len(values); i++ {
		sig[i] = macd[i]*k + sig[i-1]*(1-k)
	}

	hist = make([]float64, len(values))
	for i := start + signal - 1; i < len(values); i++ {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}
