package calculator

// MACDResult holds the aligned MACD series. Values before Start are zero.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
	Start     int // first index where Signal and Histogram are defined
}

// MACD computes EMA(fast)-EMA(slow), its EMA(signal) and the histogram.
// Needs slow+signal-1 closes for one histogram value.
func MACD(closes []float64, fast, slow, signal int) (*MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, errPeriod
	}
	need := slow + signal - 1
	if len(closes) < need {
		return nil, insufficient("MACD", need, len(closes))
	}
	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return nil, err
	}

	n := len(closes)
	line := make([]float64, n)
	for i := slow - 1; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig, err := EMASeries(line[slow-1:], signal)
	if err != nil {
		return nil, err
	}

	res := &MACDResult{
		Line:      line,
		Signal:    make([]float64, n),
		Histogram: make([]float64, n),
		Start:     slow + signal - 2,
	}
	for i := res.Start; i < n; i++ {
		res.Signal[i] = sig[i-(slow-1)]
		res.Histogram[i] = line[i] - res.Signal[i]
	}
	return res, nil
}
