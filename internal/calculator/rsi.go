package calculator

import (
	"TradeSentinel/internal/model"
)

// RSISeries computes the Wilder-smoothed RSI for every bar from index `period` onward.
// Earlier indices are left at zero. avgLoss == 0 yields 100.
func RSISeries(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	if len(closes) < period+1 {
		return nil, insufficient("RSI", period+1, len(closes))
	}
	out := make([]float64, len(closes))

	// Initial average gain/loss over the first `period` changes
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	// Wilder smoothing for remaining bars
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// CalculateRSI returns the latest RSI of the bars. Requires at least period+1 bars.
func CalculateRSI(bars []model.PriceBar, period int) (float64, error) {
	series, err := RSISeries(model.Closes(bars), period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
