package calculator

import (
	"errors"
	"fmt"

	"TradeSentinel/internal/model"
)

var errPeriod = errors.New("period must be positive")

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d values, have %d", model.ErrInsufficientData, name, need, have)
}

// CalculateSMA computes the simple moving average of the last `period` values.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(prices) < period {
		return 0, insufficient("SMA", period, len(prices))
	}
	return Mean(prices[len(prices)-period:]), nil
}

// SMASeries returns the rolling simple moving average aligned with the input.
// Indices before period-1 are left at zero.
func SMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	if len(values) < period {
		return nil, insufficient("SMA", period, len(values))
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMASeries returns the exponential moving average seeded with the SMA of the first
// `period` values. Indices before period-1 are left at zero.
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errPeriod
	}
	if len(values) < period {
		return nil, insufficient("EMA", period, len(values))
	}
	out := make([]float64, len(values))
	k := 2.0 / (float64(period) + 1.0)
	out[period-1] = Mean(values[:period])
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}
