package calculator

import "math"

// Bands is one Bollinger Band reading.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// PercentB returns where price sits between the bands (0 at lower, 1 at upper).
func (b Bands) PercentB(price float64) float64 {
	width := b.Upper - b.Lower
	if width == 0 {
		return 0.5
	}
	return (price - b.Lower) / width
}

// Bollinger computes the bands over the last `period` closes using population stddev.
func Bollinger(closes []float64, period int, mult float64) (Bands, error) {
	if period <= 0 {
		return Bands{}, errPeriod
	}
	if len(closes) < period {
		return Bands{}, insufficient("Bollinger", period, len(closes))
	}
	window := closes[len(closes)-period:]
	mid := Mean(window)
	sd := StdDev(window)
	return Bands{Upper: mid + mult*sd, Middle: mid, Lower: mid - mult*sd}, nil
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Mean returns the arithmetic mean, zero for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
