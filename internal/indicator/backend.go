package indicator

import (
	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
)

// Standard periods.
const (
	RSIPeriod      = 14
	MACDFast       = 12
	MACDSlow       = 26
	MACDSignalLen  = 9
	BollingerLen   = 20
	BollingerMult  = 2.0
	MAShort        = 20
	MALong         = 50
	ATRPeriod      = 14
	OBVSlopeWindow = 10
)

// Minimum bar counts per indicator. MACD needs two histogram values to detect a crossover.
const (
	MinBarsRSI       = RSIPeriod + 1
	MinBarsMACD      = MACDSlow + MACDSignalLen
	MinBarsBollinger = BollingerLen
	MinBarsMATrend   = MALong
	MinBarsOBV       = OBVSlopeWindow + 1
	MinBarsATR       = ATRPeriod + 1
)

// Snapshot carries the latest value of every indicator the history supports.
// A nil field means the indicator was not computable.
type Snapshot struct {
	Close    float64
	RSI      *float64
	MACD     *MACDValue
	Bands    *calculator.Bands
	MA20     *float64
	MA50     *float64
	ATR      *float64
	OBV      *float64
	OBVSlope *float64
}

// MACDValue is the latest MACD reading plus the previous histogram value.
type MACDValue struct {
	Line     float64
	Signal   float64
	Hist     float64
	PrevHist float64
}

// IndicatorBackend computes a Snapshot from validated bars.
type IndicatorBackend interface {
	Name() string
	Compute(bars []model.PriceBar) Snapshot
}

// ManualBackend implements every indicator with the calculator package.
type ManualBackend struct{}

// NewManualBackend returns the manual-math backend.
func NewManualBackend() *ManualBackend { return &ManualBackend{} }

func (ManualBackend) Name() string { return "manual" }

// Compute fills in every indicator whose minimum bar count is met.
func (ManualBackend) Compute(bars []model.PriceBar) Snapshot {
	var snap Snapshot
	if len(bars) == 0 {
		return snap
	}
	closes := model.Closes(bars)
	snap.Close = closes[len(closes)-1]

	if len(bars) >= MinBarsRSI {
		if v, err := calculator.CalculateRSI(bars, RSIPeriod); err == nil {
			snap.RSI = &v
		}
	}
	if len(bars) >= MinBarsMACD {
		if res, err := calculator.MACD(closes, MACDFast, MACDSlow, MACDSignalLen); err == nil {
			n := len(closes) - 1
			snap.MACD = &MACDValue{
				Line:     res.Line[n],
				Signal:   res.Signal[n],
				Hist:     res.Histogram[n],
				PrevHist: res.Histogram[n-1],
			}
		}
	}
	if len(bars) >= MinBarsBollinger {
		if b, err := calculator.Bollinger(closes, BollingerLen, BollingerMult); err == nil {
			snap.Bands = &b
		}
	}
	if v, err := calculator.CalculateSMA(closes, MAShort); err == nil {
		snap.MA20 = &v
	}
	if v, err := calculator.CalculateSMA(closes, MALong); err == nil {
		snap.MA50 = &v
	}
	if len(bars) >= MinBarsATR {
		if v, err := calculator.CalculateATR(bars, ATRPeriod); err == nil {
			snap.ATR = &v
		}
	}
	if len(bars) >= MinBarsOBV {
		obv := calculator.OBVSeries(bars)
		if slope, err := calculator.TailSlope(obv, OBVSlopeWindow); err == nil {
			last := obv[len(obv)-1]
			snap.OBV = &last
			snap.OBVSlope = &slope
		}
	}
	return snap
}
