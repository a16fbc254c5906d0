package model

import "time"

// PatternType is the category a pattern belongs to.
type PatternType string

const (
	PatternCandlestick PatternType = "candlestick"
	PatternChart       PatternType = "chart"
	PatternVolume      PatternType = "volume"
)

// Bias is the directional reading of a pattern.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Pattern names.
const (
	PatternDoji             = "doji"
	PatternHammer           = "hammer"
	PatternShootingStar     = "shooting_star"
	PatternBullishEngulfing = "bullish_engulfing"
	PatternBearishEngulfing = "bearish_engulfing"
	PatternSupportTest      = "support_test"
	PatternResistanceTest   = "resistance_test"
	PatternDoubleBottom     = "double_bottom"
	PatternDoubleTop        = "double_top"
	PatternBullFlag         = "bull_flag"
	PatternBearFlag         = "bear_flag"
	PatternOBVConfirming    = "obv_confirming"
	PatternOBVDiverging     = "obv_diverging"
	PatternVolumeSpike      = "volume_spike"
)

// PatternMatch is a single detection. Confidence is the pattern clarity used for scoring;
// BlendedConfidence mixes clarity with volume and trend context for display.
type PatternMatch struct {
	Symbol            string        `json:"symbol"`
	Type              PatternType   `json:"pattern_type"`
	Name              string        `json:"pattern_name"`
	Bias              Bias          `json:"bias"`
	Confidence        float64       `json:"confidence"`
	BlendedConfidence float64       `json:"blended_confidence"`
	EntryPrice        float64       `json:"entry_price"`
	StopLoss          float64       `json:"stop_loss"`
	TargetPrice       float64       `json:"target_price"`
	TargetProjected   bool          `json:"target_projected"`
	Timeframe         string        `json:"timeframe"`
	DetectedAt        time.Time     `json:"detected_at"`
	Detail            PatternDetail `json:"detail"`
}

// PatternDetail is the per-category metadata attached to a match.
// Implemented by CandlestickDetail, ChartDetail and VolumeDetail only.
type PatternDetail interface {
	Category() PatternType
}

// CandlestickDetail records the bar geometry behind a candlestick match.
type CandlestickDetail struct {
	BodyRatio        float64 `json:"body_ratio"`
	UpperShadowRatio float64 `json:"upper_shadow_ratio"`
	LowerShadowRatio float64 `json:"lower_shadow_ratio"`
	ShadowToBody     float64 `json:"shadow_to_body,omitempty"`
	EngulfRatio      float64 `json:"engulf_ratio,omitempty"`
	Bars             int     `json:"bars"`
}

func (CandlestickDetail) Category() PatternType { return PatternCandlestick }

// ChartDetail records the levels a chart pattern was built from.
type ChartDetail struct {
	Levels     []float64 `json:"levels"`
	Neckline   float64   `json:"neckline,omitempty"`
	Touches    int       `json:"touches,omitempty"`
	PoleGain   float64   `json:"pole_gain,omitempty"`
	WindowBars int       `json:"window_bars"`
}

func (ChartDetail) Category() PatternType { return PatternChart }

// VolumeDetail records the volume-flow measurements behind a volume match.
type VolumeDetail struct {
	OBV            float64 `json:"obv"`
	OBVSlope       float64 `json:"obv_slope"`
	PriceSlope     float64 `json:"price_slope"`
	RelativeVolume float64 `json:"relative_volume"`
	WindowBars     int     `json:"window_bars"`
}

func (VolumeDetail) Category() PatternType { return PatternVolume }
