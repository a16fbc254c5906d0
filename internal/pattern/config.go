package pattern

import "TradeSentinel/internal/model"

// Config holds the detection thresholds.
type Config struct {
	DojiBodyRatio       float64 `yaml:"doji_body_ratio"`       // max body/range for a doji
	ShadowMultiple      float64 `yaml:"shadow_multiple"`       // min long shadow / body for hammer and shooting star
	OppositeShadowRatio float64 `yaml:"opposite_shadow_ratio"` // max short shadow / range
	SwingWindow         int     `yaml:"swing_window"`          // bars on each side of a swing point
	ChartMinBars        int     `yaml:"chart_min_bars"`
	ChartMaxBars        int     `yaml:"chart_max_bars"`
	LevelTolerance      float64 `yaml:"level_tolerance"`  // proximity to support/resistance
	DoubleTolerance     float64 `yaml:"double_tolerance"` // max gap between twin lows/highs
	PoleBars            int     `yaml:"pole_bars"`
	FlagBars            int     `yaml:"flag_bars"`
	PoleMinGain         float64 `yaml:"pole_min_gain"`
	FlagTightness       float64 `yaml:"flag_tightness"` // max stddev of flag closes / pole range
	OBVWindow           int     `yaml:"obv_window"`
	VolumeAvgWindow     int     `yaml:"volume_avg_window"`
	VolumeSpikeMultiple float64 `yaml:"volume_spike_multiple"`
	BlendClarity        float64 `yaml:"blend_clarity"`
	BlendVolume         float64 `yaml:"blend_volume"`
	BlendTrend          float64 `yaml:"blend_trend"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DojiBodyRatio:       0.10,
		ShadowMultiple:      2.0,
		OppositeShadowRatio: 0.10,
		SwingWindow:         2,
		ChartMinBars:        5,
		ChartMaxBars:        50,
		LevelTolerance:      0.02,
		DoubleTolerance:     0.02,
		PoleBars:            5,
		FlagBars:            5,
		PoleMinGain:         0.05,
		FlagTightness:       0.25,
		OBVWindow:           10,
		VolumeAvgWindow:     20,
		VolumeSpikeMultiple: 2.0,
		BlendClarity:        0.40,
		BlendVolume:         0.30,
		BlendTrend:          0.30,
	}
}

// Validate rejects thresholds that would make detection meaningless.
func (c Config) Validate() error {
	switch {
	case c.DojiBodyRatio <= 0 || c.DojiBodyRatio >= 1:
		return &model.ConfigError{Field: "pattern.doji_body_ratio", Reason: "must be in (0,1)"}
	case c.ShadowMultiple <= 0:
		return &model.ConfigError{Field: "pattern.shadow_multiple", Reason: "must be positive"}
	case c.OppositeShadowRatio < 0 || c.OppositeShadowRatio >= 1:
		return &model.ConfigError{Field: "pattern.opposite_shadow_ratio", Reason: "must be in [0,1)"}
	case c.SwingWindow <= 0:
		return &model.ConfigError{Field: "pattern.swing_window", Reason: "must be positive"}
	case c.ChartMinBars <= 0 || c.ChartMaxBars < c.ChartMinBars:
		return &model.ConfigError{Field: "pattern.chart_max_bars", Reason: "must be >= chart_min_bars > 0"}
	case c.LevelTolerance <= 0 || c.DoubleTolerance <= 0:
		return &model.ConfigError{Field: "pattern.tolerance", Reason: "must be positive"}
	case c.PoleBars < 2 || c.FlagBars < 2:
		return &model.ConfigError{Field: "pattern.pole_bars", Reason: "pole and flag need at least 2 bars"}
	case c.PoleMinGain <= 0 || c.FlagTightness <= 0:
		return &model.ConfigError{Field: "pattern.pole_min_gain", Reason: "must be positive"}
	case c.OBVWindow < 2 || c.VolumeAvgWindow < 2:
		return &model.ConfigError{Field: "pattern.obv_window", Reason: "must be >= 2"}
	case c.VolumeSpikeMultiple <= 1:
		return &model.ConfigError{Field: "pattern.volume_spike_multiple", Reason: "must be > 1"}
	case c.BlendClarity < 0 || c.BlendVolume < 0 || c.BlendTrend < 0:
		return &model.ConfigError{Field: "pattern.blend", Reason: "weights must be non-negative"}
	case c.BlendClarity+c.BlendVolume+c.BlendTrend == 0:
		return &model.ConfigError{Field: "pattern.blend", Reason: "weights must not all be zero"}
	}
	return nil
}
