package pattern

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"TradeSentinel/internal/model"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func newDetector() *Detector { return NewDetector(DefaultConfig(), zap.NewNop()) }

// barsFromCloses builds bars whose open is the midpoint of the previous and current close.
func barsFromCloses(closes []float64) []model.PriceBar {
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = (closes[i-1] + c) / 2
		}
		bars[i] = model.PriceBar{
			Time:   day0.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, c) + 0.3,
			Low:    math.Min(open, c) - 0.3,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func interpolate(points map[int]float64, n int) []float64 {
	out := make([]float64, n)
	prev := 0
	for i := 1; i < n; i++ {
		if _, ok := points[i]; ok {
			for k := prev + 1; k < i; k++ {
				out[k] = points[prev] + (points[i]-points[prev])*float64(k-prev)/float64(i-prev)
			}
			out[i] = points[i]
			prev = i
		}
	}
	out[0] = points[0]
	return out
}

func find(matches []model.PatternMatch, name string) (model.PatternMatch, bool) {
	for _, m := range matches {
		if m.Name == name {
			return m, true
		}
	}
	return model.PatternMatch{}, false
}

func TestDetectDoji(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 100, High: 102, Low: 99.8, Close: 100.1, Volume: 1000}}
	matches, err := newDetector().Detect("DOJI", "1d", bars)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternDoji)
	if !ok {
		t.Fatalf("expected doji, got %+v", matches)
	}
	if m.Bias != model.BiasNeutral {
		t.Errorf("expected neutral bias, got %s", m.Bias)
	}
	if _, ok := find(matches, model.PatternHammer); ok {
		t.Error("upper shadow too long for a hammer")
	}
}

func TestDetectHammer(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 100, High: 101.2, Low: 95, Close: 101, Volume: 1000}}
	matches, err := newDetector().Detect("HAM", "1d", bars)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternHammer)
	if !ok {
		t.Fatalf("expected hammer, got %+v", matches)
	}
	if math.Abs(m.Confidence-0.8) > 1e-9 {
		t.Errorf("expected confidence 0.8 for shadow ratio 5, got %.4f", m.Confidence)
	}
	if m.StopLoss != 95 || m.EntryPrice != 101 {
		t.Errorf("expected entry 101 stop 95, got %.2f/%.2f", m.EntryPrice, m.StopLoss)
	}
	if m.TargetProjected {
		t.Error("candlestick target should not be marked projected")
	}
	detail, ok := m.Detail.(model.CandlestickDetail)
	if !ok || math.Abs(detail.ShadowToBody-5) > 1e-9 {
		t.Errorf("expected candlestick detail with ratio 5, got %#v", m.Detail)
	}
}

func TestHammerConfidenceCapped(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 100, High: 100.5, Low: 90, Close: 100.5, Volume: 1000}}
	matches, _ := newDetector().Detect("CAP", "1d", bars)
	m, ok := find(matches, model.PatternHammer)
	if !ok {
		t.Fatal("expected hammer")
	}
	if m.Confidence != 1.0 {
		t.Errorf("expected capped confidence 1.0, got %.4f", m.Confidence)
	}
}

func TestDetectShootingStar(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 101, High: 106, Low: 99.9, Close: 100, Volume: 1000}}
	matches, _ := newDetector().Detect("STAR", "1d", bars)
	m, ok := find(matches, model.PatternShootingStar)
	if !ok {
		t.Fatalf("expected shooting star, got %+v", matches)
	}
	if m.Bias != model.BiasBearish || m.StopLoss != 106 {
		t.Errorf("expected bearish with stop at high, got %s %.2f", m.Bias, m.StopLoss)
	}
	if m.TargetPrice >= m.EntryPrice {
		t.Errorf("expected target below entry, got %.2f", m.TargetPrice)
	}
}

func TestZeroRangeBarHasNoCandlestick(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 50, High: 50, Low: 50, Close: 50, Volume: 1000}}
	matches, err := newDetector().Detect("FLAT", "1d", bars)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.Type == model.PatternCandlestick {
			t.Errorf("unexpected candlestick %s on zero-range bar", m.Name)
		}
	}
}

func TestDetectEngulfing(t *testing.T) {
	bars := []model.PriceBar{
		{Time: day0, Open: 101, High: 101.5, Low: 99.5, Close: 100, Volume: 1000},
		{Time: day0.AddDate(0, 0, 1), Open: 99.8, High: 103.2, Low: 99.6, Close: 103, Volume: 2000},
	}
	matches, _ := newDetector().Detect("ENG", "1d", bars)
	m, ok := find(matches, model.PatternBullishEngulfing)
	if !ok {
		t.Fatalf("expected bullish engulfing, got %+v", matches)
	}
	if m.StopLoss != 99.5 {
		t.Errorf("expected stop at the lower of both lows, got %.2f", m.StopLoss)
	}
	if _, ok := find(matches, model.PatternBearishEngulfing); ok {
		t.Error("did not expect bearish engulfing")
	}
}

func TestDetectDoubleBottom(t *testing.T) {
	closes := interpolate(map[int]float64{0: 100, 5: 90, 9: 100, 13: 90.5, 17: 97}, 18)
	matches, err := newDetector().Detect("DB", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternDoubleBottom)
	if !ok {
		t.Fatalf("expected double bottom, got %+v", matches)
	}
	if !m.TargetProjected || m.TargetPrice <= m.EntryPrice {
		t.Errorf("expected projected target above entry, got %.2f", m.TargetPrice)
	}
	if math.Abs(m.StopLoss-89.7) > 1e-9 {
		t.Errorf("expected stop at the lower bottom 89.7, got %.4f", m.StopLoss)
	}
	detail := m.Detail.(model.ChartDetail)
	if math.Abs(detail.Neckline-100.3) > 1e-9 {
		t.Errorf("expected neckline 100.3, got %.4f", detail.Neckline)
	}
}

func TestDetectBullFlag(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 102, 104, 106, 108, 110, 109.6, 110, 109.8, 110.1, 109.9}
	matches, err := newDetector().Detect("FLAG", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternBullFlag)
	if !ok {
		t.Fatalf("expected bull flag, got %+v", matches)
	}
	if m.Bias != model.BiasBullish || !m.TargetProjected {
		t.Errorf("expected bullish projected flag, got %+v", m)
	}
	if _, ok := find(matches, model.PatternBearFlag); ok {
		t.Error("did not expect a bear flag")
	}
}

func TestDetectDoubleTop(t *testing.T) {
	closes := interpolate(map[int]float64{0: 90, 5: 100, 9: 90, 13: 99.6, 17: 93}, 18)
	matches, err := newDetector().Detect("DT", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternDoubleTop)
	if !ok {
		t.Fatalf("expected double top, got %+v", matches)
	}
	if m.Bias != model.BiasBearish || !m.TargetProjected || m.TargetPrice >= m.EntryPrice {
		t.Errorf("expected bearish projected target below entry, got %+v", m)
	}
	if math.Abs(m.StopLoss-100.3) > 1e-9 {
		t.Errorf("expected stop at the higher top 100.3, got %.4f", m.StopLoss)
	}
	detail := m.Detail.(model.ChartDetail)
	if math.Abs(detail.Neckline-89.7) > 1e-9 {
		t.Errorf("expected neckline 89.7, got %.4f", detail.Neckline)
	}
	if _, ok := find(matches, model.PatternDoubleBottom); ok {
		t.Error("did not expect a double bottom")
	}
}

func TestDetectBearFlag(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 98, 96, 94, 92, 90, 90.4, 90, 90.2, 89.9, 90.1}
	matches, err := newDetector().Detect("BFLAG", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternBearFlag)
	if !ok {
		t.Fatalf("expected bear flag, got %+v", matches)
	}
	if m.Bias != model.BiasBearish || !m.TargetProjected {
		t.Errorf("expected bearish projected flag, got %+v", m)
	}
	// pole 89.7..100.3, flag high 90.7, flag low 89.6
	if math.Abs(m.StopLoss-90.7) > 1e-9 || math.Abs(m.TargetPrice-79) > 1e-9 {
		t.Errorf("expected stop 90.7 and target 79, got %.4f / %.4f", m.StopLoss, m.TargetPrice)
	}
	if _, ok := find(matches, model.PatternBullFlag); ok {
		t.Error("did not expect a bull flag")
	}
}

func TestDetectSupportTest(t *testing.T) {
	closes := interpolate(map[int]float64{0: 100, 5: 90, 9: 96, 13: 90.8}, 14)
	matches, err := newDetector().Detect("SUP", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternSupportTest)
	if !ok {
		t.Fatalf("expected support test, got %+v", matches)
	}
	if m.Bias != model.BiasBullish {
		t.Errorf("expected bullish, got %s", m.Bias)
	}
	detail := m.Detail.(model.ChartDetail)
	if len(detail.Levels) != 1 || math.Abs(detail.Levels[0]-89.7) > 1e-9 || detail.Touches != 1 {
		t.Errorf("expected one touch of support 89.7, got %+v", detail)
	}
	if math.Abs(m.StopLoss-89.7*0.99) > 1e-9 {
		t.Errorf("expected stop just under support, got %.4f", m.StopLoss)
	}
	if !m.TargetProjected || math.Abs(m.TargetPrice-96.3) > 1e-9 {
		t.Errorf("expected target at resistance 96.3, got %.4f", m.TargetPrice)
	}
	if _, ok := find(matches, model.PatternResistanceTest); ok {
		t.Error("did not expect a resistance test")
	}
}

func TestDetectResistanceTest(t *testing.T) {
	closes := interpolate(map[int]float64{0: 90, 5: 100, 9: 94, 13: 99.2}, 14)
	matches, err := newDetector().Detect("RES", "1d", barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternResistanceTest)
	if !ok {
		t.Fatalf("expected resistance test, got %+v", matches)
	}
	if m.Bias != model.BiasBearish {
		t.Errorf("expected bearish, got %s", m.Bias)
	}
	if math.Abs(m.StopLoss-100.3*1.01) > 1e-9 {
		t.Errorf("expected stop just over resistance, got %.4f", m.StopLoss)
	}
	if !m.TargetProjected || math.Abs(m.TargetPrice-93.7) > 1e-9 {
		t.Errorf("expected target at support 93.7, got %.4f", m.TargetPrice)
	}
	if _, ok := find(matches, model.PatternSupportTest); ok {
		t.Error("did not expect a support test")
	}
}

func TestOBVDivergingOnThinRally(t *testing.T) {
	// price grinds up on light volume and gives back on heavy volume
	closes := []float64{50}
	for i := 1; i < 25; i++ {
		if i%2 == 1 {
			closes = append(closes, closes[i-1]+2)
		} else {
			closes = append(closes, closes[i-1]-1)
		}
	}
	bars := barsFromCloses(closes)
	for i := 1; i < len(bars); i++ {
		if i%2 == 1 {
			bars[i].Volume = 100_000
		}
	}
	matches, err := newDetector().Detect("DIV", "1d", bars)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternOBVDiverging)
	if !ok {
		t.Fatalf("expected OBV diverging, got %+v", matches)
	}
	if m.Bias != model.BiasBearish || m.StopLoss <= m.EntryPrice {
		t.Errorf("expected bearish with stop above entry, got %+v", m)
	}
	detail := m.Detail.(model.VolumeDetail)
	if detail.PriceSlope <= 0 || detail.OBVSlope >= 0 {
		t.Errorf("expected rising price against falling OBV, got %+v", detail)
	}
	if _, ok := find(matches, model.PatternOBVConfirming); ok {
		t.Error("did not expect OBV confirming")
	}
}

func TestOBVConfirmingInUptrend(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	matches, _ := newDetector().Detect("OBV", "1d", barsFromCloses(closes))
	m, ok := find(matches, model.PatternOBVConfirming)
	if !ok {
		t.Fatalf("expected OBV confirming, got %+v", matches)
	}
	if m.Bias != model.BiasBullish {
		t.Errorf("expected bullish, got %s", m.Bias)
	}
}

func TestVolumeSpike(t *testing.T) {
	closes := make([]float64, 21)
	for i := range closes {
		closes[i] = 20 + 0.1*float64(i%2)
	}
	bars := barsFromCloses(closes)
	bars[20].Close = 21
	bars[20].High = 21.3
	bars[20].Volume = 8_000_000
	matches, err := newDetector().Detect("SPK", "1d", bars)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := find(matches, model.PatternVolumeSpike)
	if !ok {
		t.Fatalf("expected volume spike, got %+v", matches)
	}
	if m.Bias != model.BiasBullish {
		t.Errorf("expected bullish spike, got %s", m.Bias)
	}
}

func TestConfidenceBoundsAndIdempotence(t *testing.T) {
	d := newDetector()
	for seed := 0; seed < 5; seed++ {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 40 + 6*math.Sin(float64(i+seed)/4) + 3*math.Cos(float64(i*seed)/7)
		}
		bars := barsFromCloses(closes)
		first, err := d.Detect("SIN", "1d", bars)
		if err != nil {
			t.Fatal(err)
		}
		second, _ := d.Detect("SIN", "1d", bars)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("seed %d: detection is not idempotent", seed)
		}
		for _, m := range first {
			if m.Confidence < 0 || m.Confidence > 1 || m.BlendedConfidence < 0 || m.BlendedConfidence > 1 {
				t.Errorf("seed %d: %s confidence out of range: %.4f/%.4f", seed, m.Name, m.Confidence, m.BlendedConfidence)
			}
			if !m.DetectedAt.Equal(bars[len(bars)-1].Time) {
				t.Errorf("expected detected_at at the last bar, got %v", m.DetectedAt)
			}
		}
	}
}

func TestDetectRejectsMalformedBars(t *testing.T) {
	bars := []model.PriceBar{{Time: day0, Open: 10, High: 9, Low: 8, Close: 9.5}}
	_, err := newDetector().Detect("BAD", "1d", bars)
	var dq *model.DataQualityError
	if !errors.As(err, &dq) {
		t.Fatalf("expected DataQualityError, got %v", err)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.DojiBodyRatio = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero doji ratio")
	}
}

func TestZeroVolumeDisablesVolumeScoring(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50 + 0.5*float64(i)
	}
	bars := barsFromCloses(closes)
	for i := range bars {
		bars[i].Volume = 0
	}

	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDetector(DefaultConfig(), zap.New(core))
	matches, err := d.Detect("X", "1d", bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessage("no traded volume in window, volume scoring disabled").Len() != 1 {
		t.Errorf("expected zero volume to be logged once, got %v", logs.All())
	}
	if _, ok := find(matches, model.PatternVolumeSpike); ok {
		t.Error("expected no volume spike without volume")
	}
}
