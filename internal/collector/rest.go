package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// RESTFetcher reads daily bars from a bars-over-HTTP data service
// exposing GET /api/v1/bars/daily?symbol=X&limit=N with bearer auth.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a fetcher against the given service.
func NewRESTFetcher(baseURL, apiKey string) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

type restBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type restBarsResponse struct {
	Symbol string    `json:"symbol"`
	Bars   []restBar `json:"bars"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", fmt.Sprintf("%d", days))
	u := f.BaseURL + "/api/v1/bars/daily?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Source: f.Name(), Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.UpstreamError{Source: f.Name(), Symbol: symbol, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &model.UpstreamError{Source: f.Name(), Symbol: symbol,
			Err: fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))}
	}

	var out restBarsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &model.DataQualityError{Symbol: symbol, Stage: "collect", Reason: "decode bars: " + err.Error()}
	}

	bars := make([]model.PriceBar, 0, len(out.Bars))
	for _, b := range out.Bars {
		bars = append(bars, model.PriceBar{
			Time:   b.Timestamp.UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}
