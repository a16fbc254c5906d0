package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"TradeSentinel/internal/model"
)

const yahooSource = "yahoo"

// YahooFetcher reads daily bars from the public Yahoo Finance chart endpoint.
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // index aliases to Yahoo tickers
}

// NewYahooFetcher creates a Yahoo fetcher, optionally routed through proxyURL.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second, Transport: transport},
		BaseURL: "https://query1.finance.yahoo.com",
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"NDX":    "^NDX",
			"VIX":    "^VIX",
		},
	}
}

func (f *YahooFetcher) Name() string { return yahooSource }

func (f *YahooFetcher) ticker(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chartResponse mirrors /v8/finance/chart. Quote arrays hold null on
// sessions without trades, hence the pointers.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// rangeFor picks the smallest chart range covering days sessions.
func rangeFor(days int) string {
	switch {
	case days <= 55:
		return "3mo"
	case days <= 110:
		return "6mo"
	case days <= 230:
		return "1y"
	default:
		return "2y"
	}
}

// FetchDailyBars returns up to days most recent daily bars, oldest first.
// An unknown symbol yields an empty history.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.PriceBar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		f.BaseURL, url.PathEscape(f.ticker(symbol)), rangeFor(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Source: yahooSource, Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &model.UpstreamError{Source: yahooSource, Symbol: symbol,
			Err: fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))}
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, &model.DataQualityError{Symbol: symbol, Stage: "collect", Reason: "undecodable chart: " + err.Error()}
	}
	if e := chart.Chart.Error; e != nil {
		return nil, &model.UpstreamError{Source: yahooSource, Symbol: symbol, Err: fmt.Errorf("%s: %s", e.Code, e.Description)}
	}

	bars := chart.bars()
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// bars flattens the first result into ascending PriceBars, dropping sessions
// with any missing price.
func (c *chartResponse) bars() []model.PriceBar {
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil
	}
	res := c.Chart.Result[0]
	q := res.Indicators.Quote[0]
	n := min(len(res.Timestamp), len(q.Open), len(q.High), len(q.Low), len(q.Close), len(q.Volume))

	out := make([]model.PriceBar, 0, n)
	for i := 0; i < n; i++ {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		var vol float64
		if q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		out = append(out, model.PriceBar{
			Time:   time.Unix(res.Timestamp[i], 0).UTC(),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Volume: vol,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
