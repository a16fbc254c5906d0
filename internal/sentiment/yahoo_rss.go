package sentiment

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// YahooRSSSource scores the Yahoo Finance headline feed of a symbol.
type YahooRSSSource struct {
	Client  *http.Client
	BaseURL string
	now     func() time.Time
}

// NewYahooRSSSource creates a headline source; proxyURL may be empty.
func NewYahooRSSSource(proxyURL string) *YahooRSSSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooRSSSource{
		Client:  &http.Client{Timeout: 10 * time.Second, Transport: transport},
		BaseURL: "https://feeds.finance.yahoo.com/rss/2.0/headline",
		now:     time.Now,
	}
}

func (s *YahooRSSSource) Name() string { return "yahoo_rss" }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func parsePubDate(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Sentiment fetches the feed and scores headlines published within window, newest first.
func (s *YahooRSSSource) Sentiment(ctx context.Context, symbol string, window time.Duration) (*model.SentimentScore, error) {
	u := fmt.Sprintf("%s?s=%s&region=US&lang=en-US", s.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Source: s.Name(), Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.UpstreamError{Source: s.Name(), Symbol: symbol, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.UpstreamError{Source: s.Name(), Symbol: symbol,
			Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("rss decode: %w", err)
	}

	type dated struct {
		at   time.Time
		text string
	}
	now := s.now()
	var items []dated
	for _, it := range feed.Channel.Items {
		at, ok := parsePubDate(it.PubDate)
		if !ok || now.Sub(at) > window {
			continue
		}
		items = append(items, dated{at: at, text: it.Title + ". " + it.Description})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.After(items[j].at) })

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}
	score := ScoreHeadlines(symbol, texts)
	if score == nil {
		return nil, nil
	}
	score.Source = s.Name()
	score.ComputedAt = now.UTC()
	return score, nil
}
