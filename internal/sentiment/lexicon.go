package sentiment

import (
	"strings"
	"unicode"

	"TradeSentinel/internal/model"
)

// Label thresholds.
const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
	// MaxHeadlines is the number of most recent headlines scored; relevance saturates there.
	MaxHeadlines = 10
)

var positiveWords = wordSet(
	"upgrade", "buy", "strong", "outperform", "positive", "growth", "beat", "exceed",
	"surge", "rally", "gain", "profit", "revenue", "bullish", "optimistic", "successful",
	"breakthrough", "innovation",
)

var negativeWords = wordSet(
	"downgrade", "sell", "weak", "underperform", "negative", "loss", "miss", "decline",
	"fall", "drop", "cut", "layoff", "lawsuit", "bearish", "pessimistic", "failure",
	"concern", "risk", "warning",
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ScoreText returns (positive-negative)/(positive+negative) over the keyword hits
// in text, or 0 when no keyword appears.
func ScoreText(text string) float64 {
	var pos, neg int
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if _, ok := positiveWords[tok]; ok {
			pos++
			continue
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
			continue
		}
		stem := strings.TrimSuffix(tok, "s")
		if _, ok := positiveWords[stem]; ok {
			pos++
		} else if _, ok := negativeWords[stem]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Label classifies a score.
func Label(score float64) model.SentimentLabel {
	switch {
	case score > PositiveThreshold:
		return model.SentimentPositive
	case score < NegativeThreshold:
		return model.SentimentNegative
	}
	return model.SentimentNeutral
}

// ScoreHeadlines averages the per-headline scores of up to MaxHeadlines texts.
// Relevance grows with the number of headlines scored.
func ScoreHeadlines(symbol string, headlines []string) *model.SentimentScore {
	if len(headlines) == 0 {
		return nil
	}
	if len(headlines) > MaxHeadlines {
		headlines = headlines[:MaxHeadlines]
	}
	sum := 0.0
	for _, h := range headlines {
		sum += ScoreText(h)
	}
	score := sum / float64(len(headlines))
	return &model.SentimentScore{
		Symbol:    symbol,
		Score:     score,
		Label:     Label(score),
		Relevance: float64(len(headlines)) / MaxHeadlines,
		Headlines: len(headlines),
	}
}
