package model

import "time"

// Position is an open long position in the paper account.
type Position struct {
	Symbol      string    `json:"symbol"`
	Quantity    int64     `json:"quantity"`
	AvgCost     float64   `json:"avg_cost"`
	StopLoss    float64   `json:"stop_loss"`
	TargetPrice float64   `json:"target_price"`
	LastPrice   float64   `json:"last_price"`
	OpenedAt    time.Time `json:"opened_at"`
}

// MarketValue returns quantity times the last known price.
func (p Position) MarketValue() float64 { return float64(p.Quantity) * p.LastPrice }

// PortfolioState is the read-only risk snapshot handed to the scorer.
type PortfolioState struct {
	AccountValue     float64             `json:"account_value"`
	Cash             float64             `json:"cash"`
	CurrentPositions map[string]Position `json:"current_positions"`
	DailyLossUsed    float64             `json:"daily_loss_used"`
	RealizedPnL      float64             `json:"realized_pnl"`
	TradingDay       string              `json:"trading_day"`
	AsOf             time.Time           `json:"as_of"`
}

// Holds reports whether a long position is open for symbol.
func (p PortfolioState) Holds(symbol string) bool {
	pos, ok := p.CurrentPositions[symbol]
	return ok && pos.Quantity > 0
}
