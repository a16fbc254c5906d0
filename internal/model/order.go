package model

import "time"

// OrderSide is the side of a simulated order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the outcome of a simulated order.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "FILLED"
	OrderRejected OrderStatus = "REJECTED"
)

// Order is a simulated execution produced by the paper broker.
type Order struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Quantity    int64       `json:"quantity"`
	Price       float64     `json:"price"`
	StopLoss    float64     `json:"stop_loss"`
	TargetPrice float64     `json:"target_price"`
	Status      OrderStatus `json:"status"`
	Reason      string      `json:"reason"`
	RealizedPnL float64     `json:"realized_pnl"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SymbolFailure records a symbol dropped from a run and why.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// RunReport summarises one pipeline run.
type RunReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Universe   int             `json:"universe"`
	Candidates []Candidate     `json:"candidates"`
	Signals    []TradingSignal `json:"signals"`
	Orders     []Order         `json:"orders"`
	Failures   []SymbolFailure `json:"failures"`
}

// Actionable returns the BUY and SELL signals of the run.
func (r *RunReport) Actionable() []TradingSignal {
	var out []TradingSignal
	for _, s := range r.Signals {
		if s.Actionable() {
			out = append(out, s)
		}
	}
	return out
}
