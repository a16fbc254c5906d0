package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// FormatRunReport formats a pipeline run into a Telegram message.
func FormatRunReport(r *model.RunReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>TradeSentinel scan</b> | %s\n\n", r.StartedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Universe: %d | Candidates: %d | Signals: %d\n",
		r.Universe, len(r.Candidates), len(r.Signals)))
	b.WriteString(fmt.Sprintf("Elapsed: %s\n\n", r.FinishedAt.Sub(r.StartedAt).Round(100*time.Millisecond)))

	actionable := r.Actionable()
	if len(actionable) == 0 {
		b.WriteString("No actionable signals this run.\n")
	} else {
		b.WriteString("🚦 <b>Actionable signals:</b>\n")
		for _, s := range actionable {
			b.WriteString(FormatSignalLine(s))
			b.WriteString("\n")
		}
	}

	if len(r.Orders) > 0 {
		b.WriteString("\n🧾 <b>Paper orders:</b>\n")
		for _, o := range r.Orders {
			line := fmt.Sprintf("  %s %s %d @ %.2f [%s]", o.Side, o.Symbol, o.Quantity, o.Price, o.Status)
			if o.Reason != "" {
				line += " " + html.EscapeString(o.Reason)
			}
			if o.Side == model.SideSell && o.Status == model.OrderFilled {
				line += fmt.Sprintf(" P&amp;L %+.2f", o.RealizedPnL)
			}
			b.WriteString(line + "\n")
		}
	}

	if len(r.Failures) > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d symbol(s) skipped: ", len(r.Failures)))
		names := make([]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			names = append(names, fmt.Sprintf("%s(%s)", f.Symbol, f.Stage))
		}
		b.WriteString(html.EscapeString(strings.Join(names, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSignalLine renders one signal on a single line.
func FormatSignalLine(s model.TradingSignal) string {
	icon := "⚪"
	switch s.Type {
	case model.SignalBuy:
		icon = "🟢"
	case model.SignalSell:
		icon = "🔴"
	}
	if !s.Actionable() {
		return fmt.Sprintf("%s %s HOLD score %.1f", icon, s.Symbol, s.CompositeScore)
	}
	return fmt.Sprintf("%s %s %s %s score %.1f | entry %.2f stop %.2f target %.2f | R:R %.2f | size %d",
		icon, s.Symbol, s.Strength, s.Type, s.CompositeScore,
		s.EntryPrice, s.StopLoss, s.TargetPrice, s.RiskRewardRatio, s.PositionSize)
}

// FormatSignal renders a signal with its rationale.
func FormatSignal(s model.TradingSignal) string {
	var b strings.Builder
	b.WriteString(FormatSignalLine(s))
	b.WriteString("\n")
	r := s.Rationale
	b.WriteString(fmt.Sprintf("  components: pattern %.2f | indicators %.2f | trend %.2f | volume %.2f\n",
		r.Components.Pattern, r.Components.Indicator, r.Components.Trend, r.Components.Volume))
	b.WriteString(fmt.Sprintf("  indicators agreeing: %d/%d", r.AgreeingIndicators, r.TotalIndicators))
	if r.BestPattern != "" {
		b.WriteString(" | pattern: " + r.BestPattern)
	}
	if r.SentimentMultiplier != 1 && r.SentimentMultiplier != 0 {
		b.WriteString(fmt.Sprintf(" | sentiment ×%.3f", r.SentimentMultiplier))
	}
	b.WriteString("\n")
	if len(r.FailedGates) > 0 {
		gates := make([]string, len(r.FailedGates))
		for i, g := range r.FailedGates {
			gates[i] = string(g)
		}
		b.WriteString("  failed gates: " + strings.Join(gates, ", ") + "\n")
	}
	return b.String()
}

// FormatPortfolio formats the paper account for display.
func FormatPortfolio(p model.PortfolioState) string {
	var b strings.Builder
	b.WriteString("📦 <b>Paper portfolio</b>\n\n")
	b.WriteString(fmt.Sprintf("Account value: $%.2f\n", p.AccountValue))
	b.WriteString(fmt.Sprintf("Cash: $%.2f\n", p.Cash))
	b.WriteString(fmt.Sprintf("Realized P&amp;L: $%+.2f\n", p.RealizedPnL))
	b.WriteString(fmt.Sprintf("Daily loss used: $%.2f\n", p.DailyLossUsed))

	if len(p.CurrentPositions) == 0 {
		b.WriteString("\nNo open positions.\n")
	} else {
		syms := make([]string, 0, len(p.CurrentPositions))
		for s := range p.CurrentPositions {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		b.WriteString(fmt.Sprintf("\n<b>Positions (%d):</b>\n", len(syms)))
		for _, s := range syms {
			pos := p.CurrentPositions[s]
			pnl := (pos.LastPrice - pos.AvgCost) * float64(pos.Quantity)
			b.WriteString(fmt.Sprintf("  %s %d @ %.2f → %.2f (%+.2f) stop %.2f target %.2f\n",
				s, pos.Quantity, pos.AvgCost, pos.LastPrice, pnl, pos.StopLoss, pos.TargetPrice))
		}
	}
	if !p.AsOf.IsZero() {
		b.WriteString(fmt.Sprintf("\nAs of: %s\n", p.AsOf.Format("2006-01-02 15:04")))
	}
	return b.String()
}
