package portfolio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"TradeSentinel/internal/model"
)

// State is the persisted paper account.
type State struct {
	InitialCapital    decimal.Decimal           `json:"initial_capital"`
	Cash              decimal.Decimal           `json:"cash"`
	Positions         map[string]model.Position `json:"positions"`
	RealizedPnL       decimal.Decimal           `json:"realized_pnl"`
	DailyRealizedLoss decimal.Decimal           `json:"daily_realized_loss"`
	TradingDay        string                    `json:"trading_day"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func (s *State) clone() *State {
	c := *s
	c.Positions = make(map[string]model.Position, len(s.Positions))
	for sym, p := range s.Positions {
		c.Positions[sym] = p
	}
	return &c
}

// LoadState reads the account from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Positions: map[string]model.Position{}}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Positions == nil {
		state.Positions = map[string]model.Position{}
	}
	return &state, nil
}

// SaveState writes the account to a JSON file via a temp file and rename.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
