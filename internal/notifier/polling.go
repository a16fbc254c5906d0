package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandHandler answers one operator command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

const (
	pollTimeout = 30 // seconds the Bot API holds a getUpdates call open
	pollBackoff = 5 * time.Second
)

// StartPolling long-polls getUpdates and dispatches commands until ctx is
// cancelled. Only the configured chat may issue commands.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.Client.Transport}
	offset := 0

	for ctx.Err() == nil {
		var updates []update
		err := t.call(ctx, client, "getUpdates", map[string]int{"offset": offset, "timeout": pollTimeout}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			t.logger.Warn("telegram polling failed", zap.Error(err))
			sleepCtx(ctx, pollBackoff)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			t.dispatch(ctx, u, handler)
		}
	}
	t.logger.Info("telegram polling stopped")
}

func (t *TelegramNotifier) dispatch(ctx context.Context, u update, handler CommandHandler) {
	if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
		return
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
		t.logger.Warn("ignoring command from unknown chat", zap.Int64("chat_id", u.Message.Chat.ID))
		return
	}
	cmd := strings.TrimSpace(u.Message.Text)
	t.logger.Info("received command", zap.String("command", cmd))
	if reply := handler(ctx, cmd); reply != "" {
		if err := t.Send(ctx, reply); err != nil {
			t.logger.Error("send reply", zap.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
