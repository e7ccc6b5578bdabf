package channels

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/beaconhq/beacond/internal/logger"
)

const telegramComponent = "channels.telegram"

// TelegramAdapter wraps a long-polling telego bot (spec.md C7).
type TelegramAdapter struct {
	bot       *telego.Bot
	allowlist map[int64]struct{} // empty means allow all
}

// NewTelegramAdapter creates a TelegramAdapter from a bot token. allowChat
// restricts which chat IDs may reach the gateway; nil/empty allows all.
func NewTelegramAdapter(token string, allowChat []int64) (*TelegramAdapter, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("channels: telegram bot init: %w", err)
	}
	allow := make(map[int64]struct{}, len(allowChat))
	for _, id := range allowChat {
		allow[id] = struct{}{}
	}
	return &TelegramAdapter{bot: bot, allowlist: allow}, nil
}

func (a *TelegramAdapter) Name() string { return "telegram" }

func (a *TelegramAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("channels: telegram bad chat id %q: %w", chatID, err)
	}
	_, err = a.bot.SendMessage(ctx, tu.Message(tu.ID(id), text))
	return err
}

func (a *TelegramAdapter) StartTyping(ctx context.Context, chatID string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return err
	}
	return a.bot.SendChatAction(ctx, &telego.SendChatActionParams{ChatID: tu.ID(id), Action: "typing"})
}

func (a *TelegramAdapter) StopTyping(ctx context.Context, chatID string) error {
	// Telegram has no explicit "stop typing" call; the indicator expires on
	// its own after a few seconds of inactivity.
	return nil
}

func (a *TelegramAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("channels: telegram long polling: %w", err)
	}

	handler, err := th.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("channels: telegram handler: %w", err)
	}

	handler.Handle(func(hctx *th.Context, update telego.Update) error {
		msg := update.Message
		if msg == nil || msg.Text == "" {
			return nil
		}
		if len(a.allowlist) > 0 {
			if _, ok := a.allowlist[msg.Chat.ID]; !ok {
				logger.InfoCF(telegramComponent, "dropping message from unlisted chat", map[string]interface{}{"chat_id": msg.Chat.ID})
				return nil
			}
		}
		name := msg.Chat.Title
		if msg.From != nil {
			name = msg.From.FirstName
		}
		onMessage(IncomingMessage{
			Channel:  a.Name(),
			SenderID: strconv.FormatInt(msg.Chat.ID, 10),
			Name:     name,
			Text:     msg.Text,
			ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		})
		return nil
	})

	go func() {
		<-ctx.Done()
		handler.Stop()
	}()

	handler.Start()
	return nil
}
