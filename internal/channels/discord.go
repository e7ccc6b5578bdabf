package channels

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/beaconhq/beacond/internal/logger"
)

const discordComponent = "channels.discord"

// DiscordAdapter wraps a discordgo session using gateway events, so no
// public webhook endpoint is required (spec.md C7).
type DiscordAdapter struct {
	session        *discordgo.Session
	allowChannelID map[string]struct{}
}

// NewDiscordAdapter creates a DiscordAdapter from a bot token. allowChannels
// restricts ingress to specific Discord channel IDs; empty allows all.
func NewDiscordAdapter(token string, allowChannels []string) (*DiscordAdapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("channels: discord session init: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	allow := make(map[string]struct{}, len(allowChannels))
	for _, id := range allowChannels {
		allow[id] = struct{}{}
	}
	return &DiscordAdapter{session: session, allowChannelID: allow}, nil
}

func (a *DiscordAdapter) Name() string { return "discord" }

func (a *DiscordAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	_, err := a.session.ChannelMessageSend(chatID, text)
	return err
}

func (a *DiscordAdapter) StartTyping(ctx context.Context, chatID string) error {
	return a.session.ChannelTyping(chatID)
}

func (a *DiscordAdapter) StopTyping(ctx context.Context, chatID string) error {
	return nil
}

func (a *DiscordAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	remove := a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if len(a.allowChannelID) > 0 {
			if _, ok := a.allowChannelID[m.ChannelID]; !ok {
				logger.InfoCF(discordComponent, "dropping message from unlisted channel", map[string]interface{}{"channel_id": m.ChannelID})
				return
			}
		}
		onMessage(IncomingMessage{
			Channel:  a.Name(),
			SenderID: m.Author.ID,
			Name:     m.Author.Username,
			Text:     m.Content,
			ChatID:   m.ChannelID,
		})
	})
	defer remove()

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("channels: discord gateway open: %w", err)
	}
	<-ctx.Done()
	return a.session.Close()
}
