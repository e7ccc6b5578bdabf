package channels

import (
	"context"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackAdapter wraps a Socket Mode client so the daemon needs no public
// webhook endpoint for Slack (spec.md C7).
type SlackAdapter struct {
	api    *slack.Client
	socket *socketmode.Client
}

// NewSlackAdapter creates a SlackAdapter from a bot token and app-level token.
func NewSlackAdapter(botToken, appToken string) *SlackAdapter {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	socket := socketmode.New(api)
	return &SlackAdapter{api: api, socket: socket}
}

func (a *SlackAdapter) Name() string { return "slack" }

func (a *SlackAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	_, _, err := a.api.PostMessageContext(ctx, chatID, slack.MsgOptionText(text, false))
	return err
}

// StartTyping is a no-op: Slack's Web API has no typing indicator, and no
// substitute message is sent.
func (a *SlackAdapter) StartTyping(ctx context.Context, chatID string) error {
	return nil
}

func (a *SlackAdapter) StopTyping(ctx context.Context, chatID string) error {
	return nil
}

func (a *SlackAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	go func() {
		for evt := range a.socket.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				payload, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				a.socket.Ack(*evt.Request)
				if payload.Type != slackevents.CallbackEvent {
					continue
				}
				inner := payload.InnerEvent
				if ev, ok := inner.Data.(*slackevents.MessageEvent); ok {
					if ev.BotID != "" || ev.SubType != "" {
						continue
					}
					onMessage(IncomingMessage{
						Channel:  a.Name(),
						SenderID: ev.User,
						Name:     ev.User,
						Text:     ev.Text,
						ChatID:   ev.Channel,
					})
				}
			default:
			}
		}
	}()

	err := a.socket.RunContext(ctx)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
