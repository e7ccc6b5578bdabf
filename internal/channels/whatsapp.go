package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	qrterminal "github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/beaconhq/beacond/internal/logger"
)

const whatsappComponent = "channels.whatsapp"

type whatsmeowLogger struct{ sub string }

func (l whatsmeowLogger) Errorf(msg string, args ...interface{}) {
	logger.ErrorCF(whatsappComponent, fmt.Sprintf(msg, args...), nil)
}
func (l whatsmeowLogger) Warnf(msg string, args ...interface{}) {
	logger.WarnCF(whatsappComponent, fmt.Sprintf(msg, args...), nil)
}
func (l whatsmeowLogger) Infof(msg string, args ...interface{}) {
	logger.InfoCF(whatsappComponent, fmt.Sprintf(msg, args...), nil)
}
func (l whatsmeowLogger) Debugf(msg string, args ...interface{}) {}
func (l whatsmeowLogger) Sub(module string) waLog.Logger          { return whatsmeowLogger{sub: module} }

// WhatsAppAdapter wraps whatsmeow's multi-device client. The session store
// lives in a modernc.org/sqlite database so the daemon stays free of cgo
// (spec.md C7; store path under the project's state directory).
type WhatsAppAdapter struct {
	client    *whatsmeow.Client
	allowFrom map[string]struct{}
}

// OpenWhatsApp connects an already-paired device (run PairWhatsApp first if
// dbPath has no stored session).
func OpenWhatsApp(ctx context.Context, dbPath string, allowFrom []string) (*WhatsAppAdapter, error) {
	client, err := whatsmeowClient(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if client.Store.ID == nil {
		return nil, fmt.Errorf("channels: whatsapp not paired, run the onboarding flow first")
	}
	allow := make(map[string]struct{}, len(allowFrom))
	for _, n := range allowFrom {
		allow[n] = struct{}{}
	}
	return &WhatsAppAdapter{client: client, allowFrom: allow}, nil
}

// PairWhatsApp prints a QR code to stdout and blocks until pairing succeeds
// or the code expires. Intended for the `beacond-admin onboard whatsapp`
// one-time setup flow, not the running daemon.
func PairWhatsApp(ctx context.Context, dbPath string) error {
	client, err := whatsmeowClient(ctx, dbPath)
	if err != nil {
		return err
	}
	if client.Store.ID != nil {
		fmt.Println("already paired as", client.Store.ID.User)
		return nil
	}

	qrChan, _ := client.GetQRChannel(ctx)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("channels: whatsapp connect: %w", err)
	}
	defer client.Disconnect()

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
		case "success":
			fmt.Println("whatsapp pairing successful")
			return nil
		case "timeout":
			return fmt.Errorf("channels: whatsapp QR code timed out")
		}
	}
	return nil
}

func whatsmeowClient(ctx context.Context, dbPath string) (*whatsmeow.Client, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("channels: create whatsapp state dir: %w", err)
	}
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", whatsmeowLogger{})
	if err != nil {
		return nil, fmt.Errorf("channels: whatsapp session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("channels: whatsapp device store: %w", err)
	}
	return whatsmeow.NewClient(device, whatsmeowLogger{}), nil
}

func (a *WhatsAppAdapter) Name() string { return "whatsapp" }

func (a *WhatsAppAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("channels: whatsapp bad jid %q: %w", chatID, err)
	}
	msg := &waProto.Message{Conversation: &text}
	_, err = a.client.SendMessage(ctx, jid, msg)
	return err
}

func (a *WhatsAppAdapter) StartTyping(ctx context.Context, chatID string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return err
	}
	return a.client.SendChatPresence(jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

func (a *WhatsAppAdapter) StopTyping(ctx context.Context, chatID string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return err
	}
	return a.client.SendChatPresence(jid, types.ChatPresencePaused, types.ChatPresenceMediaText)
}

func (a *WhatsAppAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	handlerID := a.client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Connected:
			if err := a.client.SendPresence(ctx, types.PresenceAvailable); err != nil {
				logger.WarnCF(whatsappComponent, "failed to announce presence", map[string]interface{}{"error": err.Error()})
			}
		case *events.Message:
			a.handleMessage(v, onMessage)
		}
	})
	defer a.client.RemoveEventHandler(handlerID)

	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("channels: whatsapp connect: %w", err)
	}
	<-ctx.Done()
	a.client.Disconnect()
	return nil
}

func (a *WhatsAppAdapter) handleMessage(msg *events.Message, onMessage func(IncomingMessage)) {
	if msg.Info.IsFromMe || msg.Info.IsGroup {
		return
	}
	sender := msg.Info.Sender.User
	if len(a.allowFrom) > 0 {
		if _, ok := a.allowFrom[sender]; !ok {
			logger.InfoCF(whatsappComponent, "dropping message from unlisted sender", map[string]interface{}{"sender": sender})
			return
		}
	}
	text := msg.Message.GetConversation()
	if text == "" && msg.Message.GetExtendedTextMessage() != nil {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}
	onMessage(IncomingMessage{
		Channel:  "whatsapp",
		SenderID: sender,
		Name:     msg.Info.PushName,
		Text:     text,
		ChatID:   msg.Info.Sender.String(),
	})
}
