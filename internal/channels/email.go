package channels

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/smtp"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"golang.org/x/oauth2"

	"github.com/beaconhq/beacond/internal/logger"
)

const emailComponent = "channels.email"

// EmailAccount is one configured mailbox (spec.md §3 EmailAccount).
type EmailAccount struct {
	Address      string
	IMAPHost     string
	SMTPHost     string
	TokenSource  oauth2.TokenSource // nil means password auth
	Password     string
	PollInterval string
}

// EmailAdapter polls one IMAP mailbox and sends over SMTP with either
// XOAUTH2 or plain auth, depending on the account's TokenSource (spec.md
// C7; protocol specifics beyond fetch/send/move are explicitly out of
// scope, so only the operations the kernel actually needs are implemented).
type EmailAdapter struct {
	account EmailAccount
}

// NewEmailAdapter wraps a single mailbox.
func NewEmailAdapter(account EmailAccount) *EmailAdapter {
	return &EmailAdapter{account: account}
}

func (a *EmailAdapter) Name() string { return "email:" + a.account.Address }

func (a *EmailAdapter) dial(ctx context.Context) (*imapclient.Client, error) {
	client, err := imapclient.DialTLS(a.account.IMAPHost, nil)
	if err != nil {
		return nil, fmt.Errorf("channels: imap dial %s: %w", a.account.IMAPHost, err)
	}
	if a.account.TokenSource != nil {
		token, err := a.account.TokenSource.Token()
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("channels: oauth token for %s: %w", a.account.Address, err)
		}
		if err := client.Authenticate(&imapclient.XOAuth2Options{
			Username: a.account.Address,
			Token:    token.AccessToken,
		}); err != nil {
			client.Close()
			return nil, fmt.Errorf("channels: imap xoauth2 %s: %w", a.account.Address, err)
		}
		return client, nil
	}
	if err := client.Login(a.account.Address, a.account.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("channels: imap login %s: %w", a.account.Address, err)
	}
	return client, nil
}

// SendMessage sends a plain-text reply via SMTP (spec.md: email adapters
// send, they do not maintain threads beyond what the provider does natively).
func (a *EmailAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	var buf bytes.Buffer
	header := mail.Header{}
	header.SetAddressList("From", []*mail.Address{{Address: a.account.Address}})
	header.SetAddressList("To", []*mail.Address{{Address: chatID}})
	header.SetSubject("Re: your message")
	writer, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return fmt.Errorf("channels: compose mail: %w", err)
	}
	if _, err := io.WriteString(writer, text); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	auth, err := a.smtpAuth()
	if err != nil {
		return err
	}
	return smtp.SendMail(a.account.SMTPHost, auth, a.account.Address, []string{chatID}, buf.Bytes())
}

func (a *EmailAdapter) smtpAuth() (smtp.Auth, error) {
	host := hostOnly(a.account.SMTPHost)
	if a.account.TokenSource != nil {
		token, err := a.account.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("channels: oauth token for smtp %s: %w", a.account.Address, err)
		}
		return xoauth2Auth{username: a.account.Address, token: token.AccessToken}, nil
	}
	return smtp.PlainAuth("", a.account.Address, a.account.Password, host), nil
}

func hostOnly(hostport string) string {
	if i := strings.LastIndex(hostport, ":"); i >= 0 {
		return hostport[:i]
	}
	return hostport
}

// StartTyping/StopTyping have no email analogue.
func (a *EmailAdapter) StartTyping(ctx context.Context, chatID string) error { return nil }
func (a *EmailAdapter) StopTyping(ctx context.Context, chatID string) error { return nil }

// Run is a no-op for email: ingress happens via the scheduled
// email-digest-flush task polling ListUnread, not a push loop.
func (a *EmailAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	<-ctx.Done()
	return nil
}

func (a *EmailAdapter) ListUnread(ctx context.Context) ([]MailMessage, error) {
	client, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("channels: imap select INBOX: %w", err)
	}

	searchData, err := client.Search(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("channels: imap search unseen: %w", err)
	}
	if len(searchData.AllSeqNums()) == 0 {
		return nil, nil
	}

	seqSet := imap.SeqSetNum(searchData.AllSeqNums()...)
	fetchOptions := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}
	fetchCmd := client.Fetch(seqSet, fetchOptions)
	defer fetchCmd.Close()

	var out []MailMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		data, err := msg.Collect()
		if err != nil {
			logger.WarnCF(emailComponent, "fetch collect error", map[string]interface{}{"error": err.Error()})
			continue
		}
		from := ""
		if data.Envelope != nil && len(data.Envelope.From) > 0 {
			from = data.Envelope.From[0].Addr()
		}
		subject := ""
		if data.Envelope != nil {
			subject = data.Envelope.Subject
		}
		out = append(out, MailMessage{
			UID:     fmt.Sprintf("%d", data.UID),
			From:    from,
			Subject: subject,
		})
	}
	return out, nil
}

func (a *EmailAdapter) MarkRead(ctx context.Context, uid string) error {
	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return err
	}
	uidNum, err := parseUID(uid)
	if err != nil {
		return err
	}
	uidSet := imap.UIDSetNum(uidNum)
	return client.Store(uidSet, &imap.StoreFlags{
		Op:    imap.StoreFlagsAdd,
		Flags: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
}

func (a *EmailAdapter) MoveTo(ctx context.Context, uid, folder string) error {
	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return err
	}
	uidNum, err := parseUID(uid)
	if err != nil {
		return err
	}
	uidSet := imap.UIDSetNum(uidNum)
	return client.Move(uidSet, folder).Wait()
}

func parseUID(uid string) (imap.UID, error) {
	var n uint32
	if _, err := fmt.Sscanf(uid, "%d", &n); err != nil {
		return 0, fmt.Errorf("channels: bad uid %q: %w", uid, err)
	}
	return imap.UID(n), nil
}
