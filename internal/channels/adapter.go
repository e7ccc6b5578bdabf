// Package channels implements the polymorphic chat-platform adapters that
// feed the access gateway and session bridge (spec.md C7). Every adapter
// implements Adapter; email additionally implements MailAdapter.
package channels

import "context"

// IncomingMessage is what an adapter hands its onMessage callback for an
// inbound message; the access gateway classifies it after that.
type IncomingMessage struct {
	Channel  string
	SenderID string
	Name     string
	Text     string
	ChatID   string // adapter-specific destination identifier for replies
}

// Adapter is the capability set every chat-platform adapter must provide
// (spec.md Design Note 9.2).
type Adapter interface {
	Name() string
	SendMessage(ctx context.Context, chatID, text string) error
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error

	// Run starts the adapter's ingress loop, calling onMessage for every
	// inbound message that passes the adapter's own sanity checks (the
	// access gateway runs downstream of onMessage, not inside the adapter).
	Run(ctx context.Context, onMessage func(IncomingMessage)) error
}

// MailAdapter extends Adapter with mailbox-specific operations used by the
// email-triage and digest-flush tasks (spec.md C10).
type MailAdapter interface {
	Adapter
	ListUnread(ctx context.Context) ([]MailMessage, error)
	MarkRead(ctx context.Context, uid string) error
	MoveTo(ctx context.Context, uid, folder string) error
}

// MailMessage describes a single unread email (spec.md §3).
type MailMessage struct {
	UID     string
	From    string
	Subject string
	Snippet string
}

// Registry holds every configured adapter, keyed by channel name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own Name().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns a registered adapter by channel name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	list := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		list = append(list, a)
	}
	return list
}
