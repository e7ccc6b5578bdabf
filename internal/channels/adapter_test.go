package channels

import (
	"context"
	"testing"
)

type fakeAdapter struct{ name string }

func (f fakeAdapter) Name() string                                            { return f.name }
func (f fakeAdapter) SendMessage(ctx context.Context, chatID, text string) error { return nil }
func (f fakeAdapter) StartTyping(ctx context.Context, chatID string) error      { return nil }
func (f fakeAdapter) StopTyping(ctx context.Context, chatID string) error       { return nil }
func (f fakeAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	return nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeAdapter{name: "telegram"})

	a, ok := r.Get("telegram")
	if !ok {
		t.Fatal("expected telegram adapter to be registered")
	}
	if a.Name() != "telegram" {
		t.Errorf("unexpected name: %q", a.Name())
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("did not expect an adapter for an unregistered channel")
	}
}

func TestRegistryAllReturnsEveryAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeAdapter{name: "telegram"})
	r.Register(fakeAdapter{name: "slack"})

	if got := len(r.All()); got != 2 {
		t.Errorf("expected 2 adapters, got %d", got)
	}
}
