package bus

import "testing"

func TestPublishInboundFansOutToAllSubscribers(t *testing.T) {
	b := New()
	var got1, got2 InboundMessage
	b.SubscribeInbound(func(m InboundMessage) { got1 = m })
	b.SubscribeInbound(func(m InboundMessage) { got2 = m })

	b.PublishInbound(InboundMessage{Channel: "telegram", Text: "hi"})

	if got1.Text != "hi" || got2.Text != "hi" {
		t.Errorf("expected both subscribers to receive the message, got %+v / %+v", got1, got2)
	}
}

func TestPublishOutboundRoutesToRegisteredSender(t *testing.T) {
	b := New()
	var sent OutboundMessage
	b.RegisterSender("slack", func(m OutboundMessage) error {
		sent = m
		return nil
	})

	if err := b.PublishOutbound(OutboundMessage{Channel: "slack", Content: "hello"}); err != nil {
		t.Fatalf("PublishOutbound: %v", err)
	}
	if sent.Content != "hello" {
		t.Errorf("expected sender to receive the message, got %+v", sent)
	}
}

func TestPublishOutboundNoSenderRegistered(t *testing.T) {
	b := New()
	err := b.PublishOutbound(OutboundMessage{Channel: "discord"})
	if err == nil {
		t.Fatal("expected ErrNoSender")
	}
	if _, ok := err.(ErrNoSender); !ok {
		t.Errorf("expected ErrNoSender, got %T", err)
	}
}
