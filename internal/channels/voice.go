package channels

import (
	"context"
	"fmt"
)

// SpeechToText and TextToSpeech are the pluggable STT/TTS engine contracts.
// Concrete engine wiring (local model, cloud API) is out of spec scope —
// only the adapter boundary is defined here (spec.md §2 Non-goals).
type SpeechToText interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) (wav []byte, err error)
}

// VoiceAdapter bridges the HTTP voice endpoints to the router's pending-
// voice mailbox (spec.md §4.6, C7). It does not run an ingress loop like
// the chat-bot adapters: ingress is HTTP-driven via /voice/transcribe,
// wired directly in the httpapi package.
type VoiceAdapter struct {
	stt SpeechToText
	tts TextToSpeech
}

// NewVoiceAdapter wraps concrete STT/TTS engines.
func NewVoiceAdapter(stt SpeechToText, tts TextToSpeech) *VoiceAdapter {
	return &VoiceAdapter{stt: stt, tts: tts}
}

func (a *VoiceAdapter) Name() string { return "voice" }

// SendMessage synthesizes text to speech; chatID is unused since voice has
// exactly one client at a time (spec.md: at most one pending voice callback).
func (a *VoiceAdapter) SendMessage(ctx context.Context, chatID, text string) error {
	_, err := a.tts.Synthesize(ctx, text)
	return err
}

func (a *VoiceAdapter) StartTyping(ctx context.Context, chatID string) error { return nil }
func (a *VoiceAdapter) StopTyping(ctx context.Context, chatID string) error { return nil }

// Run is a no-op: the voice channel has no background ingress loop.
func (a *VoiceAdapter) Run(ctx context.Context, onMessage func(IncomingMessage)) error {
	<-ctx.Done()
	return nil
}

// Transcribe exposes the STT engine to the /voice/transcribe HTTP handler.
func (a *VoiceAdapter) Transcribe(ctx context.Context, wav []byte) (string, error) {
	text, err := a.stt.Transcribe(ctx, wav)
	if err != nil {
		return "", fmt.Errorf("channels: voice transcribe: %w", err)
	}
	return text, nil
}

// Speak exposes the TTS engine to the /voice/speak HTTP handler.
func (a *VoiceAdapter) Speak(ctx context.Context, text string) ([]byte, error) {
	wav, err := a.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("channels: voice synthesize: %w", err)
	}
	return wav, nil
}
