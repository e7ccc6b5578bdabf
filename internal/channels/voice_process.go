package channels

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/beaconhq/beacond/internal/logger"
)

const voiceProcessComponent = "channels.voice_process"

// ProcessSTT shells out to a local speech-to-text binary, feeding it WAV
// bytes on stdin and reading the transcript from stdout — the same
// shell-out discipline internal/session uses for the tmux pane, applied to
// whatever local engine is configured (spec.md §2 Non-goals: the engine
// itself is out of scope, only this process boundary is ours to define).
type ProcessSTT struct {
	bin  string
	args []string
}

// NewProcessSTT wraps a command that reads WAV audio on stdin and writes
// plain-text transcript to stdout.
func NewProcessSTT(bin string, args ...string) *ProcessSTT {
	return &ProcessSTT{bin: bin, args: args}
}

func (p *ProcessSTT) Transcribe(ctx context.Context, wav []byte) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin, p.args...)
	cmd.Stdin = bytes.NewReader(wav)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		logger.ErrorCF(voiceProcessComponent, "stt process failed", map[string]interface{}{"error": err.Error(), "stderr": errOut.String()})
		return "", fmt.Errorf("channels: stt process: %w", err)
	}
	return out.String(), nil
}

// ProcessTTS shells out to a local text-to-speech binary, feeding it text on
// stdin and reading WAV audio from stdout.
type ProcessTTS struct {
	bin  string
	args []string
}

// NewProcessTTS wraps a command that reads text on stdin and writes WAV
// audio to stdout.
func NewProcessTTS(bin string, args ...string) *ProcessTTS {
	return &ProcessTTS{bin: bin, args: args}
}

func (p *ProcessTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.bin, p.args...)
	cmd.Stdin = bytes.NewBufferString(text)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		logger.ErrorCF(voiceProcessComponent, "tts process failed", map[string]interface{}{"error": err.Error(), "stderr": errOut.String()})
		return nil, fmt.Errorf("channels: tts process: %w", err)
	}
	return out.Bytes(), nil
}
