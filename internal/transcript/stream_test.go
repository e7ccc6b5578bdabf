package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newestPathFn(path string) NewestPathFn {
	return func() (string, error) { return path, nil }
}

func writeLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReadOnceEmitsAssistantTextMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	writeLine(t, path, `{"role":"assistant","type":"message","text":"hello there","id":"m1"}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()

	if len(got) != 1 || got[0].Text != "hello there" || got[0].MessageID != "m1" {
		t.Fatalf("unexpected messages: %+v", got)
	}
}

func TestReadOnceIgnoresNonAssistantRoles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `{"role":"user","text":"ignore me","id":"u1"}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()

	if len(got) != 0 {
		t.Fatalf("expected no messages from a user line, got %+v", got)
	}
}

func TestReadOnceDedupsByMessageID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `{"role":"assistant","text":"hi","id":"dup"}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()
	writeLine(t, path, `{"role":"assistant","text":"hi again","id":"dup"}`)
	s.readOnce()

	if len(got) != 1 {
		t.Fatalf("expected duplicate message id to be dropped, got %d messages", len(got))
	}
	if s.Stats().DroppedDuplicate != 1 {
		t.Errorf("expected DroppedDuplicate to be 1, got %d", s.Stats().DroppedDuplicate)
	}
}

func TestReadOnceDedupsByCamelCaseMessageID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `{"role":"assistant","text":"hi","messageId":"dup"}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()
	writeLine(t, path, `{"role":"assistant","text":"hi again","messageId":"dup"}`)
	s.readOnce()

	if len(got) != 1 || got[0].MessageID != "dup" {
		t.Fatalf("expected camelCase messageId to be captured and deduped, got %+v", got)
	}
	if s.Stats().DroppedDuplicate != 1 {
		t.Errorf("expected DroppedDuplicate to be 1, got %d", s.Stats().DroppedDuplicate)
	}
}

func TestReadOnceHandlesContentBlockArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `{"role":"assistant","id":"m2","content":[{"type":"text","text":"block one "},{"type":"text","text":"block two"}]}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()

	if len(got) != 1 || got[0].Text != "block one block two" {
		t.Fatalf("unexpected messages: %+v", got)
	}
}

func TestReadOnceTracksParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `not valid json`)

	s := New(newestPathFn(path), func(m AssistantMessage) {}, time.Hour)
	s.readOnce()

	if s.Stats().ParseErrors != 1 {
		t.Errorf("expected 1 parse error, got %d", s.Stats().ParseErrors)
	}
}

func TestReadOnceResumesFromOffsetAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	os.WriteFile(path, nil, 0644)
	writeLine(t, path, `{"role":"assistant","text":"first","id":"m1"}`)

	var got []AssistantMessage
	s := New(newestPathFn(path), func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()

	writeLine(t, path, `{"role":"assistant","text":"second","id":"m2"}`)
	s.readOnce()

	if len(got) != 2 || got[1].Text != "second" {
		t.Fatalf("expected both lines to be emitted across calls, got %+v", got)
	}
}

func TestReadOnceResetsOnPathChange(t *testing.T) {
	dir := t.TempDir()
	path1 := filepath.Join(dir, "t1.jsonl")
	path2 := filepath.Join(dir, "t2.jsonl")
	os.WriteFile(path1, nil, 0644)
	writeLine(t, path1, `{"role":"assistant","text":"from file one","id":"m1"}`)

	current := path1
	var got []AssistantMessage
	s := New(func() (string, error) { return current, nil }, func(m AssistantMessage) { got = append(got, m) }, time.Hour)
	s.readOnce()

	os.WriteFile(path2, nil, 0644)
	writeLine(t, path2, `{"role":"assistant","text":"from file two","id":"m2"}`)
	current = path2
	s.readOnce()

	if len(got) != 2 {
		t.Fatalf("expected messages from both files, got %+v", got)
	}
}
