package response

import (
	"context"
	"errors"
	"testing"
	"time"

	"paperchat-be/pkg/llm"
	"paperchat-be/pkg/rag/ragerr"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

// scriptedProvider replays a fixed sequence of deltas with optional
// per-delta delay.
type scriptedProvider struct {
	deltas    []llm.StreamDelta
	delay     time.Duration
	hangAfter int // stop emitting (without closing) after this many deltas; 0 = never
	chatErr   error
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if p.chatErr != nil {
		return "", p.chatErr
	}
	return "full reply", nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, nil)
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamDelta, error) {
	ch := make(chan llm.StreamDelta)
	go func() {
		for i, d := range p.deltas {
			if p.hangAfter > 0 && i >= p.hangAfter {
				<-ctx.Done() // hang until aborted
				close(ch)
				return
			}
			if p.delay > 0 {
				time.Sleep(p.delay)
			}
			select {
			case ch <- d:
			case <-ctx.Done():
				close(ch)
				return
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func testOptions() Options {
	return Options{
		StallWindow:  80 * time.Millisecond,
		TurnDeadline: 2 * time.Second,
	}
}

func collect(t *testing.T, stream <-chan llm.StreamDelta) (string, llm.StreamDelta) {
	t.Helper()
	var content string
	for delta := range stream {
		if delta.Err != nil || delta.Done {
			return content, delta
		}
		content += delta.Content
	}
	t.Fatal("stream closed without terminal delta")
	return "", llm.StreamDelta{}
}

func TestGenerateStreamForwardsFragments(t *testing.T) {
	p := &scriptedProvider{deltas: []llm.StreamDelta{
		{Content: "Gene "},
		{Content: "drives."},
		{Done: true},
	}}

	g := NewGenerator(p, nopLogger{}, testOptions())
	stream, err := g.GenerateStream(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	content, terminal := collect(t, stream)
	if content != "Gene drives." {
		t.Errorf("content = %q", content)
	}
	if !terminal.Done || terminal.Err != nil {
		t.Errorf("terminal = %+v, want Done", terminal)
	}
}

func TestGenerateStreamStallAborts(t *testing.T) {
	p := &scriptedProvider{
		deltas:    []llm.StreamDelta{{Content: "partial "}, {Content: "never sent"}},
		hangAfter: 1,
	}

	g := NewGenerator(p, nopLogger{}, testOptions())
	stream, err := g.GenerateStream(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	content, terminal := collect(t, stream)
	if content != "partial " {
		t.Errorf("content = %q, want the fragments before the stall", content)
	}
	if !errors.Is(terminal.Err, ragerr.ErrStreamStalled) {
		t.Errorf("terminal.Err = %v, want ErrStreamStalled", terminal.Err)
	}
}

func TestGenerateStreamSilentCloseIsError(t *testing.T) {
	// provider closes without emitting a terminal delta
	p := &scriptedProvider{deltas: []llm.StreamDelta{{Content: "x"}}}

	g := NewGenerator(p, nopLogger{}, testOptions())
	stream, err := g.GenerateStream(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	_, terminal := collect(t, stream)
	if terminal.Err == nil {
		t.Fatal("silent close must surface an error")
	}
	var genErr *ragerr.GenerationError
	if !errors.As(terminal.Err, &genErr) {
		t.Errorf("terminal.Err = %T, want *GenerationError", terminal.Err)
	}
}

func TestGenerateMapsBackendError(t *testing.T) {
	p := &scriptedProvider{chatErr: errors.New("502 bad gateway")}

	g := NewGenerator(p, nopLogger{}, testOptions())
	_, err := g.Generate(context.Background(), "prompt", nil)

	var genErr *ragerr.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %T, want *GenerationError", err)
	}
	if genErr.Backend != "scripted" {
		t.Errorf("Backend = %q", genErr.Backend)
	}
}

func TestGenerate(t *testing.T) {
	g := NewGenerator(&scriptedProvider{}, nopLogger{}, testOptions())
	reply, err := g.Generate(context.Background(), "prompt", []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "full reply" {
		t.Errorf("reply = %q", reply)
	}
}
