package response

import (
	"context"
	"errors"
	"time"

	"paperchat-be/internal/pkg/logger"
	"paperchat-be/pkg/llm"
	"paperchat-be/pkg/rag/ragerr"
)

// Options bounds one generation.
type Options struct {
	// StallWindow is the maximum silence between fragments before the
	// stream is treated as dead and the connection aborted.
	StallWindow time.Duration
	// TurnDeadline is the hard wall-clock budget for the whole turn.
	TurnDeadline time.Duration
}

func DefaultOptions() Options {
	return Options{
		StallWindow:  20 * time.Second,
		TurnDeadline: 2 * time.Minute,
	}
}

// Generator runs answer generation over the failover-wrapped provider.
// A partial answer is never patched up: mid-stream failures surface as
// terminal errors for the turn.
type Generator struct {
	provider llm.LLMProvider
	logger   logger.ILogger
	opts     Options
}

func NewGenerator(provider llm.LLMProvider, log logger.ILogger, opts Options) *Generator {
	return &Generator{
		provider: provider,
		logger:   log,
		opts:     opts,
	}
}

// Generate produces the full answer in one call.
func (g *Generator) Generate(ctx context.Context, prompt string, history []llm.Message) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, g.opts.TurnDeadline)
	defer cancel()

	messages := append(append([]llm.Message{}, history...), llm.Message{
		Role:    "user",
		Content: prompt,
	})

	reply, err := g.provider.Chat(genCtx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ragerr.ErrGenerationTimeout
		}
		return "", &ragerr.GenerationError{Backend: g.provider.Name(), Err: err}
	}
	return reply, nil
}

// GenerateStream produces the answer as a fragment stream guarded by an
// inactivity watchdog. Exactly one terminal delta (Done or Err) is emitted;
// after a stall the underlying request is aborted, not restarted.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, history []llm.Message) (<-chan llm.StreamDelta, error) {
	genCtx, cancel := context.WithTimeout(ctx, g.opts.TurnDeadline)

	messages := append(append([]llm.Message{}, history...), llm.Message{
		Role:    "user",
		Content: prompt,
	})

	upstream, err := g.provider.ChatStream(genCtx, messages)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ragerr.ErrGenerationTimeout
		}
		return nil, &ragerr.GenerationError{Backend: g.provider.Name(), Err: err}
	}

	out := make(chan llm.StreamDelta)
	go g.pump(genCtx, cancel, upstream, out)
	return out, nil
}

func (g *Generator) pump(ctx context.Context, cancel context.CancelFunc, upstream <-chan llm.StreamDelta, out chan<- llm.StreamDelta) {
	defer cancel()
	defer close(out)

	watchdog := time.NewTimer(g.opts.StallWindow)
	defer watchdog.Stop()

	for {
		select {
		case delta, ok := <-upstream:
			if !ok {
				// providers emit a terminal delta before closing; a bare
				// close means the stream died silently
				out <- llm.StreamDelta{Err: &ragerr.GenerationError{Backend: g.provider.Name(), Err: ragerr.ErrStreamStalled}}
				return
			}
			if delta.Err != nil {
				if errors.Is(delta.Err, context.DeadlineExceeded) {
					delta.Err = ragerr.ErrGenerationTimeout
				}
				out <- delta
				return
			}
			out <- delta
			if delta.Done {
				return
			}
			if !watchdog.Stop() {
				<-watchdog.C
			}
			watchdog.Reset(g.opts.StallWindow)

		case <-watchdog.C:
			g.logger.Warn("Generator", "stream stalled, aborting", map[string]interface{}{
				"backend":      g.provider.Name(),
				"stall_window": g.opts.StallWindow.String(),
			})
			cancel()
			out <- llm.StreamDelta{Err: ragerr.ErrStreamStalled}
			return

		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				out <- llm.StreamDelta{Err: ragerr.ErrGenerationTimeout}
			} else {
				out <- llm.StreamDelta{Err: err}
			}
			return
		}
	}
}
