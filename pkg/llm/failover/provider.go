package failover

import (
	"context"
	"fmt"
	"log"

	"paperchat-be/pkg/llm"
)

// Provider wraps a primary and a fallback backend. The policy is evaluated
// once per call: if the primary is unreachable or errors up front, the call
// is retried once against the fallback. A stream that fails mid-flight is
// NOT restarted on the fallback, since partial output has already been
// consumed.
type Provider struct {
	primary  llm.LLMProvider
	fallback llm.LLMProvider
	logger   *log.Logger
}

var _ llm.LLMProvider = &Provider{}

func New(primary, fallback llm.LLMProvider, logger *log.Logger) *Provider {
	return &Provider{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (p *Provider) Name() string {
	return fmt.Sprintf("failover(%s->%s)", p.primary.Name(), p.fallback.Name())
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	reply, err := p.primary.Chat(ctx, history, options...)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	p.logger.Printf("[FAILOVER] Primary %s failed, retrying on %s: %v", p.primary.Name(), p.fallback.Name(), err)

	reply, ferr := p.fallback.Chat(ctx, history, options...)
	if ferr != nil {
		return "", fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return reply, nil
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamDelta, error) {
	deltas, err := p.primary.ChatStream(ctx, history, options...)
	if err == nil {
		return deltas, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	p.logger.Printf("[FAILOVER] Primary %s stream failed to open, retrying on %s: %v", p.primary.Name(), p.fallback.Name(), err)

	deltas, ferr := p.fallback.ChatStream(ctx, history, options...)
	if ferr != nil {
		return nil, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return deltas, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}
