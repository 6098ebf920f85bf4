package anthropic

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Completer is the narrow completion contract the extraction engine uses:
// given system instructions and a prompt, return the model's text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error)
}

// MessageCompleter adapts a Client to Completer for a fixed model.
type MessageCompleter struct {
	client  Client
	model   string
	phase   string
	limiter *rate.Limiter
}

// NewCompleter returns a Completer that sends single-turn messages to model.
// Phase labels cost log lines.
func NewCompleter(client Client, model, phase string) *MessageCompleter {
	return &MessageCompleter{client: client, model: model, phase: phase}
}

// NewRequestLimiter returns a limiter admitting perMinute requests a minute
// with no burst. It is shared by every completer that uses one API key. A
// non-positive perMinute disables limiting.
func NewRequestLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// WithLimiter makes Complete wait on l before each request.
func (c *MessageCompleter) WithLimiter(l *rate.Limiter) *MessageCompleter {
	c.limiter = l
	return c
}

// Complete sends one user message. The system text is marked cacheable since
// every page of a lane shares it.
func (c *MessageCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	req := MessageRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []Message{{Role: "user", Content: prompt}},
	}
	if system != "" {
		req.System = []SystemBlock{{Text: system, CacheControl: &CacheControl{}}}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrapf(err, "anthropic: wait for rate limit (%s)", c.phase)
		}
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "anthropic: complete (%s)", c.phase)
	}
	resp.Usage.LogCost(c.model, c.phase)

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.Errorf("anthropic: complete (%s): empty response", c.phase)
	}
	return text, nil
}
