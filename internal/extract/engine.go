// Package extract turns cleaned page text into validated, typed records by
// way of an AI completion.
package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/pkg/anthropic"
)

// SourceContext describes where a page came from.
type SourceContext struct {
	SourceID string
	URL      string
	Language string
}

// Domain supplies the record-specific parts of an extraction.
type Domain[T model.Record] interface {
	// Name labels log lines and metrics.
	Name() string
	// System is the fixed instruction block.
	System() string
	// Prompt embeds the page text and its context.
	Prompt(text string, src SourceContext) string
	// Defaults returns the value each array element is decoded over, so
	// fields the model omits keep their defaults.
	Defaults() T
	// Finish runs after struct validation. A non-nil error drops the record.
	Finish(rec *T, src SourceContext) error
}

// Engine runs one completion per page and parses the answer.
type Engine[T model.Record] struct {
	completer anthropic.Completer
	domain    Domain[T]
	maxTokens int64
}

// NewEngine returns an Engine for domain.
func NewEngine[T model.Record](completer anthropic.Completer, domain Domain[T], maxTokens int64) *Engine[T] {
	return &Engine[T]{completer: completer, domain: domain, maxTokens: maxTokens}
}

// Domain returns the engine's domain.
func (e *Engine[T]) Domain() Domain[T] { return e.domain }

// Extract sends text to the model and returns every valid record. Only a
// failed completion is an error; malformed answers yield an empty list.
func (e *Engine[T]) Extract(ctx context.Context, text string, src SourceContext) ([]T, error) {
	log := zap.L().With(
		zap.String("component", "extract"),
		zap.String("domain", e.domain.Name()),
		zap.String("url", src.URL),
	)
	log.Debug("extract: start", zap.Int("content_len", len(text)))

	start := time.Now()
	raw, err := e.completer.Complete(ctx, e.domain.System(), e.domain.Prompt(text, src), e.maxTokens)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s completion", e.domain.Name())
	}

	records, rejected := ParseRecords(raw, e.domain, src)
	log.Info("extract: complete",
		zap.Int("valid", len(records)),
		zap.Int("rejected", len(rejected)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return records, nil
}
