package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// scrubAllowPrefixes lists the attribute key prefixes spans may export.
// Scan spans carry project paths and finding counts; everything else is
// assumed to be accidental and dropped.
var scrubAllowPrefixes = []string{
	"deadwood.",
	"error.",
	"http.",
	"lsp.",
	"mcp.",
	"scan.",
	"cleanup.",
	"project.",
	"file.",
	"manifest.",
}

// scrubDenyPrefixes lists key prefixes stripped unconditionally, even if
// a later allow entry would match.
var scrubDenyPrefixes = []string{
	"user.",
	"request.",
	"response.",
}

// scrubDenyKeys lists exact keys stripped unconditionally.
var scrubDenyKeys = map[string]bool{
	"email":    true,
	"password": true,
	"token":    true,
}

// spanScrubber is a SpanProcessor that drops span attributes not on the
// allow list before handing spans to its delegate, keeping credentials
// and unvetted high-cardinality keys out of the export path.
type spanScrubber struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewSpanScrubber wraps delegate with attribute scrubbing. A non-nil
// logger gets a warning per dropped key, which debug traces use to spot
// attributes missing from the allow list.
func NewSpanScrubber(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &spanScrubber{delegate: delegate, logger: logger}
}

func (p *spanScrubber) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	p.delegate.OnStart(parent, s)
}

// OnEnd wraps the span so the delegate only ever sees scrubbed
// attributes. ReadOnlySpan has no mutators, hence the view type.
func (p *spanScrubber) OnEnd(s sdktrace.ReadOnlySpan) {
	p.delegate.OnEnd(&scrubbedSpan{ReadOnlySpan: s, scrubber: p})
}

func (p *spanScrubber) Shutdown(ctx context.Context) error {
	if err := p.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("span scrubber shutdown: %w", err)
	}

	return nil
}

func (p *spanScrubber) ForceFlush(ctx context.Context) error {
	if err := p.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("span scrubber flush: %w", err)
	}

	return nil
}

// keep decides a single key's fate. Deny rules win over allow rules.
func (p *spanScrubber) keep(key string) bool {
	if scrubDenyKeys[key] {
		p.dropped(key)

		return false
	}

	for _, prefix := range scrubDenyPrefixes {
		if strings.HasPrefix(key, prefix) {
			p.dropped(key)

			return false
		}
	}

	// The bare "error" key is an OTel convention, allowed alongside the
	// "error." prefix family.
	if key == "error" {
		return true
	}

	for _, prefix := range scrubAllowPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	p.dropped(key)

	return false
}

func (p *spanScrubber) dropped(key string) {
	if p.logger != nil {
		p.logger.Warn("span attribute dropped", slog.String("key", key))
	}
}

// scrubbedSpan is a read-only view exposing only the keepable
// attributes of the wrapped span.
type scrubbedSpan struct {
	sdktrace.ReadOnlySpan

	scrubber *spanScrubber
}

func (s *scrubbedSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if s.scrubber.keep(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}
