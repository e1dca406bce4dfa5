package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidebot/engine/internal/analyzer"
)

type stubCompleter struct {
	reply Reply
	err   error
	delay time.Duration
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, contextText, userText string, opts Options) (Reply, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	return s.reply, s.err
}

func TestCompleteSuccess(t *testing.T) {
	inner := &stubCompleter{reply: Reply{
		Text:  "¡Claro! Agregué 2 tacos de pastor a tu pedido.",
		Model: "gemini-2.5-flash",
		Usage: Usage{InputTokens: 500, OutputTokens: 40},
	}}
	gw := New(inner, Options{Model: "gemini-2.5-flash", TimeoutSeconds: 5})

	reply := gw.Complete(context.Background(), "contexto", "quiero 2 tacos")

	assert.Equal(t, "¡Claro! Agregué 2 tacos de pastor a tu pedido.", reply.Text)
	assert.Equal(t, "gemini-2.5-flash", reply.Model)
	assert.Equal(t, 1, inner.calls)
}

func TestCompleteFailureFallsBack(t *testing.T) {
	inner := &stubCompleter{err: errors.New("boom")}
	gw := New(inner, Options{TimeoutSeconds: 5})

	reply := gw.Complete(context.Background(), "contexto", "quiero 2 tacos")

	assert.NotEmpty(t, reply.Text)
	assert.Equal(t, FallbackModel, reply.Model)
}

func TestCompleteTimeoutFallsBack(t *testing.T) {
	inner := &stubCompleter{
		reply: Reply{Text: "demasiado tarde", Model: "gemini-2.5-flash"},
		delay: 2 * time.Second,
	}
	gw := New(inner, Options{TimeoutSeconds: 1})

	start := time.Now()
	reply := gw.Complete(context.Background(), "contexto", "hola")

	require.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, FallbackModel, reply.Model)
	assert.NotEmpty(t, reply.Text)
}

func TestCompleteEmptyTextFallsBack(t *testing.T) {
	inner := &stubCompleter{reply: Reply{Text: "   ", Model: "gemini-2.5-flash"}}
	gw := New(inner, Options{TimeoutSeconds: 5})

	reply := gw.Complete(context.Background(), "contexto", "hola")
	assert.Equal(t, FallbackModel, reply.Model)
	assert.NotEmpty(t, reply.Text)
}

func TestFallbackRepliesAreIntentNeutral(t *testing.T) {
	a := analyzer.NewKeywordAnalyzer()
	for _, text := range fallbackReplies {
		an := a.Classify(text)
		assert.Equalf(t, analyzer.IntentUnknown, an.Intent, "fallback %q", text)
		assert.Emptyf(t, an.Actions, "fallback %q", text)
		assert.Emptyf(t, an.Items, "fallback %q", text)
		assert.Nilf(t, an.Address, "fallback %q", text)
	}
}

func TestFallbackIsDeterministicPerUserText(t *testing.T) {
	inner := &stubCompleter{err: errors.New("down")}
	gw := New(inner, Options{TimeoutSeconds: 1})

	a := gw.Complete(context.Background(), "ctx", "quiero una pizza")
	b := gw.Complete(context.Background(), "ctx", "quiero una pizza")
	assert.Equal(t, a.Text, b.Text)
}

func TestNilCompleterFallsBack(t *testing.T) {
	gw := New(nil, Options{})
	reply := gw.Complete(context.Background(), "ctx", "hola")
	assert.Equal(t, FallbackModel, reply.Model)
	assert.NotEmpty(t, reply.Text)
}

func TestCompletionCost(t *testing.T) {
	cost := CompletionCost("gemini-2.5-flash", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	assert.InDelta(t, 2.80, cost, 1e-9)

	assert.Zero(t, CompletionCost(FallbackModel, Usage{InputTokens: 100, OutputTokens: 100}))
	assert.Zero(t, CompletionCost("unknown-model", Usage{InputTokens: 100}))
}
