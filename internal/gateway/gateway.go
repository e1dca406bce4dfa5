package gateway

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	logx "github.com/pidebot/engine/pkg/logger"
)

// Usage is the token accounting a completion call reports.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Reply is the result of one completion call. Model is the provider model
// that produced the text, or "fallback" when the provider failed.
type Reply struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
	Model string `json:"model"`
}

// FallbackModel tags replies produced locally after a provider failure.
const FallbackModel = "fallback"

// Options tune a completion call.
type Options struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"1024"`
	// TimeoutSeconds bounds the provider call; on expiry the customer
	// still gets a fallback reply.
	TimeoutSeconds int `envconfig:"RESPONSE_TIMEOUT_SECONDS" default:"20"`
}

func (o Options) timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// Completer is the raw provider boundary.
type Completer interface {
	Complete(ctx context.Context, contextText, userText string, opts Options) (Reply, error)
}

// fallbackReplies is the small rotation used when the provider fails. The
// pick is a pure function of the user text so a redelivered message gets
// the same reply. The texts avoid the analyzer's intent keywords so an
// outage apology can never move the conversation.
var fallbackReplies = []string{
	"Disculpa, tuve un problema para leer tu mensaje. ¿Me lo repites, por favor?",
	"Perdón, algo falló de mi lado. ¿Me escribes otra vez tu último mensaje?",
	"Lo siento, no pude responderte en este momento. ¿Me ayudas repitiendo tu último mensaje?",
}

func fallbackFor(userText string) Reply {
	h := fnv.New32a()
	h.Write([]byte(userText))
	return Reply{
		Text:  fallbackReplies[int(h.Sum32())%len(fallbackReplies)],
		Model: FallbackModel,
	}
}

// Gateway wraps a Completer with the engine's contract: bounded timeout,
// guaranteed reply, no retry. A second completion call for the same turn
// would risk interpreting the user's message twice, so failures fall back
// immediately instead.
type Gateway struct {
	inner Completer
	opts  Options
}

func New(inner Completer, opts Options) *Gateway {
	return &Gateway{inner: inner, opts: opts}
}

// Timeout is the per-call bound Complete enforces. Callers that hold locks
// across a completion size them off this.
func (g *Gateway) Timeout() time.Duration {
	return g.opts.timeout()
}

// Complete always returns a non-empty reply. Provider errors are logged and
// swallowed here; they are not the customer's problem.
func (g *Gateway) Complete(ctx context.Context, contextText, userText string) Reply {
	if g.inner == nil {
		return fallbackFor(userText)
	}

	cctx, cancel := context.WithTimeout(ctx, g.opts.timeout())
	defer cancel()

	reply, err := g.inner.Complete(cctx, contextText, userText, g.opts)
	if err != nil {
		logx.Error().Err(err).Str("model", g.opts.Model).Msg("completion failed, using fallback reply")
		return fallbackFor(userText)
	}
	if strings.TrimSpace(reply.Text) == "" {
		logx.Warn().Str("model", reply.Model).Msg("completion returned empty text, using fallback reply")
		return fallbackFor(userText)
	}

	if cost := CompletionCost(reply.Model, reply.Usage); cost > 0 {
		logx.Debug().
			Str("model", reply.Model).
			Int("input_tokens", reply.Usage.InputTokens).
			Int("output_tokens", reply.Usage.OutputTokens).
			Float64("cost_usd", cost).
			Msg("completion usage")
	}

	return reply
}
