package gateway

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	errx "github.com/pidebot/engine/internal/core/error"
	logx "github.com/pidebot/engine/pkg/logger"
)

// GeminiConfig holds provider credentials.
type GeminiConfig struct {
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`
}

// GeminiCompleter adapts the eino Gemini chat model to the Completer
// boundary.
type GeminiCompleter struct {
	model     einomodel.BaseChatModel
	modelName string
}

// NewGeminiCompleter builds the genai client and chat model for the
// configured response model.
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig, opts Options) (*GeminiCompleter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("error creating Gemini client")
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       opts.Model,
		Temperature: &opts.Temperature,
		MaxTokens:   &opts.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", opts.Model).Msg("error creating chat model")
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	return &GeminiCompleter{model: chatModel, modelName: opts.Model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, contextText, userText string, opts Options) (Reply, error) {
	messages := []*schema.Message{
		schema.SystemMessage(contextText),
		schema.UserMessage(userText),
	}

	out, err := g.model.Generate(ctx, messages,
		einomodel.WithTemperature(opts.Temperature),
		einomodel.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return Reply{}, errx.ExternalService(err, errx.CompletionErrorMessage)
	}
	if out == nil {
		return Reply{}, errx.ExternalService(fmt.Errorf("nil completion message"), errx.CompletionErrorMessage)
	}

	reply := Reply{Text: out.Content, Model: g.modelName}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		reply.Usage = Usage{
			InputTokens:  out.ResponseMeta.Usage.PromptTokens,
			OutputTokens: out.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return reply, nil
}

var _ Completer = (*GeminiCompleter)(nil)
