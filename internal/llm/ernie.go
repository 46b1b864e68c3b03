// Package llm implements the ERNIE summarization provider over Qianfan's
// OpenAI-compatible chat-completions surface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"

	"github.com/snarg/voxbridge/internal/provider"
)

const (
	// ProviderName is the registry key for this summarizer.
	ProviderName = "ernie"

	serviceVersion = "1.0"

	defaultBaseURL     = "https://qianfan.baidubce.com/v2"
	defaultModel       = "ernie-speed-8k"
	defaultTemperature = 0.3
	defaultTopP        = 0.7
	defaultPenalty     = 1.0
	defaultMaxTokens   = 1000
	defaultTimeout     = 30 * time.Second

	// MaxBatchSize bounds one batch-summarize request.
	MaxBatchSize = 10
)

// SummaryTypes are the supported summary kinds, in display order.
var SummaryTypes = []string{"general", "key_points", "brief"}

// promptTemplates map summary kinds to their instruction template. The
// %s placeholders are the max-length instruction and the input text.
var promptTemplates = map[string]string{
	"general":    "Summarize the following text, keeping the main information and key details%s:\n\n%s\n\nSummary:",
	"key_points": "Extract the key points and core ideas from the following text%s:\n\n%s\n\nKey points:",
	"brief":      "Briefly state the main content of the following text in concise language%s:\n\n%s\n\nBrief summary:",
}

// Config parameterizes the ERNIE summarizer. The API key comes from
// environment configuration and is never logged.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	TopP         float64
	PenaltyScore float64 // Qianfan penalty_score, 1.0 = neutral
	MaxTokens    int
	Timeout      time.Duration
}

// Client implements provider.Summarizer against an ERNIE chat endpoint.
type Client struct {
	cfg    Config
	client oai.Client
	log    zerolog.Logger
}

// New constructs an ERNIE summarizer. Fails when no API key is configured,
// so the registry constructor surfaces a clear preload error instead of a
// confusing 401 later.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ernie: API key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = defaultTopP
	}
	if cfg.PenaltyScore == 0 {
		cfg.PenaltyScore = defaultPenalty
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	client := oai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return &Client{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("provider", ProviderName).Logger(),
	}, nil
}

// Info implements provider.Provider.
func (c *Client) Info() provider.ServiceInfo {
	return provider.ServiceInfo{
		Name:        ProviderName,
		Kind:        provider.KindSummarizer,
		Version:     serviceVersion,
		Model:       c.cfg.Model,
		Description: "ERNIE text summarization (Qianfan)",
		Detail: map[string]any{
			"temperature":     c.cfg.Temperature,
			"top_p":           c.cfg.TopP,
			"penalty_score":   c.cfg.PenaltyScore,
			"max_tokens":      c.cfg.MaxTokens,
			"supported_types": SummaryTypes,
		},
	}
}

// Ping implements provider.Provider with a minimal one-line completion.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := oai.ChatCompletionNewParams{
		Model:     shared.ChatModel(c.cfg.Model),
		Messages:  []oai.ChatCompletionMessageParamUnion{oai.UserMessage("ping")},
		MaxTokens: param.NewOpt(int64(8)),
	}
	if _, err := c.client.Chat.Completions.New(ctx, params); err != nil {
		c.log.Debug().Err(err).Msg("ernie ping failed")
		return false
	}
	return true
}

// Summarize implements provider.Summarizer. Empty input and unsupported
// kinds return a structured failure without a network call; transport and
// API faults return a Go error for the caller to convert.
func (c *Client) Summarize(ctx context.Context, text, kind string, maxLength int) (*provider.Summary, error) {
	if strings.TrimSpace(text) == "" {
		return c.failure("input text is empty", text, kind), nil
	}
	tpl, ok := promptTemplates[kind]
	if !ok {
		return c.failure(fmt.Sprintf("unsupported summary type: %s", kind), text, kind), nil
	}

	c.log.Info().Str("summary_type", kind).Int("text_length", len(text)).Msg("summarizing text")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := oai.ChatCompletionNewParams{
		Model:            shared.ChatModel(c.cfg.Model),
		Messages:         []oai.ChatCompletionMessageParamUnion{oai.UserMessage(buildPrompt(tpl, text, maxLength))},
		Temperature:      param.NewOpt(c.cfg.Temperature),
		TopP:             param.NewOpt(c.cfg.TopP),
		FrequencyPenalty: param.NewOpt(c.cfg.PenaltyScore - 1.0), // penalty_score 1.0 = neutral
		MaxTokens:        param.NewOpt(int64(c.cfg.MaxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ernie chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ernie: empty choices in response")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.log.Info().Int("original_length", len(text)).Int("summary_length", len(summary)).Msg("summary complete")

	return &provider.Summary{
		Success:        true,
		Summary:        summary,
		OriginalText:   text,
		SummaryType:    kind,
		MaxLength:      maxLength,
		Model:          c.cfg.Model,
		OriginalLength: len(text),
		SummaryLength:  len(summary),
	}, nil
}

// SummarizeBatch summarizes each text independently; one item's failure
// never aborts the rest. Results carry their batch index.
func (c *Client) SummarizeBatch(ctx context.Context, texts []string, kind string) []*provider.Summary {
	results := make([]*provider.Summary, 0, len(texts))
	for i, text := range texts {
		idx := i
		s, err := c.Summarize(ctx, text, kind, 0)
		if err != nil {
			c.log.Error().Err(err).Int("batch_index", idx).Msg("batch summarize item failed")
			s = c.failure(err.Error(), text, kind)
		}
		s.BatchIndex = &idx
		results = append(results, s)
	}
	c.log.Info().Int("count", len(results)).Msg("batch summarize complete")
	return results
}

func (c *Client) failure(reason, text, kind string) *provider.Summary {
	return &provider.Summary{
		Success:      false,
		Error:        reason,
		OriginalText: text,
		SummaryType:  kind,
		Model:        c.cfg.Model,
	}
}

func buildPrompt(tpl, text string, maxLength int) string {
	lengthInstr := ""
	if maxLength > 0 {
		lengthInstr = fmt.Sprintf(", within %d characters", maxLength)
	}
	return fmt.Sprintf(tpl, lengthInstr, text)
}
