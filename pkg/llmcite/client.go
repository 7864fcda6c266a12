// Package llmcite adapts an LLM to the pipeline's fallback citation
// generator contract. The model's output is untrusted: it is validated
// against a strict shape before anything downstream sees it.
package llmcite

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultModel = "claude-haiku-4-5-20251001"

// ErrBadShape is returned when the model response does not match the
// required {sourceId, citationText} shape.
var ErrBadShape = eris.New("llmcite: response does not match required shape")

// Generated is the validated fallback citation payload.
type Generated struct {
	SourceID     string `json:"sourceId"`
	CitationText string `json:"citationText"`
}

// Generator produces a citation for a source deterministic formatting
// could not handle.
type Generator interface {
	GenerateCitation(ctx context.Context, sourceID, sourceDescription, style string) (*Generated, error)
}

// Option configures the client.
type Option func(*client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *client) {
		c.model = model
	}
}

type client struct {
	sdk   sdk.Client
	model string
}

// NewClient creates a Generator backed by the Anthropic API.
func NewClient(apiKey string, opts ...Option) Generator {
	c := &client{
		sdk:   sdk.NewClient(option.WithAPIKey(apiKey)),
		model: defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const systemPrompt = `You format bibliographic citations. Respond with a single JSON object
{"sourceId": "...", "citationText": "..."} and nothing else. The citationText must be a
complete citation in the requested style built only from the metadata given.`

func (c *client) GenerateCitation(ctx context.Context, sourceID, sourceDescription, style string) (*Generated, error) {
	prompt := "Source ID: " + sourceID + "\nStyle: " + style + "\nMetadata:\n" + sourceDescription

	msg, err := c.sdk.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: 512,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "llmcite: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	gen, err := ParseResponse(text.String())
	if err != nil {
		zap.L().Warn("llmcite: discarding malformed model response",
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
		return nil, err
	}
	if gen.SourceID != sourceID {
		return nil, eris.Wrapf(ErrBadShape, "sourceId mismatch: want %s got %s", sourceID, gen.SourceID)
	}
	return gen, nil
}

// ParseResponse validates raw model output against the required shape.
// Partial or garbled structures are rejected outright rather than patched.
func ParseResponse(raw string) (*Generated, error) {
	raw = strings.TrimSpace(raw)

	// Tolerate fenced output but nothing else around the object.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var gen Generated
	if err := dec.Decode(&gen); err != nil {
		return nil, eris.Wrap(ErrBadShape, err.Error())
	}
	if gen.SourceID == "" || strings.TrimSpace(gen.CitationText) == "" {
		return nil, ErrBadShape
	}
	return &gen, nil
}
