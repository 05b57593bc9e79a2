// Package gemini implements llm.Client on Google Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const (
	DefaultModel = "gemini-1.5-flash"
	providerName = "gemini"
)

// generator is the slice of the SDK the client depends on.
type generator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
	Close() error
}

type Client struct {
	gen   generator
	model string
}

// NewClient dials the Gemini API with an API key.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newWithGenerator(&sdkGenerator{client: gc}, model), nil
}

func newWithGenerator(gen generator, model string) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{gen: gen, model: model}
}

func (c *Client) AnalyzeResume(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	return c.generateJSON(ctx, "analyze", llm.AnalyzePrompt(input))
}

func (c *Client) GenerateQuestions(ctx context.Context, input llm.QuestionInput) (json.RawMessage, error) {
	return c.generateJSON(ctx, "questions", llm.QuestionsPrompt(input))
}

func (c *Client) Close() error {
	return c.gen.Close()
}

func (c *Client) generateJSON(ctx context.Context, task string, messages []llm.Message) (json.RawMessage, error) {
	start := time.Now()
	text, err := c.gen.generate(ctx, c.model, llm.Flatten(messages))
	if err != nil {
		return nil, err
	}
	text = llm.StripCodeFences(text)
	if !json.Valid([]byte(text)) {
		text, err = c.gen.generate(ctx, c.model, llm.Flatten(llm.FixJSONPrompt(messages, text)))
		if err != nil {
			return nil, err
		}
		text = llm.StripCodeFences(text)
		if !json.Valid([]byte(text)) {
			return nil, llm.ErrInvalidJSON
		}
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":    providerName,
		"model":       c.model,
		"task":        task,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return json.RawMessage(text), nil
}

type sdkGenerator struct {
	client *genai.Client
}

func (g *sdkGenerator) generate(ctx context.Context, modelName, prompt string) (string, error) {
	model := g.client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classify(err)
	}
	return extractText(resp)
}

func (g *sdkGenerator) Close() error {
	return g.client.Close()
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini generate: %w: %v", llm.ErrTimeout, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &llm.HTTPError{Provider: providerName, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return fmt.Errorf("gemini generate: %w", err)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini response has no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response has no content")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response has no text parts")
	}
	return b.String(), nil
}

var _ llm.Client = (*Client)(nil)
