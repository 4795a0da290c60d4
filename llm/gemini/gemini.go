package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cschleiden/go-approvals/llm"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type Model struct {
	client *genai.Client
	model  string
}

var _ llm.Model = (*Model)(nil)

// New creates a model backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Model, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Model{
		client: client,
		model:  model,
	}, nil
}

func (m *Model) Generate(ctx context.Context, req *llm.Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}

	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return "", classify(err)
	}

	return responseText(resp), nil
}

// classify marks overload and rate limiting responses as transient.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && transientStatus(apiErr.Code) {
		return llm.Transient(err)
	}

	return fmt.Errorf("gemini: %w", err)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}

	return false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}

	return sb.String()
}
