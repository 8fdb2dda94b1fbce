package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/voxhealth/ivr-platform/internal/transcript"
)

// GeminiSummarizer summarizes transcripts with Google's Gemini API.
type GeminiSummarizer struct {
	client  *genai.Client
	modelID string
}

// NewGeminiSummarizer creates a summarizer backed by Gemini.
func NewGeminiSummarizer(ctx context.Context, apiKey, modelID string) (*GeminiSummarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("summary: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("summary: failed to create gemini client: %w", err)
	}
	return &GeminiSummarizer{client: client, modelID: modelID}, nil
}

// Close releases the underlying API client.
func (s *GeminiSummarizer) Close() error {
	return s.client.Close()
}

// Summarize sends the rendered transcript as a single user turn.
func (s *GeminiSummarizer) Summarize(ctx context.Context, entries []transcript.Entry) (string, error) {
	prompt := buildPrompt(entries)
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("summary: transcript is empty")
	}

	model := s.client.GenerativeModel(s.modelID)
	model.SetTemperature(0)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("summary: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("summary: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("summary: gemini returned empty content")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("summary: gemini returned no text parts")
	}
	return text, nil
}
