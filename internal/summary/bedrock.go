package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/voxhealth/ivr-platform/internal/transcript"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockSummarizer summarizes transcripts with Bedrock's Converse API.
type BedrockSummarizer struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockSummarizer creates a summarizer for the given model.
func NewBedrockSummarizer(api bedrockConverseAPI, modelID string) (*BedrockSummarizer, error) {
	if api == nil {
		return nil, errors.New("summary: bedrock converse client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("summary: bedrock model id is required")
	}
	return &BedrockSummarizer{api: api, modelID: modelID}, nil
}

// Summarize sends the rendered transcript as a single user turn.
func (s *BedrockSummarizer) Summarize(ctx context.Context, entries []transcript.Entry) (string, error) {
	prompt := buildPrompt(entries)
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("summary: transcript is empty")
	}

	out, err := s.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(s.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary: bedrock converse: %w", err)
	}

	return bedrockOutputText(out)
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("summary: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("summary: bedrock response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("summary: bedrock response contained no text content blocks")
	}
	return text, nil
}
