package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhealth/ivr-platform/internal/transcript"
)

func TestBuildPrompt(t *testing.T) {
	ts := time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC)
	entries := []transcript.Entry{
		{Timestamp: ts, Role: transcript.RoleAgent, Text: "Please say your registered phone number."},
		{Timestamp: ts.Add(5 * time.Second), Role: transcript.RoleCaller, Text: "555 123 4567"},
	}

	prompt := buildPrompt(entries)
	assert.Equal(t,
		"[2026-08-28 15:04:05] AGENT: Please say your registered phone number.\n"+
			"[2026-08-28 15:04:10] CALLER: 555 123 4567",
		prompt)
}

type fakeConverseAPI struct {
	gotSystem  string
	gotMessage string
	text       string
	err        error
}

func (f *fakeConverseAPI) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(params.System) > 0 {
		if block, ok := params.System[0].(*brtypes.SystemContentBlockMemberText); ok {
			f.gotSystem = block.Value
		}
	}
	if len(params.Messages) > 0 && len(params.Messages[0].Content) > 0 {
		if block, ok := params.Messages[0].Content[0].(*brtypes.ContentBlockMemberText); ok {
			f.gotMessage = block.Value
		}
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: f.text},
				},
			},
		},
	}, nil
}

func TestBedrockSummarizer(t *testing.T) {
	api := &fakeConverseAPI{text: `{"summary":"caller booked a visit"}`}
	s, err := NewBedrockSummarizer(api, "anthropic.claude-3-haiku")
	require.NoError(t, err)

	out, err := s.Summarize(context.Background(), []transcript.Entry{
		{Role: transcript.RoleCaller, Text: "I need an appointment"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"caller booked a visit"}`, out)
	assert.Contains(t, api.gotSystem, "call-summary generator")
	assert.Contains(t, api.gotMessage, "CALLER: I need an appointment")
}

func TestBedrockSummarizerEmptyTranscript(t *testing.T) {
	s, err := NewBedrockSummarizer(&fakeConverseAPI{}, "anthropic.claude-3-haiku")
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), nil)
	require.Error(t, err)
}

func TestBedrockSummarizerProviderError(t *testing.T) {
	api := &fakeConverseAPI{err: errors.New("throttled")}
	s, err := NewBedrockSummarizer(api, "anthropic.claude-3-haiku")
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), []transcript.Entry{{Role: "caller", Text: "hi"}})
	require.Error(t, err)
}

func TestBedrockSummarizerRequiresModel(t *testing.T) {
	_, err := NewBedrockSummarizer(&fakeConverseAPI{}, " ")
	require.Error(t, err)
}

func TestStaticSummarizer(t *testing.T) {
	out, err := StaticSummarizer{}.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "No conversation was recorded for this call.", out)

	out, err = StaticSummarizer{Text: "fixed"}.Summarize(context.Background(), []transcript.Entry{{Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
}
