package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"SoccerSentiment/internal/ports"
)

const summaryInstructions = `You are given a batch of Reddit comments from supporters of one soccer team.
Summarize the most common topics of discussion as a short numbered list.
Format each item as: <rank>. **<Broad topic>** - <Elaboration in one or two sentences>.
Keep the list to at most five topics and base it only on the comments provided.`

// ChatGPTSummarizer condenses a window of comments into ranked topics using
// the OpenAI chat API.
type ChatGPTSummarizer struct {
	client openai.Client
	model  string
}

var _ ports.ChatSummarizer = (*ChatGPTSummarizer)(nil)

// NewChatGPTSummarizer builds a summarizer for the given API key and model.
func NewChatGPTSummarizer(apiKey, model string) *ChatGPTSummarizer {
	return &ChatGPTSummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Summarize sends the comment bodies as one batch and returns the model's
// numbered-list answer verbatim.
func (s *ChatGPTSummarizer) Summarize(ctx context.Context, comments []string) (string, error) {
	if len(comments) == 0 {
		return "", nil
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryInstructions),
			openai.UserMessage(strings.Join(comments, "\n---\n")),
		},
	}

	resp, err := s.callWithRetry(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}

func (s *ChatGPTSummarizer) callWithRetry(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes := []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := s.client.Chat.Completions.New(ctx, params)
		if err != nil {
			var wait time.Duration
			switch {
			case isRateLimitError(err):
				wait = rateLimitWaitTimes[attempt]
			case isServerError(err):
				wait = serverErrorWaitTimes[attempt]
			default:
				return nil, err
			}
			if attempt < maxRetries-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			return nil, err
		}
		return resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
