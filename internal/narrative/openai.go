package narrative

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/AitchEm-bot/audit-reports/internal/common"
)

const systemInstruction = "You are an audit reporting assistant. Write plain, professional prose with no markup."

type openaiClient struct {
	client openai.Client
	model  openai.ChatModel
}

func newOpenAIClient(apiKey string) *openaiClient {
	logger := common.Logger()
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(DefaultTimeout),
	}
	if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
		logger.Info("narrative: using custom OpenAI endpoint", "endpoint", endpoint)
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	model := openai.ChatModelGPT4oMini
	if name := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); name != "" {
		model = openai.ChatModel(name)
	}
	return &openaiClient{client: openai.NewClient(opts...), model: model}
}

func (c *openaiClient) Name() string { return "openai" }

func (c *openaiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	resp, err := c.client.Chat.Completions.New(runCtx, c.params(prompt))
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("narrative: openai exceeded %s: %w", DefaultTimeout, ErrTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("narrative: openai completion: %v: %w", err, ErrUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("narrative: openai returned no choices: %w", ErrUnavailable)
	}
	return strings.TrimSpace(Sanitize(resp.Choices[0].Message.Content)), nil
}

func (c *openaiClient) InvokeStreaming(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errc := make(chan error, 1)
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
	go func() {
		defer close(chunks)
		defer close(errc)
		defer stream.Close()
		start := time.Now()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := Sanitize(chunk.Choices[0].Delta.Content); text != "" {
				select {
				case chunks <- text:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			errc <- fmt.Errorf("narrative: openai stream: %v: %w", err, ErrUnavailable)
			return
		}
		common.Logger().Debug("narrative: openai stream complete", "dur", time.Since(start))
	}()
	return chunks, errc
}

func (c *openaiClient) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(prompt),
		},
	}
}
