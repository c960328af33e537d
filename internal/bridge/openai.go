package bridge

import (
	"context"
	"fmt"
	log "log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const systemPrompt = `
You are Mina, a voice assistant. Your answer is read aloud by a speech
synthesizer, so:
1. Answer in one to three short sentences.
2. No markdown, no lists, no code blocks, no emoji.
3. If you did not understand the request, ask one short clarifying question.
`

// OpenAIConfig configures the direct chat backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI answers through a chat completion instead of the agent CLI. The
// answer is rendered as an agent envelope so callers parse both backends the
// same way.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

var _ Invoker = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := openai.ChatModel(cfg.Model)
	if model == "" {
		model = openai.ChatModelGPT5Nano
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Invoke never returns a process-level error: API failures become a
// non-zero exit status with the error text on Stderr.
func (o *OpenAI) Invoke(ctx context.Context, message, sessionID string) (Result, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(message),
		},
		Model: o.model,
	})
	if err != nil {
		return Result{ExitCode: 1, Stderr: fmt.Sprintf("chat completion: %v", err)}, nil
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	log.Debug("Chat completion", "session", sessionID, "model", string(o.model), "chars", len(content))

	out, err := Render(content)
	if err != nil {
		return Result{ExitCode: 1, Stderr: err.Error()}, nil
	}
	return Result{Stdout: out}, nil
}
