package agent

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var _ callbacks.Handler = (*LogCallbackHandler)(nil)

type LogCallbackHandler struct {
	callbacks.SimpleHandler
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil || len(res.Choices) == 0 {
		return
	}

	slog.DebugContext(ctx, "LLM generate content end",
		"stop_reason", res.Choices[0].StopReason,
		"tool_calls", len(res.Choices[0].ToolCalls),
	)
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "LLM error", "error", err)
}

func (l LogCallbackHandler) HandleToolStart(ctx context.Context, input string) {
	slog.DebugContext(ctx, "Tool start", "input", input)
}

func (l LogCallbackHandler) HandleToolEnd(ctx context.Context, output string) {
	slog.DebugContext(ctx, "Tool end", "output", output)
}

func (l LogCallbackHandler) HandleToolError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Tool error", "error", err)
}
