package agent

import (
	"log/slog"

	"github.com/tmc/langchaingo/llms"
)

// Usage sums model calls and token counts over a session.
type Usage struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *Usage) add(choice *llms.ContentChoice) {
	u.Requests++

	if choice == nil {
		return
	}

	info := choice.GenerationInfo
	u.PromptTokens += intValue(info["PromptTokens"])
	u.CompletionTokens += intValue(info["CompletionTokens"])
	u.TotalTokens += intValue(info["TotalTokens"])
}

func (u Usage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("requests", u.Requests),
		slog.Int("prompt_tokens", u.PromptTokens),
		slog.Int("completion_tokens", u.CompletionTokens),
		slog.Int("total_tokens", u.TotalTokens),
	)
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
