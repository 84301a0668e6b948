package agent

import (
	"fmt"
	"net/http"
	"time"

	"wellcheck/app/config"
	"wellcheck/app/service/checkin"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"
)

const (
	maxReasonDuration   = 30 * time.Second
	maxToolRounds       = 6
	maxCompletionTokens = 1000
)

// Service creates LLM-driven sessions on top of a check-in controller.
type Service struct {
	llm         llms.Model
	temperature float64
	handler     callbacks.Handler
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	handler := LogCallbackHandler{}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithToken(cfg.OpenAI.Token),
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
		}),
		openai.WithCallback(handler),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return NewService(llm, cfg.OpenAI.Temperature, handler), nil
}

func NewService(llm llms.Model, temperature float64, handler callbacks.Handler) *Service {
	if handler == nil {
		handler = callbacks.SimpleHandler{}
	}

	return &Service{
		llm:         llm,
		temperature: temperature,
		handler:     handler,
	}
}

func (s *Service) NewSession(ctrl *checkin.Controller) *Session {
	list := createCheckInTools(ctrl)

	byName := make(map[string]tools.Tool, len(list))
	for _, t := range list {
		byName[t.Name()] = t
	}

	return &Session{
		ID:          uuid.New(),
		ctrl:        ctrl,
		llm:         s.llm,
		temperature: s.temperature,
		handler:     s.handler,
		tools:       byName,
		definitions: toolDefinitions(list),
	}
}
