package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"wellcheck/app/service/checkin"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

const sessionStartMessage = "(The user has just joined the voice session and is listening.)"

// Session is one check-in conversation. Turns are serialized.
type Session struct {
	ID uuid.UUID

	ctrl        *checkin.Controller
	llm         llms.Model
	temperature float64
	handler     callbacks.Handler
	tools       map[string]tools.Tool
	definitions []llms.Tool

	mu      sync.Mutex
	history []llms.MessageContent
	usage   Usage
}

func (s *Session) Controller() *checkin.Controller {
	return s.ctrl
}

// Usage returns the model usage accumulated so far.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage
}

// Greet produces the opening utterance of the session.
func (s *Session) Greet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx, llms.TextParts(llms.ChatMessageTypeHuman, sessionStartMessage))
}

// Reply feeds one user utterance to the model and returns the agent's answer.
func (s *Session) Reply(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.UserTurn()

	return s.run(ctx, llms.TextParts(llms.ChatMessageTypeHuman, text))
}

func (s *Session) run(ctx context.Context, msg llms.MessageContent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	s.history = append(s.history, msg)

	// confirmation of a save made during this turn, used if the model fails afterwards
	var saved string

	for round := 0; round < maxToolRounds; round++ {
		messages := make([]llms.MessageContent, 0, len(s.history)+1)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, s.ctrl.Instructions()))
		messages = append(messages, s.history...)

		resp, err := s.llm.GenerateContent(ctx, messages,
			llms.WithTools(s.definitions),
			llms.WithTemperature(s.temperature),
			llms.WithMaxTokens(maxCompletionTokens),
		)
		if err != nil {
			return s.fallback(saved, fmt.Errorf("failed to generate content: %w", err))
		}

		if len(resp.Choices) == 0 {
			s.usage.add(nil)
			return s.fallback(saved, errors.New("no completion choices"))
		}

		choice := resp.Choices[0]
		s.usage.add(choice)

		if len(choice.ToolCalls) == 0 {
			text := strings.TrimSpace(choice.Content)
			if text == "" {
				return s.fallback(saved, errors.New("empty completion"))
			}

			s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeAI, text))

			return text, nil
		}

		s.history = append(s.history, toolCallMessage(choice))
		for _, call := range choice.ToolCalls {
			result := s.execute(ctx, call)
			s.history = append(s.history, result)

			if text, ok := saveConfirmation(result); ok && s.ctrl.Stage() == checkin.StageSaved {
				saved = text
			}
		}
	}

	return s.fallback(saved, fmt.Errorf("no reply after %d tool rounds", maxToolRounds))
}

// fallback answers with the save confirmation when the check-in was stored but no reply followed.
func (s *Session) fallback(saved string, err error) (string, error) {
	if saved == "" {
		return "", err
	}

	slog.Warn("Reply failed after check-in was saved, using confirmation",
		"session_id", s.ID,
		"error", err,
	)

	s.history = append(s.history, llms.TextParts(llms.ChatMessageTypeAI, saved))

	return saved, nil
}

func saveConfirmation(msg llms.MessageContent) (string, bool) {
	for _, part := range msg.Parts {
		resp, ok := part.(llms.ToolCallResponse)
		if ok && resp.Name == ToolSaveCheckIn && !strings.HasPrefix(resp.Content, "error: ") {
			return resp.Content, true
		}
	}

	return "", false
}

func (s *Session) execute(ctx context.Context, call llms.ToolCall) llms.MessageContent {
	var name, args string
	if call.FunctionCall != nil {
		name = call.FunctionCall.Name
		args = call.FunctionCall.Arguments
	}

	output := s.callTool(ctx, name, args)

	slog.Info("Tool called",
		"session_id", s.ID,
		"tool", name,
		"stage", s.ctrl.Stage(),
		"output", output,
	)

	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    output,
			},
		},
	}
}

func (s *Session) callTool(ctx context.Context, name, args string) string {
	tool, ok := s.tools[name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name)
	}

	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	s.handler.HandleToolStart(ctx, args)

	output, err := tool.Call(ctx, args)
	if err != nil {
		s.handler.HandleToolError(ctx, err)

		return "error: " + err.Error()
	}

	s.handler.HandleToolEnd(ctx, output)

	return output
}

func toolCallMessage(choice *llms.ContentChoice) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if text := strings.TrimSpace(choice.Content); text != "" {
		parts = append(parts, llms.TextContent{Text: text})
	}
	for _, call := range choice.ToolCalls {
		parts = append(parts, call)
	}

	return llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: parts,
	}
}
