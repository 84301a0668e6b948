package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"wellcheck/app/service/checkin"

	"github.com/elliotchance/pie/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

const (
	ToolRecordMoodEnergy = "record_mood_energy"
	ToolRecordObjectives = "record_objectives"
	ToolPresentRecap     = "present_recap"
	ToolSaveCheckIn      = "save_checkin"
)

var _ tools.Tool = (*agentTool)(nil)

type agentTool struct {
	name        string
	description string
	parameters  map[string]any
	call        func(ctx context.Context, input string) (string, error)
}

func (m *agentTool) Name() string {
	return m.name
}

func (m *agentTool) Description() string {
	return m.description
}

func (m *agentTool) Call(ctx context.Context, input string) (string, error) {
	return m.call(ctx, input)
}

func (m *agentTool) definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        m.name,
			Description: m.description,
			Parameters:  m.parameters,
		},
	}
}

func createCheckInTools(ctrl *checkin.Controller) []*agentTool {
	stageResult := func() string {
		return fmt.Sprintf("ok, stage is now %s", ctrl.Stage())
	}

	return []*agentTool{
		{
			name:        ToolRecordMoodEnergy,
			description: "Record the user's current mood and/or energy level as they described it. Call again to correct either value.",
			parameters:  GenerateSchema[checkin.MoodEnergyInput](),
			call: func(ctx context.Context, input string) (string, error) {
				var req checkin.MoodEnergyInput
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("invalid mood/energy JSON: %w", err)
				}

				if err := ctrl.RecordMoodEnergy(req.Mood, req.Energy); err != nil {
					return "", err
				}

				return stageResult(), nil
			},
		},
		{
			name:        ToolRecordObjectives,
			description: "Record the objectives the user wants to accomplish today. Pass every objective they offered; the call is rejected unless there are one to three.",
			parameters:  GenerateSchema[checkin.ObjectivesInput](),
			call: func(ctx context.Context, input string) (string, error) {
				var req checkin.ObjectivesInput
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("invalid objectives JSON: %w", err)
				}

				if err := ctrl.RecordObjectives(req.Objectives); err != nil {
					return "", err
				}

				return stageResult(), nil
			},
		},
		{
			name:        ToolPresentRecap,
			description: "Register the recap sentence you are about to say to the user before asking them to confirm it.",
			parameters:  GenerateSchema[checkin.RecapInput](),
			call: func(ctx context.Context, input string) (string, error) {
				var req checkin.RecapInput
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("invalid recap JSON: %w", err)
				}

				if err := ctrl.PresentRecap(req.Summary); err != nil {
					return "", err
				}

				return stageResult(), nil
			},
		},
		{
			name: ToolSaveCheckIn,
			description: "Save the daily check-in to the wellness log. Use only after mood, energy and objectives " +
				"were collected, the recap was presented and the user confirmed it. Returns text to tell the user.",
			parameters: GenerateSchema[checkin.SaveInput](),
			call: func(ctx context.Context, input string) (string, error) {
				var req checkin.SaveInput
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("invalid check-in JSON: %w", err)
				}

				return ctrl.Save(req)
			},
		},
	}
}

func toolDefinitions(list []*agentTool) []llms.Tool {
	return pie.Map(list, func(t *agentTool) llms.Tool {
		return t.definition()
	})
}
