package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"wellcheck/app/service/checkin"
	"wellcheck/app/service/checkinlog"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ToolSaveCheckIn   = "save_checkin"
	ToolLatestCheckIn = "get_latest_checkin"
)

type Saver interface {
	SaveCheckIn(input checkin.SaveInput) (string, error)
}

type Latest interface {
	LoadMostRecent() (checkinlog.Record, bool)
}

type saveTool struct {
	saver Saver
}

func (t *saveTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolSaveCheckIn,
		mcp.WithDescription("Save today's wellness check-in once the user has confirmed the recap. "+
			"Fails if the active session has not reached a confirmed recap."),
		mcp.WithString("mood",
			mcp.Required(),
			mcp.Description("The user's mood in their own words"),
		),
		mcp.WithString("energy",
			mcp.Required(),
			mcp.Description("The user's energy level in their own words"),
		),
		mcp.WithArray("objectives",
			mcp.Required(),
			mcp.Description("One to three objectives for today"),
			mcp.Items(map[string]any{"type": "string"}),
			mcp.MinItems(checkinlog.MinObjectives),
			mcp.MaxItems(checkinlog.MaxObjectives),
		),
		mcp.WithString("summary",
			mcp.Description("Short summary of the check-in"),
		),
	)
}

func (t *saveTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeSaveInput(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text, err := t.saver.SaveCheckIn(input)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(text), nil
}

type latestTool struct {
	latest Latest
}

func (t *latestTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolLatestCheckIn,
		mcp.WithDescription("Return the most recent saved check-in, if any"),
	)
}

func (t *latestTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	record, ok := t.latest.LoadMostRecent()

	return mcp.NewToolResultText(checkin.PreviousContext(record, ok)), nil
}

func decodeSaveInput(args map[string]any) (checkin.SaveInput, error) {
	var input checkin.SaveInput

	data, err := json.Marshal(args)
	if err != nil {
		return input, fmt.Errorf("invalid arguments: %w", err)
	}

	if err = json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("invalid arguments: %w", err)
	}

	return input, nil
}
