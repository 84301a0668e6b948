package checkin

import (
	"fmt"
	"strings"

	"wellcheck/app/service/checkinlog"

	_ "embed"
)

//go:embed system_prompt.txt
var systemPromptTemplate string

const firstCheckInContext = "This is the user's first check-in."

var stageGuidance = map[Stage]string{
	StageGreeting:   "Greet the user now.",
	StageMoodEnergy: "Find out the user's mood and energy level.",
	StageObjectives: "Ask for one to three objectives for today.",
	StageAdvice:     "Optionally offer brief practical advice, then present the recap.",
	StageRecap:      "Wait for the user to confirm the recap, then save it. Record corrections if they disagree.",
	StageSaved:      "The check-in is saved. Say goodbye warmly and keep any further talk short.",
}

// PreviousContext renders the most recent record for the instruction template.
func PreviousContext(record checkinlog.Record, ok bool) string {
	if !ok {
		return firstCheckInContext
	}

	date := record.Date
	if date == "" {
		date = "unknown date"
	}

	lines := []string{fmt.Sprintf("Previous check-in on %s:", date)}
	if record.Mood != "" {
		lines = append(lines, "- Mood: "+record.Mood)
	}
	if record.Energy != "" {
		lines = append(lines, "- Energy level: "+record.Energy)
	}
	if len(record.Objectives) > 0 {
		lines = append(lines, "- Goals: "+strings.Join(record.Objectives, ", "))
	}

	return strings.Join(lines, "\n")
}

// Instructions renders the system prompt for the current state of the session.
func (c *Controller) Instructions() string {
	stage := c.Stage()
	draft := c.Draft()

	// one pass, so placeholders inside user-supplied values are left as typed
	replacer := strings.NewReplacer(
		"{today}", c.now().In(c.loc).Format("Monday, 2006-01-02"),
		"{previous_context}", PreviousContext(c.previous, c.hasPrevious),
		"{stage}", string(stage),
		"{stage_guidance}", stageGuidance[stage],
		"{draft}", formatDraft(draft),
	)

	prompt := replacer.Replace(systemPromptTemplate)

	return prompt
}

func formatDraft(draft Draft) string {
	var lines []string
	if draft.Mood != "" {
		lines = append(lines, "- Mood: "+draft.Mood)
	}
	if draft.Energy != "" {
		lines = append(lines, "- Energy: "+draft.Energy)
	}
	if len(draft.Objectives) > 0 {
		lines = append(lines, "- Objectives: "+strings.Join(draft.Objectives, "; "))
	}
	if draft.Summary != "" {
		lines = append(lines, "- Recap: "+draft.Summary)
	}

	if len(lines) == 0 {
		return "Nothing yet."
	}

	return strings.Join(lines, "\n")
}
