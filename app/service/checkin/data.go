package checkin

import "wellcheck/app/service/checkinlog"

// Stage is the position of a session in the check-in flow.
type Stage string

const (
	StageGreeting   Stage = "greeting"
	StageMoodEnergy Stage = "mood_energy"
	StageObjectives Stage = "objectives"
	StageAdvice     Stage = "advice"
	StageRecap      Stage = "recap"
	StageSaved      Stage = "saved"
)

// Appender is the part of the log store the controller writes through.
type Appender interface {
	Append(record checkinlog.Record) error
}

// Draft holds what has been collected so far in the session.
type Draft struct {
	Mood       string   `json:"mood,omitempty"`
	Energy     string   `json:"energy,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// SaveInput is the argument set of the save_checkin tool.
type SaveInput struct {
	Mood       string   `json:"mood" validate:"required" jsonschema:"required" jsonschema_description:"The user's self-reported mood, e.g. calm, tired, stressed."`
	Energy     string   `json:"energy" validate:"required" jsonschema:"required" jsonschema_description:"The user's energy level, e.g. 7 out of 10 or low."`
	Objectives []string `json:"objectives" validate:"min=1,max=3,dive,required" jsonschema:"required,minItems=1,maxItems=3" jsonschema_description:"One to three short goals the user wants to accomplish today."`
	Summary    string   `json:"summary,omitempty" jsonschema_description:"One sentence combining mood, energy and objectives."`
}

type MoodEnergyInput struct {
	Mood   string `json:"mood,omitempty" jsonschema_description:"The user's mood in their own words."`
	Energy string `json:"energy,omitempty" jsonschema_description:"The user's energy level in their own words."`
}

type ObjectivesInput struct {
	Objectives []string `json:"objectives" jsonschema:"required" jsonschema_description:"Every objective the user offered, one entry each."`
}

type RecapInput struct {
	Summary string `json:"summary" jsonschema:"required" jsonschema_description:"The recap sentence you are about to say to the user."`
}

// ValidationError rejects a proposed transition or tool input.
// It is reported back into the conversation, never to the user as a failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
