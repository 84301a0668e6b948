package checkin

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wellcheck/app/service/checkinlog"

	"github.com/elliotchance/pie/v2"
	"github.com/go-playground/validator/v10"
)

const notSavedNotice = "I'm sorry, I wasn't able to save your check-in this time, so nothing was recorded. " +
	"You can confirm again if you'd like me to try once more."

var validate = validator.New(validator.WithRequiredStructEnabled())

// Controller walks one session through the check-in flow.
// Save is the only event with a side effect outside the controller.
type Controller struct {
	store Appender
	loc   *time.Location
	now   func() time.Time

	previous    checkinlog.Record
	hasPrevious bool

	mu            sync.Mutex
	stage         Stage
	draft         Draft
	recapAnswered bool
}

func NewController(store Appender, previous checkinlog.Record, hasPrevious bool, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.Local
	}

	return &Controller{
		store:       store,
		loc:         loc,
		now:         time.Now,
		previous:    previous,
		hasPrevious: hasPrevious,
		stage:       StageGreeting,
	}
}

func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stage
}

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	draft := c.draft
	draft.Objectives = append([]string(nil), c.draft.Objectives...)

	return draft
}

func (c *Controller) Previous() (checkinlog.Record, bool) {
	return c.previous, c.hasPrevious
}

// UserTurn registers a user utterance.
func (c *Controller) UserTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.stage {
	case StageGreeting:
		c.stage = StageMoodEnergy
	case StageRecap:
		c.recapAnswered = true
	default:
	}
}

func (c *Controller) RecordMoodEnergy(mood, energy string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCollecting(); err != nil {
		return err
	}

	mood = strings.TrimSpace(mood)
	energy = strings.TrimSpace(energy)
	if mood == "" && energy == "" {
		return invalid("neither mood nor energy was given; ask the user how they feel and how their energy is")
	}

	if mood != "" {
		c.draft.Mood = mood
	}
	if energy != "" {
		c.draft.Energy = energy
	}

	c.reopen()
	c.advance()

	return nil
}

func (c *Controller) RecordObjectives(objectives []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCollecting(); err != nil {
		return err
	}

	objectives = normalizeObjectives(objectives)
	switch {
	case len(objectives) < checkinlog.MinObjectives:
		return invalid("no objectives were given; ask the user for at least one thing they want to do today")
	case len(objectives) > checkinlog.MaxObjectives:
		return invalid(fmt.Sprintf(
			"the user offered %d objectives; ask them to narrow it down to the %d that matter most today",
			len(objectives), checkinlog.MaxObjectives,
		))
	}

	c.draft.Objectives = objectives

	c.reopen()
	c.advance()

	return nil
}

func (c *Controller) PresentRecap(summary string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCollecting(); err != nil {
		return err
	}

	if c.stage != StageAdvice && c.stage != StageRecap {
		return invalid("cannot recap yet: " + c.missing())
	}

	c.draft.Summary = strings.TrimSpace(summary)
	c.stage = StageRecap
	c.recapAnswered = false

	return nil
}

// Save persists the confirmed check-in. Validation problems return a *ValidationError.
// A storage failure is not an error here: the returned text tells the user nothing was saved.
func (c *Controller) Save(input SaveInput) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage == StageSaved {
		return "", invalid("this check-in is already saved")
	}

	input.Mood = strings.TrimSpace(input.Mood)
	input.Energy = strings.TrimSpace(input.Energy)
	input.Summary = strings.TrimSpace(input.Summary)
	input.Objectives = normalizeObjectives(input.Objectives)

	if err := validate.Struct(input); err != nil {
		return "", describeValidation(err)
	}

	if c.stage != StageRecap {
		return "", invalid("recap mood, energy and objectives and get the user's confirmation before saving")
	}
	if !c.recapAnswered {
		return "", invalid("wait for the user to confirm the recap before saving")
	}
	if !c.matchesDraft(input) {
		return "", invalid("these values differ from the recap the user confirmed; " +
			"record the changes, present the recap again and wait for confirmation")
	}

	now := c.now().In(c.loc)
	record := checkinlog.Record{
		Date:       now.Format(checkinlog.DateLayout),
		Time:       now.Format(checkinlog.TimeLayout),
		Mood:       c.draft.Mood,
		Energy:     c.draft.Energy,
		Objectives: append([]string(nil), c.draft.Objectives...),
		Summary:    input.Summary,
	}
	if record.Summary == "" {
		record.Summary = fmt.Sprintf("User reported feeling %s with %s energy. Goals: %s",
			record.Mood, record.Energy, strings.Join(record.Objectives, ", "))
	}

	c.draft.Summary = record.Summary

	if err := c.store.Append(record); err != nil {
		slog.Error("Failed to save check-in",
			"date", record.Date,
			"error", err,
		)

		// a new confirmation is required before another attempt
		c.recapAnswered = false

		return notSavedNotice, nil
	}

	c.stage = StageSaved

	slog.Info("Check-in saved",
		"date", record.Date,
		"mood", record.Mood,
		"energy", record.Energy,
		"objectives", record.Objectives,
		"telegram", true,
	)

	return fmt.Sprintf(
		"Check-in saved. I recorded your mood (%s), your energy (%s) and %s for today. "+
			"Have a good day, and I look forward to hearing how it went next time.",
		record.Mood, record.Energy, countObjectives(len(record.Objectives)),
	), nil
}

// matchesDraft reports whether input carries the recapped values. Case is ignored.
func (c *Controller) matchesDraft(input SaveInput) bool {
	if !strings.EqualFold(input.Mood, c.draft.Mood) || !strings.EqualFold(input.Energy, c.draft.Energy) {
		return false
	}
	if len(input.Objectives) != len(c.draft.Objectives) {
		return false
	}
	for i, objective := range input.Objectives {
		if !strings.EqualFold(objective, c.draft.Objectives[i]) {
			return false
		}
	}

	return true
}

func (c *Controller) ensureCollecting() error {
	switch c.stage {
	case StageGreeting:
		return invalid("the user has not answered the greeting yet")
	case StageSaved:
		return invalid("this check-in is already saved")
	default:
		return nil
	}
}

// reopen drops a pending recap after a correction.
func (c *Controller) reopen() {
	if c.stage == StageRecap {
		c.stage = StageMoodEnergy
		c.recapAnswered = false
	}
}

func (c *Controller) advance() {
	switch {
	case c.draft.Mood == "" || c.draft.Energy == "":
		c.stage = StageMoodEnergy
	case len(c.draft.Objectives) == 0:
		c.stage = StageObjectives
	case c.stage != StageRecap:
		c.stage = StageAdvice
	}
}

func (c *Controller) missing() string {
	var parts []string
	if c.draft.Mood == "" {
		parts = append(parts, "mood")
	}
	if c.draft.Energy == "" {
		parts = append(parts, "energy")
	}
	if len(c.draft.Objectives) == 0 {
		parts = append(parts, "objectives")
	}

	return "still missing " + strings.Join(parts, ", ")
}

func normalizeObjectives(objectives []string) []string {
	return pie.Filter(
		pie.Map(objectives, strings.TrimSpace),
		func(s string) bool { return s != "" },
	)
}

func countObjectives(n int) string {
	if n == 1 {
		return "your objective"
	}

	return fmt.Sprintf("your %d objectives", n)
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid(err.Error())
	}

	fe := fieldErrs[0]
	switch fe.StructField() {
	case "Mood":
		return invalid("mood is missing; ask the user how they are feeling")
	case "Energy":
		return invalid("energy is missing; ask the user about their energy level")
	case "Objectives":
		if fe.Tag() == "max" {
			return invalid(fmt.Sprintf("at most %d objectives can be saved; ask the user which ones matter most",
				checkinlog.MaxObjectives))
		}
		return invalid("at least one objective is required; ask the user what they want to accomplish today")
	default:
		return invalid(fe.Error())
	}
}
