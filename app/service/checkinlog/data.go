package checkinlog

import (
	"errors"
	"strings"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	MinObjectives = 1
	MaxObjectives = 3
)

var ErrStorageWrite = errors.New("check-in log write failed")

// Record is one completed check-in.
type Record struct {
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Mood       string   `json:"mood"`
	Energy     string   `json:"energy"`
	Objectives []string `json:"objectives"`
	Summary    string   `json:"summary"`
}

// Log is the persisted document.
type Log struct {
	CheckIns []Record `json:"check_ins"`
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Mood) == "" {
		return errors.New("mood is empty")
	}
	if strings.TrimSpace(r.Energy) == "" {
		return errors.New("energy is empty")
	}
	if len(r.Objectives) < MinObjectives || len(r.Objectives) > MaxObjectives {
		return errors.New("objectives must contain 1 to 3 entries")
	}
	for _, objective := range r.Objectives {
		if strings.TrimSpace(objective) == "" {
			return errors.New("objectives contain an empty entry")
		}
	}

	return nil
}
