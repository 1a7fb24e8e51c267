package models

import (
	"fmt"
	"time"
)

// User judgments on a past behavioral event.
const (
	JudgmentCorrect   = "correct"
	JudgmentIncorrect = "incorrect"
)

// FeedbackRecord is a human judgment on a detected event. Produced by the
// feedback pipeline; read-only input to the optimizer.
type FeedbackRecord struct {
	EventID   string
	CollarID  string
	Behavior  string
	Judgment  string
	Timestamp time.Time
}

// Validate checks a single feedback record.
func (f *FeedbackRecord) Validate() error {
	if f.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if f.CollarID == "" {
		return fmt.Errorf("collar_id is required")
	}
	if f.Behavior == "" {
		return fmt.Errorf("behavior is required")
	}
	if f.Judgment != JudgmentCorrect && f.Judgment != JudgmentIncorrect {
		return fmt.Errorf("user_feedback must be %q or %q, got %q", JudgmentCorrect, JudgmentIncorrect, f.Judgment)
	}
	if f.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}
