package models

import (
	"fmt"
	"time"
)

// BehavioralEvent is one detected behavior episode for a collar.
// Created by the interpreter; never mutated afterwards.
type BehavioralEvent struct {
	EventID          string
	Behavior         string
	Confidence       float64 // closed interval [0,1]
	Timestamp        time.Time
	CollarID         string
	SupportingPoints int
}

// EventID derives a stable event identifier from the matched window.
// Deterministic so that re-running a timeline reproduces identical events.
func EventID(collarID, behavior string, windowStart time.Time) string {
	return fmt.Sprintf("%s-%s-%d", collarID, behavior, windowStart.UnixMilli())
}
