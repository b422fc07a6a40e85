// Package progress defines the events a conversion emits as page units finish
// and the tracker that serializes their delivery.
package progress

import (
	"math"
	"sync"
)

// Stage names the phase an event belongs to.
type Stage string

const (
	StageSplitting  Stage = "splitting"
	StageExtracting Stage = "extracting"
)

// Event is an immutable snapshot reported once per completed unit.
type Event struct {
	DocumentPath string
	Stage        Stage
	Completed    int
	Total        int
	Percentage   float64
	Remaining    int
}

// Sink consumes progress events. Calls are serialized by the Tracker; a sink
// must not block for long because it runs inside the tracker's critical section.
type Sink func(Event)

// Tracker counts completions for one stage of one document.
type Tracker struct {
	mu        sync.Mutex
	document  string
	stage     Stage
	total     int
	completed int
	sink      Sink
}

// NewTracker builds a tracker. A nil sink only counts.
func NewTracker(documentPath string, stage Stage, total int, sink Sink) *Tracker {
	return &Tracker{document: documentPath, stage: stage, total: total, sink: sink}
}

// Complete runs record, increments the completed count and emits the event,
// all under one lock. record may be nil.
func (t *Tracker) Complete(record func()) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record != nil {
		record()
	}
	t.completed++
	event := Event{
		DocumentPath: t.document,
		Stage:        t.stage,
		Completed:    t.completed,
		Total:        t.total,
		Percentage:   Percentage(t.completed, t.total),
		Remaining:    max(t.total-t.completed, 0),
	}
	if t.sink != nil {
		t.sink(event)
	}
	return event
}

// Completed reports how many units have finished so far.
func (t *Tracker) Completed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Percentage returns completed/total as a percentage rounded to two decimals.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}
