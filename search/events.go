package search

import "time"

// Stage names the step of a query an Event reports.
type Stage string

const (
	StageClassified  Stage = "classified"
	StagePlanned     Stage = "planned"
	StageAlgorithm   Stage = "algorithm"
	StageEnhancement Stage = "enhancement"
	StageAggregated  Stage = "aggregated"
)

// Event is one entry of the trace a response carries. Events are ordered as the
// steps ran; Elapsed is measured from the start of the query.
type Event struct {
	Stage Stage
	// Name is the task type, algorithm or enhancement the event is about.
	Name    string
	Count   int
	Failed  int
	Elapsed time.Duration
	Err     string
}

type trace struct {
	start  time.Time
	events []Event
}

func (t *trace) add(stage Stage, name string, count, failed int, err error) {
	e := Event{Stage: stage, Name: name, Count: count, Failed: failed, Elapsed: time.Since(t.start)}
	if err != nil {
		e.Err = err.Error()
	}
	t.events = append(t.events, e)
}
