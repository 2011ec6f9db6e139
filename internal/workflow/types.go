package workflow

import "time"

// StateMachine is the built, typed form of a StateMachineDef (spec.md
// 3): every declared state resolved to its concrete stateNode
// implementation, keyed by name. Cyclic graphs are represented purely
// by name lookup, not pointers, matching spec.md 9's design note and
// the teacher's own currentID/stateMap traversal style
// (internal/workflows/runtime/trycatch_executor.go).
type StateMachine struct {
	StartAt       string
	States        map[string]stateNode
	Comment       string
	TimeoutSeconds int
}

// Status is an Execution's lifecycle status (spec.md 3).
type Status string

const (
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// HistoryEntry is one append-only record of a completed state step.
type HistoryEntry struct {
	StateName string    `json:"state_name"`
	Input     Value     `json:"input"`
	Output    Value     `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// Execution is the mutable record of one run of a StateMachine
// (spec.md 3). Everything but Context is written only by the driver;
// Context (the capability bag) is written by the driver and by the
// currently-executing state, never by anything else (spec.md 5).
type Execution struct {
	ID           string
	Name         string
	StateMachine *StateMachine
	Input        Value
	Output       Value
	Status       Status
	CurrentState string
	Error        string
	Cause        string
	History      []HistoryEntry
	StartTime    time.Time
	EndTime      time.Time
	Context      map[string]any

	logger Logger
}

// Snapshot is the serializable view of an Execution spec.md 6 defines
// for hosts to inspect or persist externally (persistence itself stays
// out of scope).
type Snapshot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	CurrentState  string    `json:"current_state"`
	Input         Value     `json:"input"`
	Output        Value     `json:"output"`
	Error         string    `json:"error,omitempty"`
	Cause         string    `json:"cause,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	History       []HistoryEntry `json:"history"`
}

// Snapshot renders the current Execution state per spec.md 6.
func (e *Execution) Snapshot() Snapshot {
	elapsed := 0.0
	if !e.StartTime.IsZero() {
		end := e.EndTime
		if end.IsZero() {
			end = time.Now()
		}
		elapsed = end.Sub(e.StartTime).Seconds()
	}
	return Snapshot{
		ID:            e.ID,
		Name:          e.Name,
		Status:        string(e.Status),
		CurrentState:  e.CurrentState,
		Input:         e.Input,
		Output:        e.Output,
		Error:         e.Error,
		Cause:         e.Cause,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		ExecutionTime: elapsed,
		History:       e.History,
	}
}
