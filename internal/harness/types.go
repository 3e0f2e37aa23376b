package harness

// Outcomes recorded in the trace.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Op      string   `json:"op"`
	Task    string   `json:"task,omitempty"`
	Status  string   `json:"status,omitempty"`
	Code    string   `json:"code,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Error   string   `json:"error,omitempty"`
	Tasks   []string `json:"tasks,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists setup and flow steps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations and assertions. Empty if Pass.
	Errors []string `json:"errors,omitempty"`

	// Tasks maps aliases to the task ids they were bound to.
	Tasks map[string]string `json:"tasks,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Tasks:  map[string]string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event, numbering it.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
