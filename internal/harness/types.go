package harness

import "github.com/roach88/listsync/internal/record"

// TraceEvent records one executed step.
//
// Op steps fill Seq, Phase, Code, Record, Notice and List; environment steps
// (fail_next, delete_remote, login, logout, advance) only carry their
// arguments.
type TraceEvent struct {
	Step   int           `json:"step"`
	Action string        `json:"action"`
	Args   record.Fields `json:"args,omitempty"`

	Seq    int64          `json:"seq,omitempty"`
	Phase  string         `json:"phase,omitempty"`
	Code   string         `json:"code,omitempty"`
	Record *record.Record `json:"record,omitempty"`
	// Notice is the notification showing after the step, "" for none.
	Notice string `json:"notice,omitempty"`
	// List is the unique-field text of each local record, in list order.
	List []string `json:"list,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed check. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Records is the final local list.
	Records []record.Record `json:"records"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
