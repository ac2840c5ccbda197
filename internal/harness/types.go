package harness

import "github.com/roach88/sspace/space"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if sampling behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Samples holds the drawn samples in order.
	// Empty when sampling failed.
	Samples []space.Sample `json:"samples"`

	// ErrorCode is the code of the sampling error, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Samples: []space.Sample{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
