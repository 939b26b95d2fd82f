package generation

import "context"

// ExecInput is what an executor gets to work with: the job identity, the
// original submission and the result data accumulated by every prior step
// (keys namespaced by step name).
type ExecInput struct {
	JobID      string
	OwnerID    string
	Submission Submission
	Result     map[string]string
}

// Executor performs exactly one named pipeline step by calling an external
// service. It returns new key-value output to merge into the job's result
// data, or an error describing why the step cannot complete. Executors are
// never re-invoked for the same step of the same job.
type Executor interface {
	Name() StepName
	Execute(ctx context.Context, in ExecInput) (map[string]string, error)
}
