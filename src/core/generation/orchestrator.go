package generation

import (
	"context"
	"fmt"

	"reelforge/src/log"
)

// Orchestrator drives the ordered execution of pipeline steps for one job.
// Every state transition is persisted before the next action is taken, so a
// crash between steps leaves the record consistent. A step failure is
// recorded into the job and never propagated: one bad job must not take the
// worker down with it.
type Orchestrator struct {
	store     Store
	executors []Executor
}

// NewOrchestrator wires the store and the ordered executor list. The
// executors must match the pipeline's fixed step order exactly.
func NewOrchestrator(store Store, executors []Executor) (*Orchestrator, error) {
	if len(executors) != len(StepOrder) {
		return nil, fmt.Errorf("expected %d executors, got %d", len(StepOrder), len(executors))
	}
	for i, ex := range executors {
		if ex.Name() != StepOrder[i] {
			return nil, fmt.Errorf("executor %d is %s, expected %s", i, ex.Name(), StepOrder[i])
		}
	}
	return &Orchestrator{store: store, executors: executors}, nil
}

// Run executes the pipeline for one job to completion or first failure.
// It returns an error only for persistence problems; a step failure is
// terminal for the job but not an error of the run itself.
func (o *Orchestrator) Run(ctx context.Context, jobID string, sub Submission) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	if job.Status != StatusProcessing {
		// Redelivered message for a job that already reached a terminal
		// state; nothing to do.
		log.Info("skipping job in terminal state", "job_id", jobID, "status", job.Status)
		return nil
	}

	result := make(map[string]string, len(job.ResultData))
	for k, v := range job.ResultData {
		result[k] = v
	}

	for i, ex := range o.executors {
		if job.Steps[i].Status == StepStatusCompleted {
			continue
		}

		if err := o.store.StartStep(ctx, jobID, i); err != nil {
			return fmt.Errorf("failed to start step %s of job %s: %w", ex.Name(), jobID, err)
		}

		output, execErr := o.execute(ctx, ex, ExecInput{
			JobID:      jobID,
			OwnerID:    job.OwnerID,
			Submission: sub,
			Result:     result,
		})
		if execErr == nil {
			output, execErr = namespaceOutput(ex.Name(), output)
		}
		if execErr == nil && ex.Name() == StepFinalization {
			if _, ok := output[FinalVideoKey]; !ok {
				execErr = &StepExecutionError{Step: StepFinalization, Message: "no final video reference produced"}
			}
		}
		if execErr != nil {
			log.Error(execErr, "pipeline step failed", "job_id", jobID, "step", ex.Name())
			if failErr := o.store.FailStep(ctx, jobID, i, stepMessage(execErr)); failErr != nil {
				return fmt.Errorf("failed to record failure of step %s of job %s: %w", ex.Name(), jobID, failErr)
			}
			return nil
		}

		if err := o.store.CompleteStep(ctx, jobID, i, output); err != nil {
			return fmt.Errorf("failed to complete step %s of job %s: %w", ex.Name(), jobID, err)
		}
		for k, v := range output {
			result[k] = v
		}
		log.Info("pipeline step completed", "job_id", jobID, "step", ex.Name())
	}

	if err := o.store.CompleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	log.Info("pipeline completed", "job_id", jobID)
	return nil
}

// execute invokes one executor, converting both returned errors and panics
// into step execution errors
func (o *Orchestrator) execute(ctx context.Context, ex Executor, in ExecInput) (output map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = &StepExecutionError{Step: ex.Name(), Message: fmt.Sprintf("executor panicked: %v", r)}
		}
	}()

	output, execErr := ex.Execute(ctx, in)
	if execErr != nil {
		return nil, &StepExecutionError{Step: ex.Name(), Message: execErr.Error()}
	}
	return output, nil
}

// namespaceOutput prefixes every output key with the step name so steps can
// never clobber each other's results, and rejects empty keys or values
// before they reach the store.
func namespaceOutput(step StepName, output map[string]string) (map[string]string, error) {
	namespaced := make(map[string]string, len(output))
	for k, v := range output {
		if k == "" {
			return nil, &StepExecutionError{Step: step, Message: "executor produced an empty output key"}
		}
		if v == "" {
			return nil, &StepExecutionError{Step: step, Message: fmt.Sprintf("executor produced an empty value for key %q", k)}
		}
		namespaced[fmt.Sprintf("%s.%s", step, k)] = v
	}
	return namespaced, nil
}

func stepMessage(err error) string {
	if stepErr, ok := err.(*StepExecutionError); ok {
		return stepErr.Message
	}
	return err.Error()
}
