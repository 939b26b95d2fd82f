package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelforge/src/core/generation"
)

// scriptedQuerier returns the next job in its script on each call and keeps
// returning the last one once the script runs out.
type scriptedQuerier struct {
	script []*generation.Job
	err    error
	calls  int
}

func (q *scriptedQuerier) GetJob(ctx context.Context, jobID, requesterID string) (*generation.Job, error) {
	if q.err != nil {
		return nil, q.err
	}
	i := q.calls
	if i >= len(q.script) {
		i = len(q.script) - 1
	}
	q.calls++
	return q.script[i], nil
}

func jobWithProgress(completed int) *generation.Job {
	job := generation.NewJob("job-1", "user-1")
	for i := 0; i < completed; i++ {
		job.Steps[i].Status = generation.StepStatusCompleted
	}
	return job
}

func TestPollReturnsCompletedJob(t *testing.T) {
	done := jobWithProgress(len(generation.StepOrder))
	done.Status = generation.StatusCompleted

	querier := &scriptedQuerier{script: []*generation.Job{
		jobWithProgress(1),
		jobWithProgress(2),
		done,
	}}

	poller := generation.NewPoller(querier, time.Millisecond, time.Second)

	var progress []int
	job, err := poller.Poll(context.Background(), "job-1", "user-1", func(j *generation.Job) {
		progress = append(progress, j.Progress())
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != generation.StatusCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}

	if len(progress) != 2 {
		t.Fatalf("expected 2 progress callbacks, got %d", len(progress))
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress went backwards: %v", progress)
		}
	}
}

func TestPollSurfacesJobFailure(t *testing.T) {
	failed := jobWithProgress(1)
	failed.Status = generation.StatusFailed
	failed.Steps[1].Status = generation.StepStatusFailed
	failed.Error = &generation.JobError{Step: generation.StepScenePlanning, Message: "model unavailable"}

	querier := &scriptedQuerier{script: []*generation.Job{failed}}
	poller := generation.NewPoller(querier, time.Millisecond, time.Second)

	job, err := poller.Poll(context.Background(), "job-1", "user-1", nil)
	if job == nil {
		t.Fatal("expected the final record alongside the failure")
	}

	var stepErr *generation.StepExecutionError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected *StepExecutionError, got %v", err)
	}
	if stepErr.Step != generation.StepScenePlanning || stepErr.Message != "model unavailable" {
		t.Errorf("failure not carried over from the record: %+v", stepErr)
	}
}

func TestPollTimesOut(t *testing.T) {
	querier := &scriptedQuerier{script: []*generation.Job{jobWithProgress(1)}}
	poller := generation.NewPoller(querier, 5*time.Millisecond, 20*time.Millisecond)

	job, err := poller.Poll(context.Background(), "job-1", "user-1", nil)
	if job != nil {
		t.Error("expected no record on timeout")
	}

	var timeoutErr *generation.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.JobID != "job-1" {
		t.Errorf("expected job-1 in the timeout, got %s", timeoutErr.JobID)
	}
}

func TestPollStopsOnContextCancel(t *testing.T) {
	querier := &scriptedQuerier{script: []*generation.Job{jobWithProgress(1)}}
	poller := generation.NewPoller(querier, 5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := poller.Poll(ctx, "job-1", "user-1", nil)
	if job != nil {
		t.Error("expected no record on cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPollPropagatesQueryErrors(t *testing.T) {
	querier := &scriptedQuerier{err: generation.ErrForbidden}
	poller := generation.NewPoller(querier, time.Millisecond, time.Second)

	_, err := poller.Poll(context.Background(), "job-1", "someone-else", nil)
	if !errors.Is(err, generation.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
