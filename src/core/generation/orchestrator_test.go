package generation_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"reelforge/src/core/generation"
)

// memStore is an in-memory Store that enforces the same conditional
// transitions as the persistent implementation and keeps an ordered log of
// every write.
type memStore struct {
	mu     sync.Mutex
	jobs   map[string]*generation.Job
	writes []string
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*generation.Job{}}
}

func (s *memStore) CreateJob(ctx context.Context, job *generation.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	s.writes = append(s.writes, "create")
	return nil
}

func (s *memStore) GetJob(ctx context.Context, id string) (*generation.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

func (s *memStore) ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]generation.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var jobs []generation.Job
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, *copyJob(job))
		}
	}
	return jobs, nil
}

func (s *memStore) StartStep(ctx context.Context, jobID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	step := &job.Steps[position]
	if step.Status != generation.StepStatusPending {
		return fmt.Errorf("step %d is not pending", position)
	}
	now := time.Now()
	step.Status = generation.StepStatusProcessing
	step.StartedAt = &now
	s.writes = append(s.writes, fmt.Sprintf("start:%d", position))
	return nil
}

func (s *memStore) CompleteStep(ctx context.Context, jobID string, position int, output map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	step := &job.Steps[position]
	if step.Status != generation.StepStatusProcessing {
		return fmt.Errorf("step %d is not processing", position)
	}
	now := time.Now()
	step.Status = generation.StepStatusCompleted
	step.CompletedAt = &now
	for k, v := range output {
		job.ResultData[k] = v
	}
	s.writes = append(s.writes, fmt.Sprintf("complete:%d", position))
	return nil
}

func (s *memStore) FailStep(ctx context.Context, jobID string, position int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	step := &job.Steps[position]
	if step.Status != generation.StepStatusPending && step.Status != generation.StepStatusProcessing {
		return fmt.Errorf("step %d is already terminal", position)
	}
	step.Status = generation.StepStatusFailed
	job.Status = generation.StatusFailed
	job.Error = &generation.JobError{Step: step.Name, Message: message}
	s.writes = append(s.writes, fmt.Sprintf("fail:%d", position))
	return nil
}

func (s *memStore) CompleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status != generation.StatusProcessing {
		return fmt.Errorf("job %s is not processing", jobID)
	}
	job.Status = generation.StatusCompleted
	s.writes = append(s.writes, "complete-job")
	return nil
}

func (s *memStore) writeLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.writes...)
}

func copyJob(job *generation.Job) *generation.Job {
	clone := *job
	clone.Steps = append([]generation.Step{}, job.Steps...)
	clone.ResultData = map[string]string{}
	for k, v := range job.ResultData {
		clone.ResultData[k] = v
	}
	if job.Error != nil {
		errCopy := *job.Error
		clone.Error = &errCopy
	}
	return &clone
}

type fakeExecutor struct {
	name generation.StepName
	fn   func(ctx context.Context, in generation.ExecInput) (map[string]string, error)
}

func (e *fakeExecutor) Name() generation.StepName { return e.name }

func (e *fakeExecutor) Execute(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
	return e.fn(ctx, in)
}

func happyExecutors() []generation.Executor {
	return []generation.Executor{
		&fakeExecutor{name: generation.StepTranscription, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
			return map[string]string{"text": "hello world"}, nil
		}},
		&fakeExecutor{name: generation.StepScenePlanning, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
			return map[string]string{"scenes": "[]"}, nil
		}},
		&fakeExecutor{name: generation.StepVideoGeneration, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
			return map[string]string{"clip_url": "work/clip.mp4"}, nil
		}},
		&fakeExecutor{name: generation.StepFinalization, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
			return map[string]string{"video_url": "http://cdn/video.mp4"}, nil
		}},
	}
}

func seedJob(t *testing.T, store *memStore, id, owner string) {
	t.Helper()
	if err := store.CreateJob(context.Background(), generation.NewJob(id, owner)); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
}

func TestNewOrchestratorValidatesExecutors(t *testing.T) {
	store := newMemStore()

	if _, err := generation.NewOrchestrator(store, happyExecutors()[:2]); err == nil {
		t.Error("expected an error for a short executor list")
	}

	reordered := happyExecutors()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if _, err := generation.NewOrchestrator(store, reordered); err == nil {
		t.Error("expected an error for out-of-order executors")
	}

	if _, err := generation.NewOrchestrator(store, happyExecutors()); err != nil {
		t.Errorf("unexpected error for a valid executor list: %v", err)
	}
}

func TestRunCompletesAllSteps(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	orch, err := generation.NewOrchestrator(store, happyExecutors())
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != generation.StatusCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}
	if got := job.Progress(); got != 100 {
		t.Errorf("expected progress 100, got %d", got)
	}
	for i, step := range job.Steps {
		if step.Status != generation.StepStatusCompleted {
			t.Errorf("step %d: expected completed, got %s", i, step.Status)
		}
		if step.StartedAt == nil || step.CompletedAt == nil {
			t.Errorf("step %d: missing timestamps", i)
		} else if step.CompletedAt.Before(*step.StartedAt) {
			t.Errorf("step %d: completed before it started", i)
		}
	}

	want := map[string]string{
		"transcription.text":         "hello world",
		"scene_planning.scenes":      "[]",
		"video_generation.clip_url":  "work/clip.mp4",
		generation.FinalVideoKey:     "http://cdn/video.mp4",
	}
	for k, v := range want {
		if job.ResultData[k] != v {
			t.Errorf("result key %s: expected %q, got %q", k, v, job.ResultData[k])
		}
	}
}

func TestRunPersistsEachTransitionInOrder(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	orch, err := generation.NewOrchestrator(store, happyExecutors())
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"create",
		"start:0", "complete:0",
		"start:1", "complete:1",
		"start:2", "complete:2",
		"start:3", "complete:3",
		"complete-job",
	}
	got := store.writeLog()
	if len(got) != len(want) {
		t.Fatalf("expected %d writes, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("write %d: expected %s, got %s (log: %v)", i, want[i], got[i], got)
		}
	}
}

func TestRunStepsSeePriorResults(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	executors := happyExecutors()
	var sawTranscript string
	executors[1] = &fakeExecutor{name: generation.StepScenePlanning, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
		sawTranscript = in.Result["transcription.text"]
		return map[string]string{"scenes": "[]"}, nil
	}}

	orch, err := generation.NewOrchestrator(store, executors)
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatal(err)
	}

	if sawTranscript != "hello world" {
		t.Errorf("scene planning did not see the transcription output, got %q", sawTranscript)
	}
}

func TestRunFailureLeavesLaterStepsPending(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	executors := happyExecutors()
	executors[1] = &fakeExecutor{name: generation.StepScenePlanning, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
		return nil, errors.New("model unavailable")
	}}

	orch, err := generation.NewOrchestrator(store, executors)
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatalf("a step failure must not become a run error, got: %v", err)
	}

	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != generation.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if job.Error == nil || job.Error.Step != generation.StepScenePlanning {
		t.Fatalf("expected failure recorded at scene_planning, got %+v", job.Error)
	}
	if !strings.Contains(job.Error.Message, "model unavailable") {
		t.Errorf("expected the cause in the error message, got %q", job.Error.Message)
	}

	wantStatuses := []generation.StepStatus{
		generation.StepStatusCompleted,
		generation.StepStatusFailed,
		generation.StepStatusPending,
		generation.StepStatusPending,
	}
	for i, want := range wantStatuses {
		if job.Steps[i].Status != want {
			t.Errorf("step %d: expected %s, got %s", i, want, job.Steps[i].Status)
		}
	}

	if _, ok := job.ResultData["transcription.text"]; !ok {
		t.Error("completed step output must survive a later failure")
	}
}

func TestRunRecoversExecutorPanic(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	executors := happyExecutors()
	executors[2] = &fakeExecutor{name: generation.StepVideoGeneration, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
		panic("renderer blew up")
	}}

	orch, err := generation.NewOrchestrator(store, executors)
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatalf("a panicking executor must not become a run error, got: %v", err)
	}

	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != generation.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if job.Error == nil || !strings.Contains(job.Error.Message, "renderer blew up") {
		t.Errorf("expected the panic value in the error message, got %+v", job.Error)
	}
	if job.Steps[3].Status != generation.StepStatusPending {
		t.Errorf("finalization must stay pending after an earlier panic, got %s", job.Steps[3].Status)
	}
}

func TestRunRejectsEmptyOutputKeysAndValues(t *testing.T) {
	cases := []struct {
		name   string
		output map[string]string
	}{
		{"empty key", map[string]string{"": "value"}},
		{"empty value", map[string]string{"text": ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			seedJob(t, store, "job-1", "user-1")

			executors := happyExecutors()
			executors[0] = &fakeExecutor{name: generation.StepTranscription, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
				return tc.output, nil
			}}

			orch, err := generation.NewOrchestrator(store, executors)
			if err != nil {
				t.Fatal(err)
			}
			if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
				t.Fatal(err)
			}

			job, _ := store.GetJob(context.Background(), "job-1")
			if job.Status != generation.StatusFailed {
				t.Fatalf("expected failed job, got %s", job.Status)
			}
			if job.Error == nil || job.Error.Step != generation.StepTranscription {
				t.Fatalf("expected failure at transcription, got %+v", job.Error)
			}
		})
	}
}

func TestRunRequiresFinalVideoReference(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	executors := happyExecutors()
	executors[3] = &fakeExecutor{name: generation.StepFinalization, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
		return map[string]string{"note": "done"}, nil
	}}

	orch, err := generation.NewOrchestrator(store, executors)
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatal(err)
	}

	job, _ := store.GetJob(context.Background(), "job-1")
	if job.Status != generation.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if job.Error == nil || job.Error.Step != generation.StepFinalization {
		t.Fatalf("expected failure at finalization, got %+v", job.Error)
	}
}

func TestRunSkipsTerminalJob(t *testing.T) {
	store := newMemStore()
	seedJob(t, store, "job-1", "user-1")

	invoked := false
	executors := happyExecutors()
	executors[0] = &fakeExecutor{name: generation.StepTranscription, fn: func(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
		invoked = true
		return map[string]string{"text": "hello"}, nil
	}}

	orch, err := generation.NewOrchestrator(store, executors)
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatal(err)
	}

	// A redelivered message for the now-completed job must be a no-op.
	invoked = false
	if err := orch.Run(context.Background(), "job-1", generation.Submission{}); err != nil {
		t.Fatal(err)
	}
	if invoked {
		t.Error("executors must not run for a job in a terminal state")
	}
}

func TestRunErrorsWhenJobMissing(t *testing.T) {
	store := newMemStore()

	orch, err := generation.NewOrchestrator(store, happyExecutors())
	if err != nil {
		t.Fatal(err)
	}

	err = orch.Run(context.Background(), "nope", generation.Submission{})
	if !errors.Is(err, generation.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
