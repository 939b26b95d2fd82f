package generation

import (
	"time"
)

// Status defines the lifecycle state of a generation job
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StepStatus defines the lifecycle state of a single pipeline step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// StepName identifies one stage of the generation pipeline
type StepName string

const (
	StepTranscription   StepName = "transcription"
	StepScenePlanning   StepName = "scene_planning"
	StepVideoGeneration StepName = "video_generation"
	StepFinalization    StepName = "finalization"
)

// StepOrder is the fixed execution order of the pipeline. Every job carries
// exactly these steps, in this order, for its whole lifetime.
var StepOrder = []StepName{
	StepTranscription,
	StepScenePlanning,
	StepVideoGeneration,
	StepFinalization,
}

// FinalVideoKey is the result key the finalization step must produce for a
// job to be considered complete.
const FinalVideoKey = "finalization.video_url"

// Step is one stage record within a job
type Step struct {
	Name        StepName   `json:"name"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobError describes why a job failed and at which step
type JobError struct {
	Step    StepName `json:"step"`
	Message string   `json:"message"`
}

// Job is one end-to-end video generation request
type Job struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"owner_id"`
	Status     Status            `json:"status"`
	Steps      []Step            `json:"steps"`
	ResultData map[string]string `json:"result_data"`
	Error      *JobError         `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewJob creates a job in its initial state: processing, with every pipeline
// step pending
func NewJob(id, ownerID string) *Job {
	steps := make([]Step, len(StepOrder))
	for i, name := range StepOrder {
		steps[i] = Step{Name: name, Status: StepStatusPending}
	}
	return &Job{
		ID:         id,
		OwnerID:    ownerID,
		Status:     StatusProcessing,
		Steps:      steps,
		ResultData: map[string]string{},
	}
}

// Terminal reports whether the job has reached a final state
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Progress returns the completion percentage derived purely from step
// records: completed steps over total steps
func (j *Job) Progress() int {
	if len(j.Steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range j.Steps {
		if s.Status == StepStatusCompleted {
			completed++
		}
	}
	return completed * 100 / len(j.Steps)
}

// Submission is the original request payload a job was created from. It is
// carried alongside the job through the queue, not persisted in the record.
type Submission struct {
	InputMediaID   string `json:"input_media_id"`
	Prompt         string `json:"prompt"`
	TargetDuration int    `json:"target_duration"`
	Style          string `json:"style"`
}
