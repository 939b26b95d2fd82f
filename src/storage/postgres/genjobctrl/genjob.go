package genjobctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"reelforge/src/core/generation"
)

// JobRecord is the persisted form of a generation job
type JobRecord struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string          `gorm:"not null;index;column:owner_id" json:"owner_id"`
	Status       string          `gorm:"not null" json:"status"`
	ResultData   json.RawMessage `gorm:"type:jsonb" json:"result_data"`
	ErrorStep    *string         `json:"error_step,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (JobRecord) TableName() string {
	return "generation_jobs"
}

// StepRecord is one pipeline stage row, addressed by (job_id, position).
// Position is fixed at creation; rows are mutated in place, never re-ordered.
type StepRecord struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	JobID       string     `gorm:"not null;uniqueIndex:idx_generation_steps_job_position;column:job_id" json:"job_id"`
	Position    int        `gorm:"not null;uniqueIndex:idx_generation_steps_job_position" json:"position"`
	Name        string     `gorm:"not null" json:"name"`
	Status      string     `gorm:"not null" json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (StepRecord) TableName() string {
	return "generation_steps"
}

// GenJobService persists generation jobs in postgres. Step transitions are
// conditional on the row's current status so a stale writer can never move a
// step backwards or clobber a terminal state.
type GenJobService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewGenJobService(db *gorm.DB) (*GenJobService, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &GenJobService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *GenJobService) CreateJob(ctx context.Context, job *generation.Job) error {
	resultData, err := json.Marshal(job.ResultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result data: %v", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &JobRecord{
			ID:         job.ID,
			OwnerID:    job.OwnerID,
			Status:     string(job.Status),
			ResultData: resultData,
		}
		if result := tx.Create(record); result.Error != nil {
			return fmt.Errorf("failed to create job record: %v", result.Error)
		}

		for i, step := range job.Steps {
			stepRecord := &StepRecord{
				ID:       s.snowflake.Generate().Int64(),
				JobID:    job.ID,
				Position: i,
				Name:     string(step.Name),
				Status:   string(step.Status),
			}
			if result := tx.Create(stepRecord); result.Error != nil {
				return fmt.Errorf("failed to create step record %s: %v", step.Name, result.Error)
			}
		}

		return nil
	})
}

func (s *GenJobService) GetJob(ctx context.Context, id string) (*generation.Job, error) {
	var record JobRecord
	result := s.db.WithContext(ctx).First(&record, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %v", result.Error)
	}

	steps, err := s.getSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	return toDomain(&record, steps)
}

func (s *GenJobService) ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]generation.Job, error) {
	var records []JobRecord
	result := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", result.Error)
	}

	jobs := make([]generation.Job, 0, len(records))
	for i := range records {
		steps, err := s.getSteps(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		job, err := toDomain(&records[i], steps)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

func (s *GenJobService) StartStep(ctx context.Context, jobID string, position int) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&StepRecord{}).
			Where("job_id = ? AND position = ? AND status = ?", jobID, position, string(generation.StepStatusPending)).
			Updates(map[string]interface{}{
				"status":     string(generation.StepStatusProcessing),
				"started_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to start step: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("step %d of job %s is not pending", position, jobID)
		}

		return touchJob(tx, jobID)
	})
}

func (s *GenJobService) CompleteStep(ctx context.Context, jobID string, position int, output map[string]string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&StepRecord{}).
			Where("job_id = ? AND position = ? AND status = ?", jobID, position, string(generation.StepStatusProcessing)).
			Updates(map[string]interface{}{
				"status":       string(generation.StepStatusCompleted),
				"completed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to complete step: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("step %d of job %s is not processing", position, jobID)
		}

		return mergeResultData(tx, jobID, output)
	})
}

func (s *GenJobService) FailStep(ctx context.Context, jobID string, position int, message string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var step StepRecord
		if result := tx.First(&step, "job_id = ? AND position = ?", jobID, position); result.Error != nil {
			return fmt.Errorf("failed to load step: %v", result.Error)
		}

		result := tx.Model(&StepRecord{}).
			Where("job_id = ? AND position = ? AND status IN ?", jobID, position,
				[]string{string(generation.StepStatusPending), string(generation.StepStatusProcessing)}).
			Update("status", string(generation.StepStatusFailed))
		if result.Error != nil {
			return fmt.Errorf("failed to fail step: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("step %d of job %s is already terminal", position, jobID)
		}

		result = tx.Model(&JobRecord{}).
			Where("id = ? AND status = ?", jobID, string(generation.StatusProcessing)).
			Updates(map[string]interface{}{
				"status":        string(generation.StatusFailed),
				"error_step":    step.Name,
				"error_message": message,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to fail job: %v", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("job %s is already terminal", jobID)
		}

		return nil
	})
}

func (s *GenJobService) CompleteJob(ctx context.Context, jobID string) error {
	result := s.db.WithContext(ctx).Model(&JobRecord{}).
		Where("id = ? AND status = ?", jobID, string(generation.StatusProcessing)).
		Update("status", string(generation.StatusCompleted))
	if result.Error != nil {
		return fmt.Errorf("failed to complete job: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s is not processing", jobID)
	}
	return nil
}

// FailStuckSteps fails every job whose active step has been processing longer
// than maxProcessing. It exists because a worker killed mid-step would
// otherwise leave the record processing forever.
func (s *GenJobService) FailStuckSteps(ctx context.Context, maxProcessing time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxProcessing)

	var stuck []StepRecord
	result := s.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", string(generation.StepStatusProcessing), cutoff).
		Find(&stuck)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to find stuck steps: %v", result.Error)
	}

	failed := 0
	for _, step := range stuck {
		message := fmt.Sprintf("step %s exceeded the maximum processing time of %s", step.Name, maxProcessing)
		if err := s.FailStep(ctx, step.JobID, step.Position, message); err != nil {
			// The step may have legitimately completed between the scan and
			// the conditional update; skip it.
			continue
		}
		failed++
	}

	return failed, nil
}

func (s *GenJobService) getSteps(ctx context.Context, jobID string) ([]StepRecord, error) {
	var steps []StepRecord
	result := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("position ASC").
		Find(&steps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get steps: %v", result.Error)
	}
	return steps, nil
}

func touchJob(tx *gorm.DB, jobID string) error {
	result := tx.Model(&JobRecord{}).
		Where("id = ?", jobID).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch job: %v", result.Error)
	}
	return nil
}

// mergeResultData folds the step output into the job's result data. Existing
// keys are preserved unless the step explicitly rewrites them; nothing is
// ever removed.
func mergeResultData(tx *gorm.DB, jobID string, output map[string]string) error {
	if len(output) == 0 {
		return touchJob(tx, jobID)
	}

	var record JobRecord
	if result := tx.First(&record, "id = ?", jobID); result.Error != nil {
		return fmt.Errorf("failed to load job for merge: %v", result.Error)
	}

	merged := map[string]string{}
	if len(record.ResultData) > 0 {
		if err := json.Unmarshal(record.ResultData, &merged); err != nil {
			return fmt.Errorf("failed to unmarshal result data: %v", err)
		}
	}
	for k, v := range output {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal result data: %v", err)
	}

	result := tx.Model(&JobRecord{}).
		Where("id = ?", jobID).
		Update("result_data", json.RawMessage(data))
	if result.Error != nil {
		return fmt.Errorf("failed to update result data: %v", result.Error)
	}
	return nil
}

func toDomain(record *JobRecord, steps []StepRecord) (*generation.Job, error) {
	resultData := map[string]string{}
	if len(record.ResultData) > 0 {
		if err := json.Unmarshal(record.ResultData, &resultData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result data: %v", err)
		}
	}

	job := &generation.Job{
		ID:         record.ID,
		OwnerID:    record.OwnerID,
		Status:     generation.Status(record.Status),
		ResultData: resultData,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}

	if record.ErrorStep != nil || record.ErrorMessage != nil {
		jobErr := &generation.JobError{}
		if record.ErrorStep != nil {
			jobErr.Step = generation.StepName(*record.ErrorStep)
		}
		if record.ErrorMessage != nil {
			jobErr.Message = *record.ErrorMessage
		}
		job.Error = jobErr
	}

	job.Steps = make([]generation.Step, len(steps))
	for i, step := range steps {
		job.Steps[i] = generation.Step{
			Name:        generation.StepName(step.Name),
			Status:      generation.StepStatus(step.Status),
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
		}
	}

	return job, nil
}
