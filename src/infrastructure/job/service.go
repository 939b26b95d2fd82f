package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"reelforge/src/core/generation"
)

// Service creates job records and hands them off to the pipeline through the
// message queue. On the worker side it dispatches consumed messages into the
// orchestrator.
type Service struct {
	publisher    message.Publisher
	store        generation.Store
	orchestrator *generation.Orchestrator
	logger       watermill.LoggerAdapter
}

// NewService wires the handoff service. The API process passes a nil
// orchestrator (it only submits); the worker passes a nil publisher (it only
// consumes).
func NewService(
	publisher message.Publisher,
	store generation.Store,
	orchestrator *generation.Orchestrator,
	logger watermill.LoggerAdapter,
) *Service {
	return &Service{
		publisher:    publisher,
		store:        store,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Submit validates nothing itself: the caller has already validated the
// submission. It creates the job record with every step pending, publishes
// the handoff message and returns immediately.
func (s *Service) Submit(ctx context.Context, ownerID string, sub generation.Submission) (*generation.Job, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("service has no publisher configured")
	}

	job := generation.NewJob(uuid.New().String(), ownerID)
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	genMsg := GenerationMessage{
		JobID:      job.ID,
		OwnerID:    ownerID,
		Submission: sub,
	}
	msgPayload, err := json.Marshal(genMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(TopicGenerations, msg); err != nil {
		return nil, fmt.Errorf("failed to publish generation message: %w", err)
	}

	s.logger.Info("Generation job submitted", watermill.LogFields{
		"job_id": job.ID,
	})
	return job, nil
}

// ProcessMessage runs the pipeline for one consumed message. A job-level
// failure is recorded in the job record and acked here; only infrastructure
// errors propagate to the router.
func (s *Service) ProcessMessage(msg *message.Message) error {
	if s.orchestrator == nil {
		return fmt.Errorf("service has no orchestrator configured")
	}

	var genMsg GenerationMessage
	if err := json.Unmarshal(msg.Payload, &genMsg); err != nil {
		return fmt.Errorf("failed to unmarshal generation message: %w", err)
	}

	s.logger.Info("Processing generation job", watermill.LogFields{
		"job_id": genMsg.JobID,
	})

	return s.orchestrator.Run(context.Background(), genMsg.JobID, genMsg.Submission)
}
