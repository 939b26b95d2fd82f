package job

import (
	"reelforge/src/core/generation"
)

// TopicGenerations is the queue the API publishes submissions to and the
// worker consumes from
const TopicGenerations = "generations"

// GenerationMessage is the wire form of one submitted job. The submission
// payload travels with the message; the job record itself lives in the store.
type GenerationMessage struct {
	JobID      string                `json:"job_id"`
	OwnerID    string                `json:"owner_id"`
	Submission generation.Submission `json:"submission"`
}
