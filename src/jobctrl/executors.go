package jobctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"reelforge/src/core/generation"
	"reelforge/src/core/sceneplan"
	"reelforge/src/infrastructure/integrations/renderer"
	"reelforge/src/infrastructure/integrations/speech"
	"reelforge/src/log"
	"reelforge/src/storage/minioctrl"
	"reelforge/src/storage/postgres/mediactrl"
)

// TranscriptionExecutor feeds the job's input media to the speech-to-text
// service
type TranscriptionExecutor struct {
	mediaService *mediactrl.MediaService
	minioService *minioctrl.MinioService
	speechClient *speech.Client
}

func NewTranscriptionExecutor(
	mediaService *mediactrl.MediaService,
	minioService *minioctrl.MinioService,
	speechClient *speech.Client,
) *TranscriptionExecutor {
	return &TranscriptionExecutor{
		mediaService: mediaService,
		minioService: minioService,
		speechClient: speechClient,
	}
}

func (e *TranscriptionExecutor) Name() generation.StepName {
	return generation.StepTranscription
}

func (e *TranscriptionExecutor) Execute(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
	mediaID, err := strconv.ParseInt(in.Submission.InputMediaID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid media ID: %w", err)
	}

	media, err := e.mediaService.GetByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	if media == nil {
		return nil, fmt.Errorf("input media not found: %s", in.Submission.InputMediaID)
	}
	if media.OwnerID != in.OwnerID {
		return nil, fmt.Errorf("input media %s does not belong to the job owner", in.Submission.InputMediaID)
	}

	bucket, objectName := e.minioService.GetBucketAndObjectFromURL(media.MinioURL)
	content, err := e.minioService.GetObject(ctx, bucket, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to get media content: %w", err)
	}

	transcription, err := e.speechClient.Transcribe(ctx, media.Filename, content)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe media: %w", err)
	}

	output := map[string]string{
		"text": transcription.Text,
	}
	if transcription.Language != "" {
		output["language"] = transcription.Language
	}
	if transcription.Duration > 0 {
		output["media_duration"] = strconv.FormatFloat(transcription.Duration, 'f', 2, 64)
	}
	return output, nil
}

// ScenePlanExecutor asks the language model for an ordered scene list built
// from the transcript and the creative brief
type ScenePlanExecutor struct {
	flow *sceneplan.Flow
}

func NewScenePlanExecutor(flow *sceneplan.Flow) *ScenePlanExecutor {
	return &ScenePlanExecutor{flow: flow}
}

func (e *ScenePlanExecutor) Name() generation.StepName {
	return generation.StepScenePlanning
}

func (e *ScenePlanExecutor) Execute(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
	transcript, ok := in.Result["transcription.text"]
	if !ok {
		return nil, fmt.Errorf("no transcript available for scene planning")
	}

	scenes, err := e.flow.Plan(ctx, sceneplan.TemplateData{
		Prompt:         in.Submission.Prompt,
		Style:          in.Submission.Style,
		TargetDuration: in.Submission.TargetDuration,
		Transcript:     transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan scenes: %w", err)
	}

	scenesJSON, err := json.Marshal(scenes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scene plan: %w", err)
	}

	return map[string]string{
		"scenes":      string(scenesJSON),
		"scene_count": strconv.Itoa(len(scenes)),
	}, nil
}

// VideoGenerationExecutor sends the scene plan to the rendering service and
// stores the produced clip
type VideoGenerationExecutor struct {
	rendererClient *renderer.Client
	minioService   *minioctrl.MinioService
	workBucket     string
}

func NewVideoGenerationExecutor(
	rendererClient *renderer.Client,
	minioService *minioctrl.MinioService,
	workBucket string,
) *VideoGenerationExecutor {
	return &VideoGenerationExecutor{
		rendererClient: rendererClient,
		minioService:   minioService,
		workBucket:     workBucket,
	}
}

func (e *VideoGenerationExecutor) Name() generation.StepName {
	return generation.StepVideoGeneration
}

func (e *VideoGenerationExecutor) Execute(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
	scenesJSON, ok := in.Result["scene_planning.scenes"]
	if !ok {
		return nil, fmt.Errorf("no scene plan available for rendering")
	}

	var scenes []renderer.Scene
	if err := json.Unmarshal([]byte(scenesJSON), &scenes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scene plan: %w", err)
	}

	video, err := e.rendererClient.Render(ctx, renderer.RenderRequest{
		Scenes:         scenes,
		Style:          in.Submission.Style,
		TargetDuration: in.Submission.TargetDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render video: %w", err)
	}

	objectName := fmt.Sprintf("%s.mp4", in.JobID)
	if err := e.minioService.PutObject(ctx, e.workBucket, objectName, video, "video/mp4"); err != nil {
		return nil, fmt.Errorf("failed to store rendered clip: %w", err)
	}

	return map[string]string{
		"clip_url":   fmt.Sprintf("%s/%s", e.workBucket, objectName),
		"size_bytes": strconv.Itoa(len(video)),
	}, nil
}

// FinalizationExecutor publishes the rendered clip to the output bucket and
// produces the final video URL
type FinalizationExecutor struct {
	minioService  *minioctrl.MinioService
	outputBucket  string
	publicBaseURL string
}

func NewFinalizationExecutor(
	minioService *minioctrl.MinioService,
	outputBucket string,
	publicBaseURL string,
) *FinalizationExecutor {
	return &FinalizationExecutor{
		minioService:  minioService,
		outputBucket:  outputBucket,
		publicBaseURL: publicBaseURL,
	}
}

func (e *FinalizationExecutor) Name() generation.StepName {
	return generation.StepFinalization
}

func (e *FinalizationExecutor) Execute(ctx context.Context, in generation.ExecInput) (map[string]string, error) {
	clipURL, ok := in.Result["video_generation.clip_url"]
	if !ok {
		return nil, fmt.Errorf("no rendered clip available for finalization")
	}

	srcBucket, srcObject := e.minioService.GetBucketAndObjectFromURL(clipURL)
	if srcBucket == "" {
		return nil, fmt.Errorf("malformed clip reference: %s", clipURL)
	}

	exists, err := e.minioService.ObjectExists(ctx, srcBucket, srcObject)
	if err != nil {
		return nil, fmt.Errorf("failed to check rendered clip: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("rendered clip is missing: %s", clipURL)
	}

	objectName := fmt.Sprintf("%s.mp4", in.JobID)
	if err := e.minioService.CopyObject(ctx, srcBucket, srcObject, e.outputBucket, objectName); err != nil {
		return nil, fmt.Errorf("failed to publish final video: %w", err)
	}

	// The work clip is redundant once the copy has landed. A failed cleanup
	// must not fail the already published video.
	if err := e.minioService.DeleteObject(ctx, srcBucket, srcObject); err != nil {
		log.Error(err, "failed to remove work clip", "job_id", in.JobID)
	}

	return map[string]string{
		"video_url":    fmt.Sprintf("%s/%s/%s", e.publicBaseURL, e.outputBucket, objectName),
		"video_object": fmt.Sprintf("%s/%s", e.outputBucket, objectName),
	}, nil
}

// NewExecutors assembles the pipeline's executors in their fixed order
func NewExecutors(
	mediaService *mediactrl.MediaService,
	minioService *minioctrl.MinioService,
	speechClient *speech.Client,
	flow *sceneplan.Flow,
	rendererClient *renderer.Client,
	workBucket, outputBucket, publicBaseURL string,
) []generation.Executor {
	return []generation.Executor{
		NewTranscriptionExecutor(mediaService, minioService, speechClient),
		NewScenePlanExecutor(flow),
		NewVideoGenerationExecutor(rendererClient, minioService, workBucket),
		NewFinalizationExecutor(minioService, outputBucket, publicBaseURL),
	}
}
