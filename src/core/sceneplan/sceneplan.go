package sceneplan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"reelforge/src/log"
)

const DefaultMaxTokenPerPrompt = 3000

// LLMProvider abstracts the language model used for scene planning
type LLMProvider interface {
	TextSplit(ctx context.Context, text string, chunkSize, chunkOverLap int) ([]string, error)
	Reasoning(ctx context.Context, system string, prompt string) (string, error)
	TokenLength(ctx context.Context, text string) (int, error)
}

// Scene is one planned shot of the generated video
type Scene struct {
	Index           int    `json:"index"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	Narration       string `json:"narration"`
}

// TemplateData holds all the data needed for template execution
type TemplateData struct {
	Prompt         string
	Style          string
	TargetDuration int
	Transcript     string
}

type Flow struct {
	llmProvider       LLMProvider
	maxTokenPerPrompt int
}

func NewFlow(llmProvider LLMProvider, opts ...Option) *Flow {
	f := &Flow{
		llmProvider:       llmProvider,
		maxTokenPerPrompt: DefaultMaxTokenPerPrompt,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

type Option func(f *Flow)

func WithMaxTokenPerPrompt(maxTokenPerPrompt int) Option {
	return func(f *Flow) {
		f.maxTokenPerPrompt = maxTokenPerPrompt
	}
}

// Plan turns the creative brief and the transcript into an ordered scene
// list. Transcripts that exceed the prompt budget are condensed chunk by
// chunk before planning.
func (f *Flow) Plan(ctx context.Context, data TemplateData) ([]Scene, error) {
	tokenLength, err := f.llmProvider.TokenLength(ctx, data.Transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to get token length: %w", err)
	}

	if tokenLength > f.maxTokenPerPrompt {
		condensed, err := f.condenseTranscript(ctx, data.Transcript)
		if err != nil {
			return nil, err
		}
		data.Transcript = condensed
	}

	system, prompt, err := f.executeTemplates(ScenePlanSystemMessageTmpl, ScenePlanPromptTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare scene plan templates: %w", err)
	}

	log.Debug("scene planning", "system", system, "prompt_length", len(prompt))
	raw, err := f.llmProvider.Reasoning(ctx, system, prompt)
	if err != nil {
		log.Error(err, "failed to get scene plan")
		return nil, fmt.Errorf("failed to get scene plan: %w", err)
	}

	scenes, err := ParseScenes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scene plan: %w", err)
	}
	return scenes, nil
}

// condenseTranscript summarizes an oversized transcript chunk by chunk so
// the plan prompt stays within the token budget
func (f *Flow) condenseTranscript(ctx context.Context, transcript string) (string, error) {
	chunks, err := f.llmProvider.TextSplit(ctx, transcript, f.maxTokenPerPrompt, f.maxTokenPerPrompt/10)
	if err != nil {
		return "", fmt.Errorf("failed to split transcript: %w", err)
	}

	var summaries []string
	for i, chunk := range chunks {
		system, prompt, err := f.executeTemplates(
			TranscriptSummarySystemMessageTmpl,
			TranscriptSummaryPromptTmpl,
			TemplateData{Transcript: chunk},
		)
		if err != nil {
			return "", fmt.Errorf("failed to prepare summary templates for chunk %d: %w", i, err)
		}

		summary, err := f.llmProvider.Reasoning(ctx, system, prompt)
		if err != nil {
			log.Error(err, "failed to condense transcript chunk", "chunk_index", i)
			return "", fmt.Errorf("failed to condense transcript chunk %d: %w", i, err)
		}
		summaries = append(summaries, strings.TrimSpace(summary))
	}

	return strings.Join(summaries, "\n"), nil
}

func (f *Flow) executeTemplates(systemTmpl, promptTmpl string, data TemplateData) (string, string, error) {
	var systemBuf, promptBuf bytes.Buffer

	sysT, err := template.New("system").Parse(systemTmpl)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse system template: %w", err)
	}
	if err := sysT.Execute(&systemBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute system template: %w", err)
	}

	prmptT, err := template.New("prompt").Parse(promptTmpl)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse prompt template: %w", err)
	}
	if err := prmptT.Execute(&promptBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return systemBuf.String(), promptBuf.String(), nil
}

func (f *Flow) ExecuteTemplatesForTest(systemTmpl, promptTmpl string, data TemplateData) (string, string, error) {
	return f.executeTemplates(systemTmpl, promptTmpl, data)
}

// ParseScenes decodes and validates a model response. Models occasionally
// wrap the JSON in a markdown fence, so that is stripped first.
func ParseScenes(raw string) ([]Scene, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var scenes []Scene
	if err := json.Unmarshal([]byte(cleaned), &scenes); err != nil {
		return nil, fmt.Errorf("response is not a scene array: %w", err)
	}

	if len(scenes) == 0 {
		return nil, fmt.Errorf("scene plan is empty")
	}
	for i, s := range scenes {
		if strings.TrimSpace(s.Description) == "" {
			return nil, fmt.Errorf("scene %d has no description", i+1)
		}
		if s.DurationSeconds <= 0 {
			return nil, fmt.Errorf("scene %d has a non-positive duration", i+1)
		}
	}

	return scenes, nil
}
