package sceneplan

const ScenePlanSystemMessageTmpl = `You are an experienced video director planning a short {{.Style}} video.
You break a creative brief and its source material into a concrete shot list.
You respond with JSON only, never prose.`

const ScenePlanPromptTmpl = `Plan the scenes for a {{.TargetDuration}} second {{.Style}} video.

Creative brief:
{{.Prompt}}

Transcript of the source material:
{{.Transcript}}

Produce a JSON array of scenes. Each scene is an object with exactly these fields:
- "index": scene number starting at 1
- "description": what is on screen, one or two sentences
- "duration_seconds": integer length of the scene
- "narration": the line of transcript this scene covers, or an empty string

The durations must sum to roughly {{.TargetDuration}} seconds. Output the JSON array and nothing else.`

const TranscriptSummarySystemMessageTmpl = `You condense transcripts for a video production pipeline.
Keep every concrete fact, name and number. Drop filler.`

const TranscriptSummaryPromptTmpl = `Condense the following transcript excerpt to at most a third of its length:

{{.Transcript}}`
