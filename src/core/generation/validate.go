package generation

const (
	MaxPromptLength   = 2000
	MinTargetDuration = 5
	MaxTargetDuration = 120
)

// Styles is the fixed set of accepted generation styles
var Styles = []string{"cinematic", "documentary", "anime", "realistic", "abstract"}

// ValidateSubmission checks the field-level rules of a submission. Media
// existence and ownership are checked separately against the media store.
func ValidateSubmission(sub Submission) error {
	if sub.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if len(sub.Prompt) > MaxPromptLength {
		return &ValidationError{Field: "prompt", Reason: "exceeds maximum length"}
	}
	if sub.TargetDuration < MinTargetDuration || sub.TargetDuration > MaxTargetDuration {
		return &ValidationError{Field: "targetDuration", Reason: "outside supported range"}
	}
	if !validStyle(sub.Style) {
		return &ValidationError{Field: "style", Reason: "not a supported style"}
	}
	if sub.InputMediaID == "" {
		return &ValidationError{Field: "inputMediaId", Reason: "must not be empty"}
	}
	return nil
}

func validStyle(style string) bool {
	for _, s := range Styles {
		if s == style {
			return true
		}
	}
	return false
}
