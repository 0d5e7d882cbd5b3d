package lessons

// LessonInput is the payload for creating a lesson. An empty ValidatorKind
// selects exact-match.
type LessonInput struct {
	Title           string         `json:"title"`
	BodyMD          string         `json:"body_md"`
	ValidatorKind   string         `json:"validator_kind,omitempty"`
	ValidatorConfig map[string]any `json:"validator_config,omitempty"`
}

// ProblemInput is the payload for creating a problem. ValidatorKind and
// ValidatorConfig override the lesson defaults for this problem only.
type ProblemInput struct {
	LessonID        int64          `json:"lesson_id"`
	PromptText      string         `json:"prompt_text"`
	AnswerText      string         `json:"answer_text"`
	ValidatorKind   *string        `json:"validator_kind,omitempty"`
	ValidatorConfig map[string]any `json:"validator_config,omitempty"`
}

// ValidatorInput replaces a lesson's default validator.
type ValidatorInput struct {
	Kind   string         `json:"kind"`
	Config map[string]any `json:"config"`
}
