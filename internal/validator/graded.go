package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/llm"
)

// GraderConfig holds settings for the model-graded strategy.
type GraderConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultGraderConfig returns the grader defaults.
func DefaultGraderConfig() GraderConfig {
	return GraderConfig{
		MaxTokens:   256,
		Temperature: 0,
		Timeout:     30 * time.Second,
	}
}

// GradeSchema constrains the grader's reply.
var GradeSchema = &llm.Schema{
	Name:        "submission-grade",
	Description: "Whether a learner submission is an acceptable answer, with short feedback",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ok": map[string]any{
				"type":        "boolean",
				"description": "True when the submission is an acceptable answer to the prompt",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences for the learner",
			},
		},
		"required":             []any{"ok", "feedback"},
		"additionalProperties": false,
	},
}

// ModelGrader asks a language model to judge the submission against the
// canonical answer and an optional rubric.
type ModelGrader struct {
	provider llm.Provider
	cfg      GraderConfig
}

// NewModelGrader creates a grader. A nil provider makes every call fail with
// UpstreamUnavailable.
func NewModelGrader(provider llm.Provider, cfg GraderConfig) *ModelGrader {
	return &ModelGrader{provider: provider, cfg: cfg}
}

type gradeOutput struct {
	OK       bool   `json:"ok"`
	Feedback string `json:"feedback"`
}

func (g *ModelGrader) Judge(ctx context.Context, in Input) (*Verdict, error) {
	if g.provider == nil {
		return nil, graderError(fmt.Errorf("no LLM provider configured"))
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, fmt.Sprintf("grade:problem-%d", in.ProblemID))

	userMsg, err := buildGradeMessage(in)
	if err != nil {
		return nil, fmt.Errorf("build grade prompt: %w", err)
	}
	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      gradeSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		Schema:      GradeSchema,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, graderError(err)
	}

	var out gradeOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, graderError(fmt.Errorf("parse grade response: %w", err))
	}
	v := &Verdict{
		OK:      out.OK,
		Stage:   KindModelGraded,
		Details: map[string]any{"expected": in.Answer, "feedback": out.Feedback},
	}
	if !v.OK {
		v.Error = errorText("answer mismatch")
	}
	return v, nil
}

func graderError(cause error) error {
	return apperr.Wrap(apperr.KindUpstreamUnavailable, fmt.Sprintf("model grader error: %v", cause), cause)
}

const gradeSystemPrompt = `You grade learner submissions for a practice platform.

Instructions:
- Compare the submission with the reference answer. Equivalent answers are acceptable even when worded or formatted differently.
- If a rubric is given, apply it strictly.
- Never reveal the reference answer in the feedback.
- Keep feedback to at most two sentences.`

var gradeUserTemplate = template.Must(template.New("grade").Parse(`Prompt: {{.Prompt}}
Reference answer: {{.Answer}}
{{with .Rubric}}Rubric: {{.}}
{{end}}Submission:
{{.Submission}}`))

func buildGradeMessage(in Input) (string, error) {
	rubric, _ := in.Config["rubric"].(string)
	var buf bytes.Buffer
	err := gradeUserTemplate.Execute(&buf, struct {
		Prompt, Answer, Rubric, Submission string
	}{in.Prompt, in.Answer, rubric, in.Submission})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
