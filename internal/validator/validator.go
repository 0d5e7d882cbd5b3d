// Package validator judges a submission against a problem. The judging
// strategy is chosen per problem from the problem's override or its lesson's
// default, and dispatch never writes persisted state.
package validator

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/store"
)

// Validator kinds.
const (
	KindExactMatch  = store.DefaultValidatorKind
	KindDelegated   = "delegated-execution"
	KindModelGraded = "model-graded"
)

// Known reports whether kind names a built-in strategy.
func Known(kind string) bool {
	switch kind {
	case KindExactMatch, KindDelegated, KindModelGraded:
		return true
	}
	return false
}

// Verdict is the outcome of judging one submission.
type Verdict struct {
	OK      bool           `json:"ok"`
	Stage   string         `json:"stage"`
	Error   *string        `json:"error"`
	Details map[string]any `json:"details"`
}

// Input is what a strategy sees: the problem's canonical answer, the
// submission and the effective configuration.
type Input struct {
	ProblemID  int64
	Prompt     string
	Answer     string
	Submission string
	Config     map[string]any
}

// Strategy judges a single submission.
type Strategy interface {
	Judge(ctx context.Context, in Input) (*Verdict, error)
}

// Dispatcher resolves the effective validator for a problem and runs it.
type Dispatcher struct {
	st         *store.Store
	strategies map[string]Strategy
	log        *logger.Logger
}

// NewDispatcher creates a dispatcher with exact-match registered. Other
// strategies are added with Register.
func NewDispatcher(st *store.Store, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		st:         st,
		strategies: map[string]Strategy{KindExactMatch: ExactMatch{}},
		log:        log.With("component", "validator"),
	}
}

// Register installs s under kind, replacing any previous strategy.
func (d *Dispatcher) Register(kind string, s Strategy) {
	d.strategies[kind] = s
}

// Judge loads the problem and its lesson and dispatches to the effective
// strategy.
func (d *Dispatcher) Judge(ctx context.Context, problemID int64, submission string) (*Verdict, error) {
	var (
		problem *store.Problem
		lesson  *store.Lesson
	)
	err := d.st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if problem, err = tx.GetProblem(ctx, problemID); err != nil {
			return err
		}
		lesson, err = tx.GetLesson(ctx, problem.LessonID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("problem not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load problem %d: %w", problemID, err)
	}

	kind := EffectiveKind(problem, lesson)
	s, ok := d.strategies[kind]
	if !ok {
		d.log.Warn("unknown validator kind", "problem_id", problemID, "kind", kind)
		return nil, apperr.New(apperr.KindUnknownConfiguration, "unknown validator kind")
	}

	v, err := s.Judge(ctx, Input{
		ProblemID:  problem.ID,
		Prompt:     problem.PromptText,
		Answer:     problem.AnswerText,
		Submission: submission,
		Config:     EffectiveConfig(problem, lesson),
	})
	if err != nil {
		d.log.Warn("validation failed", "problem_id", problemID, "kind", kind, "error", err.Error())
		return nil, err
	}
	d.log.Debug("validated", "problem_id", problemID, "kind", kind, "ok", v.OK)
	return v, nil
}

// EffectiveKind is the problem override, else the lesson default, else
// exact-match.
func EffectiveKind(p *store.Problem, l *store.Lesson) string {
	if p.ValidatorKind != nil && *p.ValidatorKind != "" {
		return *p.ValidatorKind
	}
	if l != nil && l.ValidatorKind != "" {
		return l.ValidatorKind
	}
	return KindExactMatch
}

// EffectiveConfig shallow-merges the lesson configuration with the problem
// configuration. Problem keys win.
func EffectiveConfig(p *store.Problem, l *store.Lesson) map[string]any {
	out := map[string]any{}
	if l != nil {
		maps.Copy(out, l.ValidatorConfig)
	}
	maps.Copy(out, p.ValidatorConfig)
	return out
}

func errorText(msg string) *string {
	return &msg
}
