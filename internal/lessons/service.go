// Package lessons is the authoring side of the service: lessons, their
// problems and the validator configuration attached to them.
package lessons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/store"
	"github.com/abhisek/lessonpath/internal/validator"
)

// Service manages lessons and problems.
type Service struct {
	st  *store.Store
	log *logger.Logger
}

// NewService creates an authoring service.
func NewService(st *store.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{st: st, log: log.With("component", "lessons")}
}

// CreateLesson appends a lesson to the global order.
func (s *Service) CreateLesson(ctx context.Context, in LessonInput) (*store.Lesson, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.InvalidArgument("title is required")
	}
	if err := checkKind(in.ValidatorKind, true); err != nil {
		return nil, err
	}

	var lesson *store.Lesson
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		lesson, err = tx.CreateLesson(ctx, store.NewLesson{
			Title:           in.Title,
			BodyMD:          in.BodyMD,
			ValidatorKind:   in.ValidatorKind,
			ValidatorConfig: in.ValidatorConfig,
		})
		return err
	})
	if store.IsUniqueError(err) {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, "lesson title already exists", err)
	}
	if err != nil {
		return nil, fmt.Errorf("create lesson: %w", err)
	}
	s.log.Info("lesson created", "lesson_id", lesson.ID, "validator_kind", lesson.ValidatorKind)
	return lesson, nil
}

func (s *Service) GetLesson(ctx context.Context, id int64) (*store.Lesson, error) {
	var lesson *store.Lesson
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		lesson, err = tx.GetLesson(ctx, id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("lesson not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return lesson, nil
}

// ListLessons returns every lesson in global order.
func (s *Service) ListLessons(ctx context.Context) ([]*store.Lesson, error) {
	out := []*store.Lesson{}
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		lessons, err := tx.ListLessons(ctx)
		out = append(out, lessons...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return out, nil
}

// SetValidator replaces the default validator of a lesson. Problems with
// their own override are unaffected.
func (s *Service) SetValidator(ctx context.Context, lessonID int64, in ValidatorInput) (*store.Lesson, error) {
	if err := checkKind(in.Kind, false); err != nil {
		return nil, err
	}

	var lesson *store.Lesson
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		lesson, err = tx.SetLessonValidator(ctx, lessonID, in.Kind, in.Config)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("lesson not found")
	}
	if err != nil {
		return nil, fmt.Errorf("set lesson validator: %w", err)
	}
	s.log.Info("lesson validator updated", "lesson_id", lessonID, "validator_kind", in.Kind)
	return lesson, nil
}

// CreateProblem adds a problem to an existing lesson.
func (s *Service) CreateProblem(ctx context.Context, in ProblemInput) (*store.Problem, error) {
	if in.ValidatorKind != nil {
		if err := checkKind(*in.ValidatorKind, false); err != nil {
			return nil, err
		}
	}

	var problem *store.Problem
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		var err error
		problem, err = tx.CreateProblem(ctx, store.NewProblem{
			LessonID:        in.LessonID,
			PromptText:      in.PromptText,
			AnswerText:      in.AnswerText,
			ValidatorKind:   in.ValidatorKind,
			ValidatorConfig: in.ValidatorConfig,
		})
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("lesson not found")
	}
	if err != nil {
		return nil, fmt.Errorf("create problem: %w", err)
	}
	s.log.Info("problem created", "problem_id", problem.ID, "lesson_id", problem.LessonID)
	return problem, nil
}

// ListProblems returns the problems of a lesson ordered by id. An unknown
// lesson has no problems.
func (s *Service) ListProblems(ctx context.Context, lessonID int64) ([]*store.Problem, error) {
	out := []*store.Problem{}
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		problems, err := tx.ListProblems(ctx, lessonID)
		out = append(out, problems...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return out, nil
}

// DeleteProblem removes a problem together with its attempts.
func (s *Service) DeleteProblem(ctx context.Context, id int64) error {
	err := s.st.InTx(ctx, func(tx *store.Tx) error {
		return tx.DeleteProblem(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("problem not found")
	}
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	s.log.Info("problem deleted", "problem_id", id)
	return nil
}

func checkKind(kind string, allowEmpty bool) error {
	if kind == "" && allowEmpty {
		return nil
	}
	if !validator.Known(kind) {
		return apperr.InvalidArgument(fmt.Sprintf("unknown validator kind %q", kind))
	}
	return nil
}
