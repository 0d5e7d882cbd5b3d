package spacedrep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/store"
)

// Repo is the slice of the store the scheduler needs. *store.Tx satisfies it.
type Repo interface {
	LessonOfProblem(ctx context.Context, problemID int64) (int64, error)
	EnsureReview(ctx context.Context, userID, lessonID int64, now time.Time) (bool, error)
	EnsureReviews(ctx context.Context, userID int64, now time.Time) (int, error)
	GetReview(ctx context.Context, userID, lessonID int64) (*store.ReviewState, error)
	SaveReview(ctx context.Context, rs *store.ReviewState) error
	NextReview(ctx context.Context, userID int64) (*store.ReviewState, error)
}

// Scheduler maintains review rows. It holds no state of its own; every call
// runs against the caller's transaction.
type Scheduler struct {
	Now func() time.Time
	log *logger.Logger
}

// NewScheduler creates a scheduler using the wall clock.
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		Now: func() time.Time { return time.Now().UTC() },
		log: log,
	}
}

// Bump updates the (user, lesson) review row after an attempt on problemID.
// Anonymous attempts and unknown problems leave the schedule alone.
func (s *Scheduler) Bump(ctx context.Context, repo Repo, userID *int64, problemID int64, correct bool) error {
	if userID == nil {
		return nil
	}
	lessonID, err := repo.LessonOfProblem(ctx, problemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.Now()
	if _, err := repo.EnsureReview(ctx, *userID, lessonID, now); err != nil {
		return err
	}
	rs, err := repo.GetReview(ctx, *userID, lessonID)
	if err != nil {
		return fmt.Errorf("load review: %w", err)
	}
	from := rs.Box
	Apply(rs, correct, now)
	if err := repo.SaveReview(ctx, rs); err != nil {
		return err
	}

	s.log.Debug("review bumped",
		"user_id", *userID,
		"lesson_id", lessonID,
		"correct", correct,
		"from_box", from,
		"to_box", rs.Box,
		"due_at", rs.DueAt,
	)
	return nil
}

// EnsureUnlocked creates box-1 rows due now for unlocked lessons that have
// none. It is idempotent.
func (s *Scheduler) EnsureUnlocked(ctx context.Context, repo Repo, userID int64) error {
	n, err := repo.EnsureReviews(ctx, userID, s.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Debug("review rows seeded", "user_id", userID, "count", n)
	}
	return nil
}

// NextReview reconciles the user's rows and returns the weakest one: lowest
// box, then soonest due date. It returns nil when the user has no unlocked
// lessons.
func (s *Scheduler) NextReview(ctx context.Context, repo Repo, userID int64) (*store.ReviewState, error) {
	if err := s.EnsureUnlocked(ctx, repo, userID); err != nil {
		return nil, err
	}
	rs, err := repo.NextReview(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}
