// Package attempts persists submitted attempts and keeps the review schedule
// in step with them.
package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/spacedrep"
	"github.com/abhisek/lessonpath/internal/store"
)

// Input is one attempt as submitted by a client. IsCorrect is taken as given;
// the recorder does not re-judge the submission.
type Input struct {
	UserID        *int64
	Username      string
	ProblemID     int64
	SubmittedText string
	IsCorrect     bool
	Stage         *string
	ErrorReason   *string
	Details       json.RawMessage
}

// Recorder writes attempts.
type Recorder struct {
	store *store.Store
	sched *spacedrep.Scheduler
	log   *logger.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(st *store.Store, sched *spacedrep.Scheduler, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{store: st, sched: sched, log: log.With("component", "attempts")}
}

// Record persists the attempt and bumps the review schedule in one
// transaction. Either both happen or neither does.
func (r *Recorder) Record(ctx context.Context, in Input) (*store.AttemptRef, error) {
	var ref *store.AttemptRef
	err := r.store.InTx(ctx, func(tx *store.Tx) error {
		userID, err := resolveUser(ctx, tx, in)
		if err != nil {
			return err
		}

		ref, err = tx.InsertAttempt(ctx, store.NewAttempt{
			UserID:        userID,
			ProblemID:     in.ProblemID,
			SubmittedText: in.SubmittedText,
			IsCorrect:     in.IsCorrect,
			Stage:         in.Stage,
			ErrorReason:   in.ErrorReason,
			Details:       in.Details,
		})
		if store.IsForeignKeyError(err) {
			return apperr.Wrap(apperr.KindIntegrity, "problem not found", err)
		}
		if err != nil {
			return fmt.Errorf("attempt insert failed: %w", err)
		}

		return r.sched.Bump(ctx, tx, userID, in.ProblemID, in.IsCorrect)
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("attempt recorded",
		"attempt_id", ref.ID,
		"problem_id", in.ProblemID,
		"correct", in.IsCorrect,
	)
	return ref, nil
}

// resolveUser returns the attempting user's id, or nil for an anonymous
// attempt. An explicit id wins over a username.
func resolveUser(ctx context.Context, tx *store.Tx, in Input) (*int64, error) {
	if in.UserID != nil {
		u, err := tx.LockUser(ctx, *in.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		if err != nil {
			return nil, err
		}
		return &u.ID, nil
	}
	if in.Username == "" {
		return nil, nil
	}
	u, err := tx.LockUserByUsername(ctx, in.Username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("username not found")
	}
	if err != nil {
		return nil, err
	}
	return &u.ID, nil
}
