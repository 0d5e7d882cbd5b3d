// Package progression owns the lesson-unlock state machine: a user's active
// lesson and the ordered set of lessons they have unlocked.
package progression

import (
	"context"
	"errors"
	"slices"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/spacedrep"
	"github.com/abhisek/lessonpath/internal/store"
)

// StreakLength is how many consecutive correct attempts on the active lesson
// unlock the next one.
const StreakLength = 3

const (
	msgUserNotFound  = "user not found"
	msgNoActive      = "user has no active lesson"
	msgStreakUnmet   = "unlock requires 3 correct attempts in a row on the current lesson"
	msgActiveMissing = "active lesson not found in lesson ordering"
	msgNoNextLesson  = "no next lesson"
	msgNoLessons     = "no lessons exist yet"
)

// UserRef names a user by id or by username. A non-zero ID wins.
type UserRef struct {
	ID       int64
	Username string
}

// ByID refers to a user by id.
func ByID(id int64) UserRef { return UserRef{ID: id} }

// ByUsername refers to a user by username.
func ByUsername(username string) UserRef { return UserRef{Username: username} }

// Engine advances users through the global lesson ordering.
type Engine struct {
	store *store.Store
	sched *spacedrep.Scheduler
	log   *logger.Logger
}

// NewEngine creates an engine.
func NewEngine(st *store.Store, sched *spacedrep.Scheduler, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: st, sched: sched, log: log.With("component", "progression")}
}

// Advance moves the user to the lesson after their active one, provided
// their last StreakLength attempts on the active lesson were all correct.
func (e *Engine) Advance(ctx context.Context, ref UserRef) (*store.User, error) {
	var out *store.User
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := lockRef(ctx, tx, ref)
		if err != nil {
			return err
		}
		if u.ActiveLesson == nil {
			return apperr.InvalidState(msgNoActive)
		}
		active := *u.ActiveLesson

		outcomes, err := tx.RecentOutcomes(ctx, u.ID, active, StreakLength)
		if err != nil {
			return err
		}
		if !StreakMet(outcomes) {
			return apperr.Forbidden(msgStreakUnmet)
		}

		order, err := tx.LessonOrder(ctx)
		if err != nil {
			return err
		}
		next, err := NextLesson(order, active)
		if err != nil {
			return err
		}

		if err := tx.SetActiveLesson(ctx, u.ID, next); err != nil {
			return err
		}
		if _, err := tx.AppendLesson(ctx, u.ID, next); err != nil {
			return err
		}
		if err := e.sched.EnsureUnlocked(ctx, tx, u.ID); err != nil {
			return err
		}

		out, err = tx.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		e.log.Info("user advanced", "user_id", u.ID, "from_lesson", active, "to_lesson", next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreakMet reports whether the newest-first outcomes hold a full streak.
func StreakMet(outcomes []bool) bool {
	if len(outcomes) < StreakLength {
		return false
	}
	for _, ok := range outcomes[:StreakLength] {
		if !ok {
			return false
		}
	}
	return true
}

// NextLesson returns the lesson following active in order.
func NextLesson(order []int64, active int64) (int64, error) {
	i := slices.Index(order, active)
	switch {
	case i < 0:
		return 0, apperr.InvalidState(msgActiveMissing)
	case i == len(order)-1:
		return 0, apperr.InvalidState(msgNoNextLesson)
	}
	return order[i+1], nil
}

// Enroll returns the user named username, creating it when absent. A new user
// starts at activeLesson when given, otherwise at the first lesson.
func (e *Engine) Enroll(ctx context.Context, username string, activeLesson *int64) (*store.User, error) {
	if username == "" {
		return nil, apperr.InvalidArgument("username is required")
	}
	var out *store.User
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			if err := e.sched.EnsureUnlocked(ctx, tx, u.ID); err != nil {
				return err
			}
			out = u
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		var start int64
		if activeLesson != nil {
			ok, err := tx.LessonExists(ctx, *activeLesson)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("active lesson not found")
			}
			start = *activeLesson
		} else {
			start, err = tx.FirstLessonID(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.InvalidState(msgNoLessons)
			}
			if err != nil {
				return err
			}
		}

		out, err = e.create(ctx, tx, username, start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Login returns the user named username, creating it at the first lesson
// when absent.
func (e *Engine) Login(ctx context.Context, username string) (*store.User, error) {
	return e.Enroll(ctx, username, nil)
}

func (e *Engine) create(ctx context.Context, tx *store.Tx, username string, start int64) (*store.User, error) {
	u, err := tx.CreateUser(ctx, username, start)
	if store.IsUniqueError(err) {
		return nil, apperr.Wrap(apperr.KindInvalidState, "username already taken", err)
	}
	if err != nil {
		return nil, err
	}
	if err := e.sched.EnsureUnlocked(ctx, tx, u.ID); err != nil {
		return nil, err
	}
	e.log.Info("user enrolled", "user_id", u.ID, "username", username, "active_lesson", start)
	return u, nil
}

// Get returns a user by id.
func (e *Engine) Get(ctx context.Context, id int64) (*store.User, error) {
	var out *store.User
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.GetUser(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgUserNotFound)
		}
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns a user by username after reconciling its review rows.
func (e *Engine) Lookup(ctx context.Context, username string) (*store.User, error) {
	var out *store.User
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.GetUserByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}
		out = u
		return e.sched.EnsureUnlocked(ctx, tx, u.ID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextReview returns the user's weakest unlocked lesson, or nil when there
// is none.
func (e *Engine) NextReview(ctx context.Context, username string) (*store.ReviewState, error) {
	var out *store.ReviewState
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		u, err := tx.LockUserByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}
		out, err = e.sched.NextReview(ctx, tx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LastAttempts reports the most recent attempt time per lesson for a user.
func (e *Engine) LastAttempts(ctx context.Context, username string) ([]store.LastAttempt, error) {
	var out []store.LastAttempt
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		id, err := tx.UserIDByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}
		out, err = tx.LastAttemptsPerLesson(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockRef(ctx context.Context, tx *store.Tx, ref UserRef) (*store.User, error) {
	var (
		u   *store.User
		err error
	)
	if ref.ID != 0 {
		u, err = tx.LockUser(ctx, ref.ID)
	} else {
		u, err = tx.LockUserByUsername(ctx, ref.Username)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	return u, err
}
