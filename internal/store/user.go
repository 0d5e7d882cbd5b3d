package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// CreateUser inserts a user whose active lesson is activeLessonID and whose
// unlocked set is seeded with that lesson.
func (t *Tx) CreateUser(ctx context.Context, username string, activeLessonID int64) (*User, error) {
	ib := t.sb().Insert("users").
		Columns("username", "active_lesson_id", "created_at").
		Values(username, activeLessonID, time.Now().UTC())
	id, err := t.insertID(ctx, ib)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if _, err := t.AppendLesson(ctx, id, activeLessonID); err != nil {
		return nil, err
	}
	return t.GetUser(ctx, id)
}

// GetUser loads a user and its unlocked set without locking.
func (t *Tx) GetUser(ctx context.Context, id int64) (*User, error) {
	return t.loadUser(ctx, "id", id, false)
}

// GetUserByUsername loads a user by username without locking.
func (t *Tx) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return t.loadUser(ctx, "username", username, false)
}

// LockUser loads a user and holds a row lock on it until the transaction
// ends. On SQLite the immediate transaction already excludes other writers.
func (t *Tx) LockUser(ctx context.Context, id int64) (*User, error) {
	return t.loadUser(ctx, "id", id, true)
}

// LockUserByUsername is LockUser keyed by username.
func (t *Tx) LockUserByUsername(ctx context.Context, username string) (*User, error) {
	return t.loadUser(ctx, "username", username, true)
}

// UserIDByUsername resolves a username without loading the unlocked set.
func (t *Tx) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	b := t.sb()
	u := b.Table("users")
	q := b.Select(u.C("id")).From(u).Where(entsql.EQ(u.C("username"), username))
	var id int64
	err := t.queryRow(ctx, q).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve username: %w", err)
	}
	return id, nil
}

func (t *Tx) loadUser(ctx context.Context, col string, val any, lock bool) (*User, error) {
	b := t.sb()
	u := b.Table("users")
	q := b.Select(u.C("id"), u.C("username"), u.C("active_lesson_id"), u.C("created_at")).
		From(u).
		Where(entsql.EQ(u.C(col), val))
	if lock && t.postgres() {
		q.ForUpdate()
	}

	var (
		user   User
		active sql.NullInt64
	)
	err := t.queryRow(ctx, q).Scan(&user.ID, &user.Username, &active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if active.Valid {
		user.ActiveLesson = &active.Int64
	}
	user.CreatedAt = user.CreatedAt.UTC()

	lessons, err := t.UnlockedLessons(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Lessons = lessons
	return &user, nil
}

// UnlockedLessons returns the user's unlocked lessons in unlock order.
func (t *Tx) UnlockedLessons(ctx context.Context, userID int64) ([]int64, error) {
	b := t.sb()
	ul := b.Table("user_lessons")
	q := b.Select(ul.C("lesson_id")).From(ul).
		Where(entsql.EQ(ul.C("user_id"), userID)).
		OrderBy(entsql.Asc(ul.C("position")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query unlocked lessons: %w", err)
	}
	ids, err := scanInt64s(rows)
	if err != nil {
		return nil, fmt.Errorf("scan unlocked lessons: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ContainsLesson reports whether lessonID is in the user's unlocked set.
func (t *Tx) ContainsLesson(ctx context.Context, userID, lessonID int64) (bool, error) {
	b := t.sb()
	ul := b.Table("user_lessons")
	q := b.Select(ul.C("lesson_id")).From(ul).
		Where(entsql.And(
			entsql.EQ(ul.C("user_id"), userID),
			entsql.EQ(ul.C("lesson_id"), lessonID),
		))
	var got int64
	err := t.queryRow(ctx, q).Scan(&got)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check unlocked lesson: %w", err)
	}
	return true, nil
}

// AppendLesson adds lessonID to the end of the user's unlocked set when it is
// not already there. It reports whether a row was added.
func (t *Tx) AppendLesson(ctx context.Context, userID, lessonID int64) (bool, error) {
	ok, err := t.ContainsLesson(ctx, userID, lessonID)
	if err != nil || ok {
		return false, err
	}

	b := t.sb()
	ul := b.Table("user_lessons")
	q := b.Select(entsql.Max(ul.C("position"))).From(ul).
		Where(entsql.EQ(ul.C("user_id"), userID))
	var last sql.NullInt64
	if err := t.queryRow(ctx, q).Scan(&last); err != nil {
		return false, fmt.Errorf("query last position: %w", err)
	}

	ins := b.Insert("user_lessons").
		Columns("user_id", "lesson_id", "position").
		Values(userID, lessonID, last.Int64+1).
		OnConflict(entsql.ConflictColumns("user_id", "lesson_id"), entsql.DoNothing())
	n, err := t.rowsAffected(ctx, ins)
	if err != nil {
		return false, fmt.Errorf("append unlocked lesson: %w", err)
	}
	return n > 0, nil
}

// SetActiveLesson points the user at lessonID.
func (t *Tx) SetActiveLesson(ctx context.Context, userID, lessonID int64) error {
	q := t.sb().Update("users").
		Set("active_lesson_id", lessonID).
		Where(entsql.EQ("id", userID))
	n, err := t.rowsAffected(ctx, q)
	if err != nil {
		return fmt.Errorf("set active lesson: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
