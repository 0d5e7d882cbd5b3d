package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// EnsureReview inserts a box-1 review row due at now for (user, lesson)
// unless one exists. It reports whether a row was created.
func (t *Tx) EnsureReview(ctx context.Context, userID, lessonID int64, now time.Time) (bool, error) {
	ib := t.sb().Insert("review_states").
		Columns("user_id", "lesson_id", "box", "due_at", "updated_at").
		Values(userID, lessonID, 1, now, now).
		OnConflict(entsql.ConflictColumns("user_id", "lesson_id"), entsql.DoNothing())
	n, err := t.rowsAffected(ctx, ib)
	if err != nil {
		return false, fmt.Errorf("ensure review row: %w", err)
	}
	return n > 0, nil
}

// EnsureReviews creates the missing review rows for every lesson the user
// has unlocked and returns how many were created. Existing rows are left
// untouched.
func (t *Tx) EnsureReviews(ctx context.Context, userID int64, now time.Time) (int, error) {
	lessons, err := t.UnlockedLessons(ctx, userID)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, lessonID := range lessons {
		ok, err := t.EnsureReview(ctx, userID, lessonID, now)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// GetReview returns the review row for (user, lesson), or ErrNotFound.
func (t *Tx) GetReview(ctx context.Context, userID, lessonID int64) (*ReviewState, error) {
	b := t.sb()
	r := b.Table("review_states")
	q := b.Select(reviewColumns(r)...).From(r).
		Where(entsql.And(
			entsql.EQ(r.C("user_id"), userID),
			entsql.EQ(r.C("lesson_id"), lessonID),
		))
	rs, err := scanReview(t.queryRow(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rs, nil
}

// ListReviews returns every review row of the user ordered by lesson id.
func (t *Tx) ListReviews(ctx context.Context, userID int64) ([]*ReviewState, error) {
	b := t.sb()
	r := b.Table("review_states")
	q := b.Select(reviewColumns(r)...).From(r).
		Where(entsql.EQ(r.C("user_id"), userID)).
		OrderBy(entsql.Asc(r.C("lesson_id")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []*ReviewState
	for rows.Next() {
		rs, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// SaveReview writes back box, due_at and updated_at of an existing row.
func (t *Tx) SaveReview(ctx context.Context, rs *ReviewState) error {
	q := t.sb().Update("review_states").
		Set("box", rs.Box).
		Set("due_at", rs.DueAt).
		Set("updated_at", rs.UpdatedAt).
		Where(entsql.And(
			entsql.EQ("user_id", rs.UserID),
			entsql.EQ("lesson_id", rs.LessonID),
		))
	n, err := t.rowsAffected(ctx, q)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// NextReview returns the review row with the smallest box across the user's
// unlocked lessons, ties broken by earliest due date and then lesson id.
// It returns ErrNotFound when the user has no review rows.
func (t *Tx) NextReview(ctx context.Context, userID int64) (*ReviewState, error) {
	b := t.sb()
	r := b.Table("review_states").As("r")
	ul := b.Table("user_lessons").As("ul")
	unlocked := entsql.And(
		entsql.ColumnsEQ(ul.C("user_id"), r.C("user_id")),
		entsql.ColumnsEQ(ul.C("lesson_id"), r.C("lesson_id")),
	)
	q := b.Select(reviewColumns(r)...).
		From(r).
		Join(ul).OnP(unlocked).
		Where(entsql.EQ(r.C("user_id"), userID)).
		OrderBy(entsql.Asc(r.C("box")), entsql.Asc(r.C("due_at")), entsql.Asc(r.C("lesson_id"))).
		Limit(1)
	rs, err := scanReview(t.queryRow(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next review: %w", err)
	}
	return rs, nil
}

func reviewColumns(r *entsql.SelectTable) []string {
	return []string{r.C("user_id"), r.C("lesson_id"), r.C("box"), r.C("due_at"), r.C("updated_at")}
}

func scanReview(row rowScanner) (*ReviewState, error) {
	var (
		rs      ReviewState
		updated sql.NullTime
	)
	if err := row.Scan(&rs.UserID, &rs.LessonID, &rs.Box, &rs.DueAt, &updated); err != nil {
		return nil, err
	}
	rs.DueAt = rs.DueAt.UTC()
	if updated.Valid {
		u := updated.Time.UTC()
		rs.UpdatedAt = &u
	}
	return &rs, nil
}
