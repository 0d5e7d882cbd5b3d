package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// InsertAttempt appends an attempt. A missing problem or user surfaces as a
// foreign-key error; see IsForeignKeyError.
func (t *Tx) InsertAttempt(ctx context.Context, in NewAttempt) (*AttemptRef, error) {
	now := time.Now().UTC()

	var userID, stage, reason, details any
	if in.UserID != nil {
		userID = *in.UserID
	}
	if in.Stage != nil {
		stage = *in.Stage
	}
	if in.ErrorReason != nil {
		reason = *in.ErrorReason
	}
	if len(in.Details) > 0 {
		details = string(in.Details)
	}

	ib := t.sb().Insert("attempts").
		Columns("user_id", "problem_id", "submitted_text", "is_correct", "stage", "error_reason", "details", "created_at").
		Values(userID, in.ProblemID, in.SubmittedText, in.IsCorrect, stage, reason, details, now)
	id, err := t.insertID(ctx, ib)
	if err != nil {
		return nil, err
	}
	return &AttemptRef{ID: id, CreatedAt: now}, nil
}

// RecentOutcomes returns the correctness of the user's n most recent attempts
// on problems of lessonID, newest first.
func (t *Tx) RecentOutcomes(ctx context.Context, userID, lessonID int64, n int) ([]bool, error) {
	b := t.sb()
	a := b.Table("attempts").As("a")
	p := b.Table("problems").As("p")
	q := b.Select(a.C("is_correct")).
		From(a).
		Join(p).On(p.C("id"), a.C("problem_id")).
		Where(entsql.And(
			entsql.EQ(a.C("user_id"), userID),
			entsql.EQ(p.C("lesson_id"), lessonID),
		)).
		OrderBy(entsql.Desc(a.C("created_at")), entsql.Desc(a.C("id"))).
		Limit(n)
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query recent attempts: %w", err)
	}
	defer rows.Close()

	var out []bool
	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			return nil, fmt.Errorf("scan recent attempt: %w", err)
		}
		out = append(out, ok)
	}
	return out, rows.Err()
}

// LastAttemptsPerLesson returns, per lesson the user has attempted, the time
// of the most recent attempt. Rows are ordered by lesson id.
func (t *Tx) LastAttemptsPerLesson(ctx context.Context, userID int64) ([]LastAttempt, error) {
	b := t.sb()
	a := b.Table("attempts").As("a")
	p := b.Table("problems").As("p")
	q := b.Select(p.C("lesson_id"), a.C("created_at")).
		From(a).
		Join(p).On(p.C("id"), a.C("problem_id")).
		Where(entsql.EQ(a.C("user_id"), userID)).
		OrderBy(entsql.Asc(p.C("lesson_id")), entsql.Desc(a.C("created_at")), entsql.Desc(a.C("id")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query attempts per lesson: %w", err)
	}
	defer rows.Close()

	out := []LastAttempt{}
	for rows.Next() {
		var (
			lessonID int64
			at       time.Time
		)
		if err := rows.Scan(&lessonID, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		// Rows arrive newest first within each lesson.
		if len(out) > 0 && out[len(out)-1].LessonID == lessonID {
			continue
		}
		out = append(out, LastAttempt{UserID: userID, LessonID: lessonID, LastAttemptUTC: at.UTC()})
	}
	return out, rows.Err()
}
