package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var lessonColumns = []string{"id", "title", "body_md", "created_at", "validator_kind", "validator_config"}

// CreateLesson inserts a lesson. An empty validator kind selects the default.
func (t *Tx) CreateLesson(ctx context.Context, in NewLesson) (*Lesson, error) {
	kind := in.ValidatorKind
	if kind == "" {
		kind = DefaultValidatorKind
	}
	cfg, err := encodeConfig(in.ValidatorConfig)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	ib := t.sb().Insert("lessons").
		Columns("title", "body_md", "created_at", "validator_kind", "validator_config").
		Values(in.Title, in.BodyMD, now, kind, cfg)
	id, err := t.insertID(ctx, ib)
	if err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}
	return t.GetLesson(ctx, id)
}

// GetLesson returns the lesson with the given id, or ErrNotFound.
func (t *Tx) GetLesson(ctx context.Context, id int64) (*Lesson, error) {
	b := t.sb()
	l := b.Table("lessons")
	q := b.Select(lessonColumns...).From(l).Where(entsql.EQ(l.C("id"), id))
	lesson, err := scanLesson(t.queryRow(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lesson %d: %w", id, err)
	}
	return lesson, nil
}

// ListLessons returns every lesson in global order.
func (t *Tx) ListLessons(ctx context.Context) ([]*Lesson, error) {
	b := t.sb()
	l := b.Table("lessons")
	q := b.Select(lessonColumns...).From(l).
		OrderBy(entsql.Asc(l.C("created_at")), entsql.Asc(l.C("id")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var out []*Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		out = append(out, lesson)
	}
	return out, rows.Err()
}

// LessonOrder returns all lesson ids ordered by (created_at ASC, id ASC).
func (t *Tx) LessonOrder(ctx context.Context) ([]int64, error) {
	b := t.sb()
	l := b.Table("lessons")
	q := b.Select(l.C("id")).From(l).
		OrderBy(entsql.Asc(l.C("created_at")), entsql.Asc(l.C("id")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query lesson order: %w", err)
	}
	ids, err := scanInt64s(rows)
	if err != nil {
		return nil, fmt.Errorf("scan lesson order: %w", err)
	}
	return ids, nil
}

// FirstLessonID returns the first lesson in global order, or ErrNotFound
// when there are no lessons.
func (t *Tx) FirstLessonID(ctx context.Context) (int64, error) {
	b := t.sb()
	l := b.Table("lessons")
	q := b.Select(l.C("id")).From(l).
		OrderBy(entsql.Asc(l.C("created_at")), entsql.Asc(l.C("id"))).
		Limit(1)
	var id int64
	err := t.queryRow(ctx, q).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("first lesson: %w", err)
	}
	return id, nil
}

// LessonExists reports whether a lesson with the given id exists.
func (t *Tx) LessonExists(ctx context.Context, id int64) (bool, error) {
	_, err := t.GetLesson(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// SetLessonValidator replaces a lesson's default validator kind and
// configuration.
func (t *Tx) SetLessonValidator(ctx context.Context, id int64, kind string, cfg map[string]any) (*Lesson, error) {
	if kind == "" {
		kind = DefaultValidatorKind
	}
	raw, err := encodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	b := t.sb()
	q := b.Update("lessons").
		Set("validator_kind", kind).
		Set("validator_config", raw).
		Where(entsql.EQ("id", id))
	n, err := t.rowsAffected(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("update lesson validator: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return t.GetLesson(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLesson(row rowScanner) (*Lesson, error) {
	var (
		l   Lesson
		cfg []byte
	)
	if err := row.Scan(&l.ID, &l.Title, &l.BodyMD, &l.CreatedAt, &l.ValidatorKind, &cfg); err != nil {
		return nil, err
	}
	m, err := decodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	l.ValidatorConfig = m
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}
