package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var problemColumns = []string{"id", "lesson_id", "prompt_text", "answer_text", "created_at", "validator_kind", "validator_config"}

// CreateProblem inserts a problem under an existing lesson. A missing lesson
// yields ErrNotFound.
func (t *Tx) CreateProblem(ctx context.Context, in NewProblem) (*Problem, error) {
	ok, err := t.LessonExists(ctx, in.LessonID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	var cfg any
	if in.ValidatorConfig != nil {
		raw, err := encodeConfig(in.ValidatorConfig)
		if err != nil {
			return nil, err
		}
		cfg = raw
	}
	var kind any
	if in.ValidatorKind != nil {
		kind = *in.ValidatorKind
	}

	ib := t.sb().Insert("problems").
		Columns("lesson_id", "prompt_text", "answer_text", "created_at", "validator_kind", "validator_config").
		Values(in.LessonID, in.PromptText, in.AnswerText, time.Now().UTC(), kind, cfg)
	id, err := t.insertID(ctx, ib)
	if err != nil {
		return nil, fmt.Errorf("insert problem: %w", err)
	}
	return t.GetProblem(ctx, id)
}

// GetProblem returns the problem with the given id, or ErrNotFound.
func (t *Tx) GetProblem(ctx context.Context, id int64) (*Problem, error) {
	b := t.sb()
	p := b.Table("problems")
	q := b.Select(problemColumns...).From(p).Where(entsql.EQ(p.C("id"), id))
	problem, err := scanProblem(t.queryRow(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get problem %d: %w", id, err)
	}
	return problem, nil
}

// ListProblems returns the problems of a lesson ordered by id.
func (t *Tx) ListProblems(ctx context.Context, lessonID int64) ([]*Problem, error) {
	b := t.sb()
	p := b.Table("problems")
	q := b.Select(problemColumns...).From(p).
		Where(entsql.EQ(p.C("lesson_id"), lessonID)).
		OrderBy(entsql.Asc(p.C("id")))
	rows, err := t.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var out []*Problem
	for rows.Next() {
		problem, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		out = append(out, problem)
	}
	return out, rows.Err()
}

// DeleteProblem removes a problem and, by cascade, its attempts.
func (t *Tx) DeleteProblem(ctx context.Context, id int64) error {
	q := t.sb().Delete("problems").Where(entsql.EQ("id", id))
	n, err := t.rowsAffected(ctx, q)
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LessonOfProblem resolves the lesson a problem belongs to, or ErrNotFound.
func (t *Tx) LessonOfProblem(ctx context.Context, problemID int64) (int64, error) {
	b := t.sb()
	p := b.Table("problems")
	q := b.Select(p.C("lesson_id")).From(p).Where(entsql.EQ(p.C("id"), problemID))
	var lessonID int64
	err := t.queryRow(ctx, q).Scan(&lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve lesson of problem %d: %w", problemID, err)
	}
	return lessonID, nil
}

func scanProblem(row rowScanner) (*Problem, error) {
	var (
		p    Problem
		kind sql.NullString
		cfg  []byte
	)
	if err := row.Scan(&p.ID, &p.LessonID, &p.PromptText, &p.AnswerText, &p.CreatedAt, &kind, &cfg); err != nil {
		return nil, err
	}
	if kind.Valid {
		p.ValidatorKind = &kind.String
	}
	m, err := decodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	p.ValidatorConfig = m
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
