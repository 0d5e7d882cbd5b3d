package validator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/llm"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "validator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// seedProblem creates a lesson with the given validator and one problem.
func seedProblem(t *testing.T, st *store.Store, lesson store.NewLesson, problem store.NewProblem) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	require.NoError(t, st.InTx(ctx, func(tx *store.Tx) error {
		l, err := tx.CreateLesson(ctx, lesson)
		if err != nil {
			return err
		}
		problem.LessonID = l.ID
		p, err := tx.CreateProblem(ctx, problem)
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	}))
	return id
}

func ptr[T any](v T) *T { return &v }

func TestExactMatchTrimsBothSides(t *testing.T) {
	st := openStore(t)
	pid := seedProblem(t, st, store.NewLesson{Title: "Basics"}, store.NewProblem{PromptText: "2+2?", AnswerText: " 4 "})
	d := NewDispatcher(st, logger.Nop())

	v, err := d.Judge(context.Background(), pid, "4\n")
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.Equal(t, KindExactMatch, v.Stage)
	assert.Nil(t, v.Error)
	assert.Equal(t, map[string]any{"expected": " 4 "}, v.Details)

	v, err = d.Judge(context.Background(), pid, "5")
	require.NoError(t, err)
	assert.False(t, v.OK)
	require.NotNil(t, v.Error)
	assert.Equal(t, "answer mismatch", *v.Error)
	assert.Equal(t, " 4 ", v.Details["expected"])
}

func TestJudgeProblemNotFound(t *testing.T) {
	d := NewDispatcher(openStore(t), logger.Nop())
	_, err := d.Judge(context.Background(), 999, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestUnknownKindMakesNoRemoteCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	st := openStore(t)
	pid := seedProblem(t, st,
		store.NewLesson{Title: "Odd", ValidatorKind: KindDelegated},
		store.NewProblem{PromptText: "q", AnswerText: "a", ValidatorKind: ptr("bogus")})
	d := NewDispatcher(st, logger.Nop())
	d.Register(KindDelegated, NewHTTPRunner(srv.URL, time.Second))

	_, err := d.Judge(context.Background(), pid, "a")
	assert.True(t, apperr.Is(err, apperr.KindUnknownConfiguration), "got %v", err)
	assert.Zero(t, calls.Load())
}

func TestEffectiveKindAndConfig(t *testing.T) {
	lesson := &store.Lesson{ValidatorKind: KindDelegated, ValidatorConfig: map[string]any{"mode": "run", "runtime": "py"}}
	problem := &store.Problem{ValidatorConfig: map[string]any{"mode": "check"}}

	assert.Equal(t, KindDelegated, EffectiveKind(problem, lesson))
	assert.Equal(t, map[string]any{"mode": "check", "runtime": "py"}, EffectiveConfig(problem, lesson))

	problem.ValidatorKind = ptr(KindExactMatch)
	assert.Equal(t, KindExactMatch, EffectiveKind(problem, lesson))
	assert.Equal(t, KindExactMatch, EffectiveKind(&store.Problem{}, &store.Lesson{}))
	assert.Equal(t, map[string]any{}, EffectiveConfig(&store.Problem{}, nil))
}

func TestDelegatedAppliesDefaults(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"stage":"parse","error":null,"details":null}`))
	}))
	defer srv.Close()

	st := openStore(t)
	pid := seedProblem(t, st,
		store.NewLesson{Title: "Lisp", ValidatorKind: KindDelegated},
		store.NewProblem{PromptText: "write (+ 1 2)", AnswerText: "(+ 1 2)"})
	d := NewDispatcher(st, logger.Nop())
	d.Register(KindDelegated, NewHTTPRunner(srv.URL+"/", time.Second))

	v, err := d.Judge(context.Background(), pid, "(+ 1 2)")
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.Equal(t, "parse", v.Stage)
	assert.Equal(t, map[string]any{}, v.Details)

	assert.Equal(t, map[string]any{
		"submission":    "(+ 1 2)",
		"mode":          "parse",
		"runtime":       "generic",
		"time_limit_ms": float64(200),
		"mem_limit_mb":  float64(64),
		"tests":         []any{},
	}, got)
}

func TestDelegatedMergesConfig(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":false,"stage":"test","error":"1 of 2 failed","details":"expected 3"}`))
	}))
	defer srv.Close()

	st := openStore(t)
	pid := seedProblem(t, st,
		store.NewLesson{Title: "Run", ValidatorKind: KindDelegated, ValidatorConfig: map[string]any{"mode": "run", "time_limit_ms": 500}},
		store.NewProblem{PromptText: "q", AnswerText: "a", ValidatorConfig: map[string]any{"mode": "test", "tests": []any{"(check-equal? (f) 3)"}}})
	d := NewDispatcher(st, logger.Nop())
	d.Register(KindDelegated, NewHTTPRunner(srv.URL, time.Second))

	v, err := d.Judge(context.Background(), pid, "(define (f) 2)")
	require.NoError(t, err)
	assert.False(t, v.OK)
	require.NotNil(t, v.Error)
	assert.Equal(t, "1 of 2 failed", *v.Error)
	assert.Equal(t, map[string]any{"message": "expected 3"}, v.Details)

	assert.Equal(t, "test", got["mode"])
	assert.Equal(t, float64(500), got["time_limit_ms"])
	assert.Equal(t, []any{"(check-equal? (f) 3)"}, got["tests"])
}

func TestDelegatedFailuresAreUpstream(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
		{"missing stage", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true}`))
		}},
		{"ok not boolean", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":"yes","stage":"parse"}`))
		}},
		{"details wrong type", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ok":true,"stage":"parse","details":42}`))
		}},
		{"too slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{"ok":true,"stage":"parse"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			r := NewHTTPRunner(srv.URL, 100*time.Millisecond)
			_, err := r.Judge(context.Background(), Input{Submission: "x"})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable), "got %v", err)

			var ae *apperr.Error
			require.ErrorAs(t, err, &ae)
			assert.Contains(t, ae.Msg, "runner error: ")
			assert.Greater(t, len(ae.Msg), len("runner error: "))
		})
	}
}

func TestRunnerWithoutURL(t *testing.T) {
	_, err := NewHTTPRunner("", 0).Judge(context.Background(), Input{})
	assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable))
}

func TestNormalizeDetails(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]any
	}{
		{``, map[string]any{}},
		{`null`, map[string]any{}},
		{`"plain"`, map[string]any{"message": "plain"}},
		{`{"line":3}`, map[string]any{"line": float64(3)}},
	}
	for _, tt := range tests {
		got, err := normalizeDetails(json.RawMessage(tt.raw))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestModelGraded(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"ok":true,"feedback":"Correct, nicely simplified."}`)},
		llm.MockResponse{Content: json.RawMessage(`{"ok":false,"feedback":"Check the sign."}`)},
	)

	st := openStore(t)
	pid := seedProblem(t, st,
		store.NewLesson{Title: "Algebra", ValidatorKind: KindModelGraded, ValidatorConfig: map[string]any{"rubric": "accept equivalent fractions"}},
		store.NewProblem{PromptText: "simplify 2/4", AnswerText: "1/2"})
	d := NewDispatcher(st, logger.Nop())
	d.Register(KindModelGraded, NewModelGrader(mock, DefaultGraderConfig()))

	v, err := d.Judge(context.Background(), pid, "0.5")
	require.NoError(t, err)
	assert.True(t, v.OK)
	assert.Equal(t, KindModelGraded, v.Stage)
	assert.Equal(t, map[string]any{"expected": "1/2", "feedback": "Correct, nicely simplified."}, v.Details)

	v, err = d.Judge(context.Background(), pid, "-1/2")
	require.NoError(t, err)
	assert.False(t, v.OK)
	require.NotNil(t, v.Error)

	require.Equal(t, 2, mock.CallCount())
	req := mock.Calls[0]
	assert.Equal(t, GradeSchema, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "Rubric: accept equivalent fractions")
	assert.Contains(t, req.Messages[0].Content, "Submission:\n0.5")
}

func TestModelGradedUpstreamFailures(t *testing.T) {
	in := Input{ProblemID: 1, Prompt: "p", Answer: "a", Submission: "s"}

	_, err := NewModelGrader(nil, DefaultGraderConfig()).Judge(context.Background(), in)
	assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable))

	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrRateLimit{}},
		llm.MockResponse{Content: json.RawMessage(`{"ok":true}`)},
	)
	g := NewModelGrader(mock, DefaultGraderConfig())
	for range 2 {
		_, err = g.Judge(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable), "got %v", err)
	}
}

func TestKnown(t *testing.T) {
	for _, k := range []string{KindExactMatch, KindDelegated, KindModelGraded} {
		assert.True(t, Known(k), k)
	}
	assert.False(t, Known("cfg"))
}
