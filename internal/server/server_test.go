package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonpath/internal/apperr"
	"github.com/abhisek/lessonpath/internal/attempts"
	"github.com/abhisek/lessonpath/internal/lessons"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/progression"
	"github.com/abhisek/lessonpath/internal/spacedrep"
	"github.com/abhisek/lessonpath/internal/store"
	"github.com/abhisek/lessonpath/internal/validator"
)

type testAPI struct {
	t  *testing.T
	st *store.Store
	h  http.Handler
}

func newTestAPI(t *testing.T, runnerURL string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logger.Nop()
	sched := spacedrep.NewScheduler(log)
	dispatcher := validator.NewDispatcher(st, log)
	dispatcher.Register(validator.KindDelegated, validator.NewHTTPRunner(runnerURL, time.Second))

	srv := New(Deps{
		Lessons:     lessons.NewService(st, log),
		Validator:   dispatcher,
		Recorder:    attempts.NewRecorder(st, sched, log),
		Progression: progression.NewEngine(st, sched, log),
		Log:         log,
	})
	return &testAPI{t: t, st: st, h: srv.Handler()}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.h.ServeHTTP(w, req)
	return w
}

// call performs a request, asserts the status and decodes the body into out.
func (a *testAPI) call(method, path string, body any, status int, out any) {
	a.t.Helper()
	w := a.do(method, path, body)
	require.Equal(a.t, status, w.Code, "body: %s", w.Body.String())
	if out != nil {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), out))
	}
}

func (a *testAPI) expectError(method, path string, body any, status int, kind apperr.Kind) errorBody {
	a.t.Helper()
	var eb errorBody
	a.call(method, path, body, status, &eb)
	assert.Equal(a.t, kind.String(), eb.Error)
	return eb
}

type lessonOut struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type problemOut struct {
	ID       int64 `json:"id"`
	LessonID int64 `json:"lesson_id"`
}

type userOut struct {
	UserID       int64   `json:"user_id"`
	Username     string  `json:"username"`
	ActiveLesson *int64  `json:"active_lesson"`
	Lessons      []int64 `json:"lessons"`
}

func (a *testAPI) seedLesson(title string) (lessonOut, problemOut) {
	a.t.Helper()
	var l lessonOut
	a.call(http.MethodPost, "/lessons", gin.H{"title": title, "body_md": "# " + title}, http.StatusOK, &l)
	var p problemOut
	a.call(http.MethodPost, "/problems", gin.H{"lesson_id": l.ID, "prompt_text": "q", "answer_text": "ans"}, http.StatusOK, &p)
	return l, p
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, "")
	w := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	api := newTestAPI(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	api.h.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORSAllowsAllByDefault(t *testing.T) {
	api := newTestAPI(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/lessons", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	api.h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthoringEndpoints(t *testing.T) {
	api := newTestAPI(t, "")
	l1, p1 := api.seedLesson("Atoms")
	l2, _ := api.seedLesson("Lists")

	var all []lessonOut
	api.call(http.MethodGet, "/lessons", nil, http.StatusOK, &all)
	require.Len(t, all, 2)
	assert.Equal(t, l1.ID, all[0].ID)
	assert.Equal(t, l2.ID, all[1].ID)

	var got lessonOut
	api.call(http.MethodGet, "/lessons/"+itoa(l1.ID), nil, http.StatusOK, &got)
	assert.Equal(t, "Atoms", got.Title)

	api.expectError(http.MethodGet, "/lessons/999", nil, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodGet, "/lessons/abc", nil, http.StatusBadRequest, apperr.KindInvalidArgument)
	api.expectError(http.MethodPost, "/lessons", gin.H{"title": "Atoms"}, http.StatusBadRequest, apperr.KindInvalidArgument)
	api.expectError(http.MethodPost, "/problems", gin.H{"lesson_id": 999, "prompt_text": "q", "answer_text": "a"}, http.StatusNotFound, apperr.KindNotFound)

	var problems []problemOut
	api.call(http.MethodGet, "/lessons/"+itoa(l1.ID)+"/problems", nil, http.StatusOK, &problems)
	require.Len(t, problems, 1)
	assert.Equal(t, p1.ID, problems[0].ID)

	var lesson struct {
		ValidatorKind   string         `json:"validator_kind"`
		ValidatorConfig map[string]any `json:"validator_config"`
	}
	api.call(http.MethodPut, "/lessons/"+itoa(l2.ID)+"/validator",
		gin.H{"kind": validator.KindDelegated, "config": gin.H{"mode": "run"}}, http.StatusOK, &lesson)
	assert.Equal(t, validator.KindDelegated, lesson.ValidatorKind)
	assert.Equal(t, "run", lesson.ValidatorConfig["mode"])

	w := api.do(http.MethodDelete, "/problems/"+itoa(p1.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted_id":`+itoa(p1.ID)+`}`, w.Body.String())
	api.expectError(http.MethodDelete, "/problems/"+itoa(p1.ID), nil, http.StatusNotFound, apperr.KindNotFound)

	w = api.do(http.MethodGet, "/lessons/"+itoa(l1.ID)+"/problems", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestValidateEndpoint(t *testing.T) {
	runner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"stage":"parse","error":null,"details":"parsed"}`))
	}))
	defer runner.Close()

	api := newTestAPI(t, runner.URL)
	_, p := api.seedLesson("Basics")

	w := api.do(http.MethodPost, "/validate", gin.H{"problem_id": p.ID, "submission": "  ans "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"stage":"exact-match","error":null,"details":{"expected":"ans"}}`, w.Body.String())

	l2, _ := api.seedLesson("Delegated")
	var p2 problemOut
	api.call(http.MethodPut, "/lessons/"+itoa(l2.ID)+"/validator", gin.H{"kind": validator.KindDelegated}, http.StatusOK, nil)
	api.call(http.MethodPost, "/problems", gin.H{"lesson_id": l2.ID, "prompt_text": "q", "answer_text": "a"}, http.StatusOK, &p2)

	w = api.do(http.MethodPost, "/validate", gin.H{"problem_id": p2.ID, "submission": "(x)"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"stage":"parse","error":null,"details":{"message":"parsed"}}`, w.Body.String())

	api.expectError(http.MethodPost, "/validate", gin.H{"problem_id": 999, "submission": "x"}, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodPost, "/validate", gin.H{"submission": "x"}, http.StatusBadRequest, apperr.KindInvalidArgument)
}

func TestValidateUpstreamAndUnknownKind(t *testing.T) {
	runner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "runner crashed", http.StatusBadGateway)
	}))
	defer runner.Close()

	api := newTestAPI(t, runner.URL)
	l, p := api.seedLesson("Remote")
	api.call(http.MethodPut, "/lessons/"+itoa(l.ID)+"/validator", gin.H{"kind": validator.KindDelegated}, http.StatusOK, nil)

	eb := api.expectError(http.MethodPost, "/validate", gin.H{"problem_id": p.ID, "submission": "x"}, http.StatusBadRequest, apperr.KindUpstreamUnavailable)
	assert.True(t, strings.HasPrefix(eb.Message, "runner error: "), eb.Message)
	assert.Contains(t, eb.Message, "runner crashed")

	_, err := api.st.DB().Exec(`UPDATE lessons SET validator_kind = 'mystery' WHERE id = ?`, l.ID)
	require.NoError(t, err)
	eb = api.expectError(http.MethodPost, "/validate", gin.H{"problem_id": p.ID, "submission": "x"}, http.StatusBadRequest, apperr.KindUnknownConfiguration)
	assert.Equal(t, "unknown validator kind", eb.Message)
}

func TestProgressionFlow(t *testing.T) {
	api := newTestAPI(t, "")
	l1, p1 := api.seedLesson("One")
	l2, _ := api.seedLesson("Two")

	var u userOut
	api.call(http.MethodPost, "/users", gin.H{"username": "ada"}, http.StatusOK, &u)
	require.NotNil(t, u.ActiveLesson)
	assert.Equal(t, l1.ID, *u.ActiveLesson)
	assert.Equal(t, []int64{l1.ID}, u.Lessons)

	attempt := func(correct bool) {
		api.call(http.MethodPost, "/attempts", gin.H{
			"username": "ada", "problem_id": p1.ID, "submitted_text": "ans", "is_correct": correct,
			"details": gin.H{"trace": []int{1, 2}},
		}, http.StatusOK, nil)
	}
	attempt(true)
	attempt(true)

	eb := api.expectError(http.MethodPost, "/users/"+itoa(u.UserID)+"/advance", nil, http.StatusForbidden, apperr.KindForbidden)
	assert.Equal(t, "unlock requires 3 correct attempts in a row on the current lesson", eb.Message)

	attempt(true)
	var advanced userOut
	api.call(http.MethodPost, "/users/by-username/ada/advance", nil, http.StatusOK, &advanced)
	require.NotNil(t, advanced.ActiveLesson)
	assert.Equal(t, l2.ID, *advanced.ActiveLesson)
	assert.Equal(t, []int64{l1.ID, l2.ID}, advanced.Lessons)

	var next struct {
		LessonID int64     `json:"lesson_id"`
		Box      int       `json:"box"`
		DueAt    time.Time `json:"due_at"`
	}
	api.call(http.MethodGet, "/users/by-username/ada/next-review", nil, http.StatusOK, &next)
	assert.Equal(t, l2.ID, next.LessonID)
	assert.Equal(t, 1, next.Box)

	var report []struct {
		UserID   int64 `json:"user_id"`
		LessonID int64 `json:"lesson_id"`
	}
	api.call(http.MethodGet, "/users/by-username/ada/last-attempts-per-lesson", nil, http.StatusOK, &report)
	require.Len(t, report, 1)
	assert.Equal(t, l1.ID, report[0].LessonID)

	var again userOut
	api.call(http.MethodPost, "/login", gin.H{"username": "ada"}, http.StatusOK, &again)
	assert.Equal(t, u.UserID, again.UserID)
	api.call(http.MethodGet, "/users/"+itoa(u.UserID), nil, http.StatusOK, &again)
	assert.Equal(t, "ada", again.Username)
	api.call(http.MethodGet, "/users/by-username/ada", nil, http.StatusOK, &again)
	assert.Equal(t, l2.ID, *again.ActiveLesson)
}

func TestAttemptErrors(t *testing.T) {
	api := newTestAPI(t, "")
	_, p := api.seedLesson("One")

	eb := api.expectError(http.MethodPost, "/attempts",
		gin.H{"username": "ghost", "problem_id": p.ID, "submitted_text": "x", "is_correct": true},
		http.StatusNotFound, apperr.KindNotFound)
	assert.Equal(t, "username not found", eb.Message)

	eb = api.expectError(http.MethodPost, "/attempts",
		gin.H{"problem_id": 999, "submitted_text": "x", "is_correct": false},
		http.StatusNotFound, apperr.KindIntegrity)
	assert.Equal(t, "problem not found", eb.Message)

	api.expectError(http.MethodPost, "/attempts",
		gin.H{"problem_id": p.ID, "submitted_text": "x"},
		http.StatusBadRequest, apperr.KindInvalidArgument)

	var ref struct {
		ID        int64     `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	}
	api.call(http.MethodPost, "/attempts",
		gin.H{"problem_id": p.ID, "submitted_text": "x", "is_correct": false, "details": nil},
		http.StatusOK, &ref)
	assert.NotZero(t, ref.ID)
	assert.False(t, ref.CreatedAt.IsZero())
}

func TestUserErrors(t *testing.T) {
	api := newTestAPI(t, "")

	eb := api.expectError(http.MethodPost, "/users", gin.H{"username": "bob"}, http.StatusBadRequest, apperr.KindInvalidState)
	assert.Equal(t, "no lessons exist yet", eb.Message)

	l, _ := api.seedLesson("Only")
	api.expectError(http.MethodPost, "/users", gin.H{"username": "bob", "active_lesson": l.ID + 50}, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodPost, "/users", gin.H{}, http.StatusBadRequest, apperr.KindInvalidArgument)
	api.expectError(http.MethodGet, "/users/77", nil, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodGet, "/users/by-username/nobody", nil, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodGet, "/users/by-username/nobody/next-review", nil, http.StatusNotFound, apperr.KindNotFound)
	api.expectError(http.MethodPost, "/users/by-username/nobody/advance", nil, http.StatusNotFound, apperr.KindNotFound)

	var u userOut
	api.call(http.MethodPost, "/users", gin.H{"username": "bob"}, http.StatusOK, &u)
	eb = api.expectError(http.MethodPost, "/users/by-username/bob/advance", nil, http.StatusForbidden, apperr.KindForbidden)

	_, err := api.st.DB().Exec(`DELETE FROM lessons`)
	require.NoError(t, err)
	w := api.do(http.MethodGet, "/users/by-username/bob/next-review", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))

	eb = api.expectError(http.MethodPost, "/users/by-username/bob/advance", nil, http.StatusBadRequest, apperr.KindInvalidState)
	assert.Equal(t, "user has no active lesson", eb.Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindIntegrity, http.StatusNotFound},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindInvalidArgument, http.StatusBadRequest},
		{apperr.KindInvalidState, http.StatusBadRequest},
		{apperr.KindUpstreamUnavailable, http.StatusBadRequest},
		{apperr.KindUnknownConfiguration, http.StatusBadRequest},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.kind), tt.kind.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
