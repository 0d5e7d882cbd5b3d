package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/lessonpath/internal/attempts"
	"github.com/abhisek/lessonpath/internal/lessons"
	"github.com/abhisek/lessonpath/internal/progression"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- authoring ---

func (s *Server) createLesson(c *gin.Context) {
	var req lessons.LessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	lesson, err := s.deps.Lessons.CreateLesson(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (s *Server) listLessons(c *gin.Context) {
	out, err := s.deps.Lessons.ListLessons(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getLesson(c *gin.Context) {
	id, ok := idParam(c, "lesson")
	if !ok {
		return
	}
	lesson, err := s.deps.Lessons.GetLesson(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (s *Server) setLessonValidator(c *gin.Context) {
	id, ok := idParam(c, "lesson")
	if !ok {
		return
	}
	var req lessons.ValidatorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	lesson, err := s.deps.Lessons.SetValidator(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (s *Server) createProblem(c *gin.Context) {
	var req lessons.ProblemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	problem, err := s.deps.Lessons.CreateProblem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, problem)
}

func (s *Server) listProblems(c *gin.Context) {
	id, ok := idParam(c, "lesson")
	if !ok {
		return
	}
	out, err := s.deps.Lessons.ListProblems(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteProblem(c *gin.Context) {
	id, ok := idParam(c, "problem")
	if !ok {
		return
	}
	if err := s.deps.Lessons.DeleteProblem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_id": id})
}

// --- judging and attempts ---

type validateRequest struct {
	ProblemID  int64  `json:"problem_id" binding:"required"`
	Submission string `json:"submission"`
}

func (s *Server) validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, err := s.deps.Validator.Judge(c.Request.Context(), req.ProblemID, req.Submission)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type attemptRequest struct {
	Username      string          `json:"username"`
	UserID        *int64          `json:"user_id"`
	ProblemID     int64           `json:"problem_id" binding:"required"`
	SubmittedText string          `json:"submitted_text"`
	IsCorrect     *bool           `json:"is_correct" binding:"required"`
	Stage         *string         `json:"stage"`
	ErrorReason   *string         `json:"error_reason"`
	Details       json.RawMessage `json:"details"`
}

func (s *Server) recordAttempt(c *gin.Context) {
	var req attemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	details := req.Details
	if bytes.Equal(bytes.TrimSpace(details), []byte("null")) {
		details = nil
	}
	ref, err := s.deps.Recorder.Record(c.Request.Context(), attempts.Input{
		UserID:        req.UserID,
		Username:      req.Username,
		ProblemID:     req.ProblemID,
		SubmittedText: req.SubmittedText,
		IsCorrect:     *req.IsCorrect,
		Stage:         req.Stage,
		ErrorReason:   req.ErrorReason,
		Details:       details,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

// --- users and progression ---

type createUserRequest struct {
	Username     string `json:"username" binding:"required"`
	ActiveLesson *int64 `json:"active_lesson"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.deps.Progression.Enroll(c.Request.Context(), req.Username, req.ActiveLesson)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.deps.Progression.Login(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := idParam(c, "user")
	if !ok {
		return
	}
	user, err := s.deps.Progression.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getUserByUsername(c *gin.Context) {
	user, err := s.deps.Progression.Lookup(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) advanceByID(c *gin.Context) {
	id, ok := idParam(c, "user")
	if !ok {
		return
	}
	s.advance(c, progression.ByID(id))
}

func (s *Server) advanceByUsername(c *gin.Context) {
	s.advance(c, progression.ByUsername(c.Param("username")))
}

func (s *Server) advance(c *gin.Context, ref progression.UserRef) {
	user, err := s.deps.Progression.Advance(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// nextReview renders null when nothing is scheduled.
func (s *Server) nextReview(c *gin.Context) {
	rs, err := s.deps.Progression.NextReview(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	if rs == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (s *Server) lastAttempts(c *gin.Context) {
	out, err := s.deps.Progression.LastAttempts(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func idParam(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}
