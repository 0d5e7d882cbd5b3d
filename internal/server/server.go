// Package server exposes the lesson, validation, attempt and progression
// operations over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/lessonpath/internal/attempts"
	"github.com/abhisek/lessonpath/internal/lessons"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/progression"
	"github.com/abhisek/lessonpath/internal/validator"
)

const shutdownTimeout = 10 * time.Second

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Lessons     *lessons.Service
	Validator   *validator.Dispatcher
	Recorder    *attempts.Recorder
	Progression *progression.Engine
	Log         *logger.Logger

	// CORSOrigins lists allowed origins. "*" or an empty list allows all.
	CORSOrigins []string
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	log    *logger.Logger
	router *gin.Engine
}

// New builds the router and registers every route.
func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	s := &Server{deps: deps, log: deps.Log.With("component", "http")}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(s.log))
	r.Use(corsMiddleware(deps.CORSOrigins))
	s.routes(r)
	s.router = r
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)

	r.POST("/lessons", s.createLesson)
	r.GET("/lessons", s.listLessons)
	r.GET("/lessons/:id", s.getLesson)
	r.PUT("/lessons/:id/validator", s.setLessonValidator)
	r.GET("/lessons/:id/problems", s.listProblems)

	r.POST("/problems", s.createProblem)
	r.DELETE("/problems/:id", s.deleteProblem)

	r.POST("/validate", s.validate)
	r.POST("/attempts", s.recordAttempt)

	r.POST("/users", s.createUser)
	r.POST("/login", s.login)
	r.GET("/users/:id", s.getUser)
	r.POST("/users/:id/advance", s.advanceByID)
	r.GET("/users/by-username/:username", s.getUserByUsername)
	r.POST("/users/by-username/:username/advance", s.advanceByUsername)
	r.GET("/users/by-username/:username/next-review", s.nextReview)
	r.GET("/users/by-username/:username/last-attempts-per-lesson", s.lastAttempts)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
