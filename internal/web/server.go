// Package web exposes the sync engine, scheduler, settings, and run log
// over a JSON HTTP API.
package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasksync/internal/model"
	"tasksync/internal/provider"
	syncengine "tasksync/internal/sync"
)

// Store is the slice of the persistence layer the HTTP layer needs.
type Store interface {
	GetSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, settings model.Settings) error
	LastResult(ctx context.Context) (*model.Result, error)
	ListResults(ctx context.Context, limit int) ([]model.Result, error)
}

// Server is the tasksync HTTP server.
type Server struct {
	engine    *syncengine.Engine
	sched     *syncengine.Scheduler
	store     Store
	tasks     provider.Provider
	reminders provider.Provider
	router    *gin.Engine

	tasksConnected     func() bool
	remindersConnected func() bool
}

// NewServer wires up the routes.
func NewServer(engine *syncengine.Engine, sched *syncengine.Scheduler, store Store, tasks, reminders provider.Provider) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		sched:     sched,
		store:     store,
		tasks:     tasks,
		reminders: reminders,
		router:    router,
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
		api.POST("/sync/trigger", s.handleTrigger)
		api.GET("/sync/logs", s.handleLogs)
		api.POST("/scheduler/start", s.handleSchedulerStart)
		api.POST("/scheduler/stop", s.handleSchedulerStop)
		api.GET("/tasks/lists", s.handleTaskLists)
		api.GET("/reminders/lists", s.handleReminderLists)
	}

	return s
}

// SetConnectionProbes installs the cheap availability checks surfaced
// by /api/status: whether Google credentials are on disk and whether
// the reminders bridge is present. A missing probe reports false.
func (s *Server) SetConnectionProbes(tasks, reminders func() bool) {
	s.tasksConnected = tasks
	s.remindersConnected = reminders
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
