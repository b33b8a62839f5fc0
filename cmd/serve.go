package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/judgenot0/watchdog/config"
	"github.com/judgenot0/watchdog/queue"
	"github.com/judgenot0/watchdog/scheduler"
)

type Server struct {
	config     *config.Config
	manager    *queue.Queue
	scheduler  *scheduler.Scheduler
	httpServer *http.Server
}

func NewServer(config *config.Config, queue *queue.Queue, scheduler *scheduler.Scheduler) *Server {
	return &Server{
		config:    config,
		manager:   queue,
		scheduler: scheduler,
	}
}

func (s *Server) Listen(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:    ":" + strings.TrimPrefix(port, ":"),
		Handler: mux,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
