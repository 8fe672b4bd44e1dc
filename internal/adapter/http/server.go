package http

import (
	"net/http"

	"github.com/mlagae/vidpipe/internal/service"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
}

func NewServer(pipeline PipelineService, manager QueueService, monitoring MonitoringService, eventBus *service.EventBus) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(pipeline, manager, monitoring),
		sseHandler: NewSSEHandler(eventBus),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /videos", s.handlers.RegisterVideo())
	s.mux.HandleFunc("POST /videos/{id}/process", s.handlers.Process())
	s.mux.HandleFunc("GET /videos/{id}/status", s.handlers.Status())
	s.mux.HandleFunc("POST /videos/{id}/cancel", s.handlers.Cancel())

	s.mux.HandleFunc("POST /jobs/{id}/retry", s.handlers.RetryJob())
	s.mux.HandleFunc("POST /jobs/{id}/cancel", s.handlers.CancelJob())

	s.mux.HandleFunc("GET /queues/stats", s.handlers.QueueStats())
	s.mux.HandleFunc("POST /queues/{name}/pause", s.handlers.PauseQueue())
	s.mux.HandleFunc("POST /queues/{name}/resume", s.handlers.ResumeQueue())

	s.mux.HandleFunc("GET /events/{videoID}", s.sseHandler.Events())

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
