package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mlagae/vidpipe/internal/domain"
	"github.com/mlagae/vidpipe/internal/infrastructure/logger"
	"github.com/mlagae/vidpipe/internal/service"
)

type PipelineService interface {
	RegisterVideo(ctx context.Context, title, originalPath string) (*domain.Video, error)
	EnqueueVideo(ctx context.Context, videoID string, opts service.ProcessingOptions) ([]*domain.Job, error)
	GetStatus(ctx context.Context, videoID string) (*service.VideoReport, error)
	CancelVideo(ctx context.Context, videoID string) error
}

type QueueService interface {
	CancelJob(ctx context.Context, jobID string) error
	RetryJob(ctx context.Context, jobID string) error
	PauseQueue(ctx context.Context, name string) error
	ResumeQueue(ctx context.Context, name string) error
}

type MonitoringService interface {
	QueueStats(ctx context.Context) ([]service.QueueStats, error)
}

type Handlers struct {
	pipeline   PipelineService
	manager    QueueService
	monitoring MonitoringService
}

func NewHandlers(pipeline PipelineService, manager QueueService, monitoring MonitoringService) *Handlers {
	return &Handlers{
		pipeline:   pipeline,
		manager:    manager,
		monitoring: monitoring,
	}
}

func (h *Handlers) RegisterVideo() http.HandlerFunc {
	type request struct {
		Title        string `json:"title"`
		OriginalPath string `json:"original_path"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		video, err := h.pipeline.RegisterVideo(r.Context(), req.Title, req.OriginalPath)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, video)
	}
}

func (h *Handlers) Process() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := service.DefaultProcessingOptions()
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		jobs, err := h.pipeline.EnqueueVideo(r.Context(), r.PathValue("id"), opts)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
	}
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.pipeline.GetStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.pipeline.CancelVideo(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.manager.CancelJob(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) RetryJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.manager.RetryJob(r.Context(), r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) QueueStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.monitoring.QueueStats(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queues": stats})
	}
}

func (h *Handlers) PauseQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.manager.PauseQueue(r.Context(), r.PathValue("name")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) ResumeQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.manager.ResumeQueue(r.Context(), r.PathValue("name")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrVideoNotFound),
		errors.Is(err, service.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidParameters), errors.Is(err, service.ErrInvalidJobState),
		errors.Is(err, service.ErrJobAlreadyQueued):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
