package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mlagae/vidpipe/internal/service"
)

type SSEHandler struct {
	eventBus *service.EventBus
}

func NewSSEHandler(eventBus *service.EventBus) *SSEHandler {
	return &SSEHandler{eventBus: eventBus}
}

// Events streams processing events for one video as SSE JSON payloads.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.PathValue("videoID")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := h.eventBus.Subscribe(videoID)
		defer h.eventBus.Unsubscribe(videoID, ch)

		// Keepalive comments stop intermediaries from closing idle streams.
		keepalive := time.NewTicker(30 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case event, open := <-ch:
				if !open {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				_, _ = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
				flusher.Flush()
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
