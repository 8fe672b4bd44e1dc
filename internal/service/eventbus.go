package service

import (
	"sync"
)

// Event is a processing notification for one video.
type Event struct {
	Type     string  `json:"type"` // "job" or "video"
	VideoID  string  `json:"video_id"`
	JobID    string  `json:"job_id,omitempty"`
	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
}

type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(videoID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[videoID] = append(eb.subscribers[videoID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(videoID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[videoID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[videoID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[videoID]) == 0 {
		delete(eb.subscribers, videoID)
	}
}

func (eb *EventBus) Publish(videoID string, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[videoID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
