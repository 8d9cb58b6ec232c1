package service

import (
	"sync"

	"capteur/internal/logger"
	"capteur/internal/models"
)

const subscriberBuffer = 16

// Hub broadcasts accepted measures. A subscriber that falls behind loses
// messages instead of blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan models.MeasureRecord]struct{}
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{subs: make(map[chan models.MeasureRecord]struct{}), log: log}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan models.MeasureRecord, func()) {
	ch := make(chan models.MeasureRecord, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(rec models.MeasureRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- rec:
		default:
			h.log.Debugw("hub_subscriber_slow", "capteur", rec.CapteurID)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
