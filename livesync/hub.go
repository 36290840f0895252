// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package livesync

import (
	"log/slog"
	"sync"

	"github.com/Ranidpz/qrinfo-sub000/metrics"
	"github.com/Ranidpz/qrinfo-sub000/models"
)

// subscriberBuffer is the per-subscriber channel depth. A viewer that
// falls this far behind starts losing intermediate updates; only the
// latest state matters to a display, so dropping is correct.
const subscriberBuffer = 8

// Hub fans out config and candidate updates to live viewers, keyed by
// code. Publish never blocks on a slow subscriber.
type Hub struct {
	mu            sync.Mutex
	nextID        int
	configSubs    map[string]map[int]chan *models.QVoteConfig
	candidateSubs map[string]map[int]chan []models.Candidate
	metrics       *metrics.Service
}

func NewHub(ms *metrics.Service) *Hub {
	return &Hub{
		configSubs:    map[string]map[int]chan *models.QVoteConfig{},
		candidateSubs: map[string]map[int]chan []models.Candidate{},
		metrics:       ms,
	}
}

// SubscribeConfig registers a viewer for config updates on a code.
// The cancel func unregisters and closes the channel; once it returns
// no further sends happen.
func (h *Hub) SubscribeConfig(codeID string) (<-chan *models.QVoteConfig, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan *models.QVoteConfig, subscriberBuffer)
	if h.configSubs[codeID] == nil {
		h.configSubs[codeID] = map[int]chan *models.QVoteConfig{}
	}
	h.configSubs[codeID][id] = ch
	h.metrics.AddLiveSubscribers(1)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs := h.configSubs[codeID]; subs != nil {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
				h.metrics.AddLiveSubscribers(-1)
			}
			if len(subs) == 0 {
				delete(h.configSubs, codeID)
			}
		}
	}
	return ch, cancel
}

// SubscribeCandidates registers a viewer for candidate-list updates.
func (h *Hub) SubscribeCandidates(codeID string) (<-chan []models.Candidate, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan []models.Candidate, subscriberBuffer)
	if h.candidateSubs[codeID] == nil {
		h.candidateSubs[codeID] = map[int]chan []models.Candidate{}
	}
	h.candidateSubs[codeID][id] = ch
	h.metrics.AddLiveSubscribers(1)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs := h.candidateSubs[codeID]; subs != nil {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
				h.metrics.AddLiveSubscribers(-1)
			}
			if len(subs) == 0 {
				delete(h.candidateSubs, codeID)
			}
		}
	}
	return ch, cancel
}

// PublishConfig fans a config document out to the code's subscribers.
func (h *Hub) PublishConfig(cfg *models.QVoteConfig) {
	if cfg == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.configSubs[cfg.CodeID] {
		select {
		case ch <- cfg:
		default:
			slog.Debug("dropping config update for slow subscriber", "code_id", cfg.CodeID)
		}
	}
}

// PublishCandidates fans a candidate list out to the code's subscribers.
func (h *Hub) PublishCandidates(codeID string, cands []models.Candidate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.candidateSubs[codeID] {
		select {
		case ch <- cands:
		default:
			slog.Debug("dropping candidate update for slow subscriber", "code_id", codeID)
		}
	}
}
