package core

import (
	"cmp"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/WaterRocket/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrViewerExists = errors.New("viewer already registered")
	ErrHubFull      = errors.New("hub is full")
	ErrHubClosed    = errors.New("hub is closed")
)

// Hub is a threadsafe in-memory registry of viewers with best-effort fan-out.
// A viewer whose delivery fails is removed and its connection closed; the rest still receive.
type Hub struct {
	// publishMu keeps snapshot+enqueue of one message ahead of the next,
	// so every viewer sees messages in acceptance order.
	publishMu sync.Mutex

	mu       sync.RWMutex
	byID     map[domain.ViewerID]viewerEntry
	byConn   map[ViewerConnection]domain.ViewerID
	limit    int
	closed   bool
	observer HubObserver
}

// NewHub creates an empty hub. limit <= 0 means unlimited; observer may be nil.
func NewHub(limit int, observer HubObserver) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Hub{
		byID:     make(map[domain.ViewerID]viewerEntry),
		byConn:   make(map[ViewerConnection]domain.ViewerID),
		limit:    limit,
		observer: observer,
	}
}

// Register adds a connected viewer. The same id or the same connection may only be registered once.
func (h *Hub) Register(info domain.ViewerInfo, conn ViewerConnection) error {
	h.mu.Lock()
	switch {
	case h.closed:
		h.mu.Unlock()
		return ErrHubClosed
	case h.has(info.ID, conn):
		h.mu.Unlock()
		return ErrViewerExists
	case h.limit > 0 && len(h.byID) >= h.limit:
		h.mu.Unlock()
		return ErrHubFull
	}
	h.byID[info.ID] = viewerEntry{info: info, conn: conn}
	h.byConn[conn] = info.ID
	count := len(h.byID)
	h.mu.Unlock()

	log.Info().Str("module", "core.hub").Str("viewer", string(info.ID)).Str("kind", string(info.Kind)).Int("viewers", count).Msg("viewer registered")
	h.observer.ViewersChanged(count)
	return nil
}

func (h *Hub) has(id domain.ViewerID, conn ViewerConnection) bool {
	if _, ok := h.byID[id]; ok {
		return true
	}
	_, ok := h.byConn[conn]
	return ok
}

// Unregister removes a viewer on explicit disconnect. The adapter keeps ownership of the connection.
func (h *Hub) Unregister(id domain.ViewerID) {
	h.mu.Lock()
	e, ok := h.byID[id]
	if ok {
		delete(h.byID, id)
		delete(h.byConn, e.conn)
	}
	count := len(h.byID)
	h.mu.Unlock()
	if !ok {
		return
	}

	log.Info().Str("module", "core.hub").Str("viewer", string(id)).Int("viewers", count).Msg("viewer unregistered")
	h.observer.ViewersChanged(count)
}

// Broadcast encodes msg once and enqueues it to every registered viewer, the sender included.
func (h *Hub) Broadcast(msg domain.BroadcastMessage) PublishResult {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Error().Str("module", "core.hub").Err(err).Str("channel", string(msg.Channel)).Msg("encode broadcast")
		return PublishResult{}
	}

	h.publishMu.Lock()
	res := h.fanOut(frame)
	if len(res.Dropped) > 0 {
		h.drop(res.Dropped)
	}
	h.publishMu.Unlock()

	log.Debug().Str("module", "core.hub").Str("channel", string(msg.Channel)).Int("delivered", res.Delivered).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	h.observer.Published(msg.Channel, res)
	return res
}

func (h *Hub) fanOut(frame Frame) PublishResult {
	h.mu.RLock()
	snapshot := maps.Clone(h.byID)
	h.mu.RUnlock()

	res := PublishResult{}
	for id, e := range snapshot {
		if err := e.conn.TrySend(frame); err != nil {
			log.Warn().Str("module", "core.hub").Str("viewer", string(id)).Err(err).Msg("delivery failed, dropping viewer")
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.Delivered++
	}
	return res
}

// drop removes failed viewers once the fan-out is done and closes their connections.
func (h *Hub) drop(ids []domain.ViewerID) {
	h.mu.Lock()
	gone := make([]ViewerConnection, 0, len(ids))
	for _, id := range ids {
		if e, ok := h.byID[id]; ok {
			delete(h.byID, id)
			delete(h.byConn, e.conn)
			gone = append(gone, e.conn)
		}
	}
	count := len(h.byID)
	h.mu.Unlock()

	for _, c := range gone {
		c.Close()
	}
	h.observer.ViewersChanged(count)
}

// Count returns the number of registered viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// Accepting reports whether a registration would currently be admitted.
// Adapters use it to refuse before doing expensive handshakes; Register stays authoritative.
func (h *Hub) Accepting() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed && (h.limit <= 0 || len(h.byID) < h.limit)
}

// Snapshot lists registered viewers, oldest first.
func (h *Hub) Snapshot() []domain.ViewerInfo {
	h.mu.RLock()
	out := make([]domain.ViewerInfo, 0, len(h.byID))
	for _, e := range h.byID {
		out = append(out, e.info)
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ViewerInfo) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Close drops and closes every viewer. Later registrations fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	entries := h.byID
	h.byID = make(map[domain.ViewerID]viewerEntry)
	h.byConn = make(map[ViewerConnection]domain.ViewerID)
	h.mu.Unlock()

	for _, e := range entries {
		e.conn.Close()
	}
	log.Info().Str("module", "core.hub").Int("closed", len(entries)).Msg("hub closed")
	h.observer.ViewersChanged(0)
}
