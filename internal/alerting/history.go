package alerting

import (
	"sync"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

// DefaultHistoryLimit is the number of entries kept per alert
const DefaultHistoryLimit = 100

// HistoryLedger keeps a bounded per-alert log of lifecycle actions.
// When an alert reaches the limit the oldest entry is dropped.
type HistoryLedger struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]model.HistoryEntry
	now     func() time.Time
}

// NewHistoryLedger creates a ledger keeping at most limit entries per alert
func NewHistoryLedger(limit int, now func() time.Time) *HistoryLedger {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if now == nil {
		now = time.Now
	}
	return &HistoryLedger{
		limit:   limit,
		entries: make(map[string][]model.HistoryEntry),
		now:     now,
	}
}

// Record appends an action for alertID
func (h *HistoryLedger) Record(alertID string, action model.HistoryAction, channelID, actorID string) model.HistoryEntry {
	entry := model.HistoryEntry{
		AlertID:   alertID,
		Action:    action,
		Timestamp: h.now(),
		ChannelID: channelID,
		ActorID:   actorID,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.entries[alertID], entry)
	if over := len(list) - h.limit; over > 0 {
		// copy so the dropped prefix can be collected
		list = append([]model.HistoryEntry(nil), list[over:]...)
	}
	h.entries[alertID] = list
	return entry
}

// Get returns the entries of alertID, oldest first
func (h *HistoryLedger) Get(alertID string) []model.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return append([]model.HistoryEntry{}, h.entries[alertID]...)
}

// Count returns how many entries of the given action alertID has
func (h *HistoryLedger) Count(alertID string, action model.HistoryAction) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, e := range h.entries[alertID] {
		if e.Action == action {
			n++
		}
	}
	return n
}
