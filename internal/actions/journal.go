package actions

import (
	"sync"
	"time"
)

// JournalItem records one action outcome for the state view. Session memory only.
type JournalItem struct {
	Time   time.Time `json:"time"`
	Action Kind      `json:"action"`
	OK     bool      `json:"ok"`
	TxHash string    `json:"txHash,omitempty"`
	CallID string    `json:"callId,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Error  string    `json:"error,omitempty"`
}

const journalSize = 50

// Journal keeps the most recent items.
type Journal struct {
	mu    sync.Mutex
	items []JournalItem
}

func (j *Journal) Add(it JournalItem) {
	j.mu.Lock()
	j.items = append(j.items, it)
	if over := len(j.items) - journalSize; over > 0 {
		j.items = append(j.items[:0:0], j.items[over:]...)
	}
	j.mu.Unlock()
}

// List returns the items newest first.
func (j *Journal) List() []JournalItem {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalItem, len(j.items))
	for i, it := range j.items {
		out[len(j.items)-1-i] = it
	}
	return out
}
