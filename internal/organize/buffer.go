// Package organize accumulates classified items and turns each batch into
// structured documents via a strategy call and per-group organize calls.
package organize

import (
	"sync"

	"github.com/notedrop/seiri/internal/models"
)

// Buffer is the accumulated-batch queue: ingestion appends, batch
// processing drains. Append and Drain hold the same lock so the two sides
// can never interleave to lose or duplicate items.
type Buffer struct {
	mu    sync.Mutex
	items []models.BatchItem
}

// NewBuffer returns an empty batch buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds one classified item to the pending batch.
func (b *Buffer) Append(item models.BatchItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
}

// Drain removes and returns all pending items atomically.
func (b *Buffer) Drain() []models.BatchItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

// Len reports how many items are pending.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
