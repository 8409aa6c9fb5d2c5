package pipeline

import "strings"

// batchFillRatio bounds a synthesis batch to a fraction of the TTS context
// size, leaving headroom for the server's own tokenization.
const batchFillRatio = 0.9

// Batcher groups sentences into synthesis batches whose joined length stays
// within the TTS context budget. A single sentence longer than the budget
// still forms its own batch; the TTS server is the final arbiter of oversize
// input.
//
// Batcher is not safe for concurrent use; each stream owns one.
type Batcher struct {
	limit int
	parts []string
	count int
}

// NewBatcher returns a Batcher bounded by the given TTS context size.
func NewBatcher(contextSize int) *Batcher {
	return &Batcher{limit: int(batchFillRatio * float64(contextSize))}
}

// TryAdd appends s to the current batch when it fits. It returns false when
// the batch is full; the caller emits the batch, resets, and retries. An
// empty batch accepts any sentence.
func (b *Batcher) TryAdd(s string) bool {
	if len(b.parts) == 0 {
		b.parts = append(b.parts, s)
		b.count = len(s)
		return true
	}
	if b.count+len(s)+1 > b.limit {
		return false
	}
	b.parts = append(b.parts, s)
	b.count += len(s) + 1
	return true
}

// Text returns the batch joined by single spaces.
func (b *Batcher) Text() string {
	return strings.Join(b.parts, " ")
}

// Len returns the character count of the joined batch.
func (b *Batcher) Len() int {
	return b.count
}

// Empty reports whether the batch holds no sentences.
func (b *Batcher) Empty() bool {
	return len(b.parts) == 0
}

// Reset clears the batch for reuse.
func (b *Batcher) Reset() {
	b.parts = b.parts[:0]
	b.count = 0
}
