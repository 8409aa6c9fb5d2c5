package pipeline

import "strings"

// triggerChars are the characters that prompt a segmentation pass as soon as
// they appear in a fragment.
const triggerChars = ".!?;:\n"

// DefaultMinCheckInterval is how many fragments may accumulate before the
// buffer is segmented even without trigger punctuation.
const DefaultMinCheckInterval = 15

// Segmenter splits text into sentence-like parts; the last part may be
// incomplete. Satisfied by segment.Segmenter.
type Segmenter interface {
	Segment(s string) []string
}

// Collector converts an unbounded stream of text fragments into whole
// sentences. It buffers fragments and runs the segmenter when trigger
// punctuation arrives or enough fragments have accumulated, keeping the
// trailing incomplete sentence buffered.
//
// Collector is not safe for concurrent use; each stream owns one.
type Collector struct {
	seg         Segmenter
	buffer      string
	counter     int
	minInterval int
}

// NewCollector returns a Collector with the default check interval.
func NewCollector(seg Segmenter) *Collector {
	return &Collector{seg: seg, minInterval: DefaultMinCheckInterval}
}

// Put appends fragment to the buffer and returns any sentences completed by
// it. Returns nil when no sentence boundary was found yet.
func (c *Collector) Put(fragment string) []string {
	if fragment == "" {
		return nil
	}

	c.buffer += fragment
	c.counter++

	if strings.ContainsAny(fragment, triggerChars) || c.counter >= c.minInterval {
		return c.processBuffer()
	}
	return nil
}

// Flush returns the buffered remainder as a final sentence, or nil when the
// buffer holds only whitespace. The collector is reset either way.
func (c *Collector) Flush() []string {
	remainder := c.buffer
	c.buffer = ""
	c.counter = 0
	if strings.TrimSpace(remainder) == "" {
		return nil
	}
	return []string{remainder}
}

// processBuffer segments the buffer, emits all complete sentences and keeps
// the incomplete tail.
func (c *Collector) processBuffer() []string {
	c.counter = 0

	parts := c.seg.Segment(c.buffer)
	if len(parts) < 2 {
		return nil
	}

	c.buffer = parts[len(parts)-1]

	complete := parts[:len(parts)-1]
	sentences := make([]string, 0, len(complete))
	for _, s := range complete {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
