package pipeline_test

import (
	"reflect"
	"testing"

	"github.com/voxgate/voxgate/internal/pipeline"
	"github.com/voxgate/voxgate/internal/segment"
)

// countingSegmenter records how often Segment runs.
type countingSegmenter struct {
	calls int
	parts []string
}

func (s *countingSegmenter) Segment(string) []string {
	s.calls++
	return s.parts
}

func TestCollector_EmitsOnPunctuation(t *testing.T) {
	t.Parallel()
	c := pipeline.NewCollector(segment.New())

	if got := c.Put("Hello"); got != nil {
		t.Errorf("Put(Hello) = %q", got)
	}
	if got := c.Put(" there."); got != nil {
		// Boundary char seen, but the buffer holds one incomplete sentence.
		t.Errorf("Put(there.) = %q", got)
	}
	if got := c.Put(" How"); got != nil {
		t.Errorf("Put(How) = %q", got)
	}

	got := c.Put(" are you? ")
	if !reflect.DeepEqual(got, []string{"Hello there."}) {
		t.Errorf("Put(are you?) = %q", got)
	}

	if got := c.Flush(); !reflect.DeepEqual(got, []string{"How are you?"}) {
		t.Errorf("Flush() = %q", got)
	}
}

func TestCollector_MinIntervalTriggersSegmentation(t *testing.T) {
	t.Parallel()
	seg := &countingSegmenter{parts: []string{"all one part"}}
	c := pipeline.NewCollector(seg)

	for i := 0; i < pipeline.DefaultMinCheckInterval-1; i++ {
		c.Put("word ")
	}
	if seg.calls != 0 {
		t.Fatalf("segmenter ran after %d fragments", pipeline.DefaultMinCheckInterval-1)
	}
	c.Put("word ")
	if seg.calls != 1 {
		t.Errorf("segmenter calls = %d, want 1", seg.calls)
	}
}

func TestCollector_EmptyFragmentIgnored(t *testing.T) {
	t.Parallel()
	seg := &countingSegmenter{}
	c := pipeline.NewCollector(seg)

	if got := c.Put(""); got != nil {
		t.Errorf("Put(empty) = %q", got)
	}
	if seg.calls != 0 {
		t.Errorf("segmenter ran for empty fragment")
	}
}

func TestCollector_FlushWhitespaceOnly(t *testing.T) {
	t.Parallel()
	c := pipeline.NewCollector(segment.New())
	c.Put("   ")
	if got := c.Flush(); got != nil {
		t.Errorf("Flush() = %q, want nil", got)
	}
}

func TestCollector_FlushResets(t *testing.T) {
	t.Parallel()
	c := pipeline.NewCollector(segment.New())
	c.Put("tail without boundary")
	if got := c.Flush(); len(got) != 1 {
		t.Fatalf("Flush() = %q", got)
	}
	if got := c.Flush(); got != nil {
		t.Errorf("second Flush() = %q, want nil", got)
	}
}
