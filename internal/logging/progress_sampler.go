package logging

import (
	"sync"

	"folio/internal/progress"
)

// ProgressSampler thins a document's progress events down to one log line
// per percentage bucket. The first event of each stage and the event that
// completes a stage are always kept. Page workers report concurrently, so
// the sampler is safe for concurrent use.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize float64
	stage      progress.Stage
	lastBucket int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. Non-positive widths fall back to 5.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether event deserves a log line. A nil sampler keeps
// everything.
func (s *ProgressSampler) ShouldLog(event progress.Event) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Stage != s.stage {
		s.stage = event.Stage
		s.lastBucket = -1
	}
	bucket := int(event.Percentage / s.bucketSize)
	if event.Total > 0 && event.Completed >= event.Total {
		return true
	}
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}
