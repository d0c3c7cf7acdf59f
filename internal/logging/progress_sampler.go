package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the active target or percentage bucket changes. Used when stdout is not
// a terminal and per-tick bar rendering would flood the log.
type ProgressSampler struct {
	bucketSize float64
	lastTarget int
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the completion
// fraction crosses bucket boundaries (default 5%) or when a new target starts.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastTarget: -1, lastBucket: -1}
}

// ShouldLog reports whether a progress event for the given target at the given
// percent (0..100, negative for unknown) should be logged.
func (s *ProgressSampler) ShouldLog(targetIndex int, percent float64) bool {
	if s == nil {
		return true
	}
	emit := false
	if targetIndex != s.lastTarget {
		s.lastTarget = targetIndex
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
