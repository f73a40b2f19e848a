// Package bandwidth implements BandwidthStats (spec §4.9): tracking of
// cache-reference bytes actually placed on the wire against an estimated
// baseline of what an uncached encoder would have sent instead.
package bandwidth

import "fmt"

// Estimator estimates the wire cost a codec would have incurred for a
// rectangle of the given dimensions had it been sent uncached. Pluggable
// per codec; the engine never hardcodes a codec-specific formula.
type Estimator interface {
	EstimateBytes(width, height int) int64
}

// DefaultEstimator assumes a flat ratio of uncached-to-cached bytes for
// every codec. This is a
// documented simplification, not a measured codec model: callers that care
// about exact baselines should supply a codec-specific Estimator instead.
type DefaultEstimator struct {
	// BytesPerPixel is the assumed uncached wire cost per pixel. Spec
	// default: 10:1 versus the 4-byte canonical pixel, i.e. 0.4.
	BytesPerPixel float64
}

// NewDefaultEstimator returns the documented flat 10:1 assumption: for
// every 4 canonical bytes a cache hit saves, assume the uncached encoder
// would have spent 0.4 bytes/pixel on the wire.
func NewDefaultEstimator() DefaultEstimator {
	return DefaultEstimator{BytesPerPixel: 0.4}
}

// EstimateBytes implements Estimator.
func (e DefaultEstimator) EstimateBytes(width, height int) int64 {
	return int64(float64(width*height) * e.BytesPerPixel)
}

// Stats accumulates wire-byte counters for a single cache session (spec
// §4.9). Not safe for concurrent use; owned by the same single-threaded
// session as its ServerCacheEngine/ViewerCacheEngine.
type Stats struct {
	estimator Estimator

	cachedRefBytes int64
	cachedRefCount int64

	cachedInitBytes int64
	cachedInitCount int64

	// alternativeBytes is the running estimate of what an uncached encoder
	// would have sent for every rectangle that instead hit the cache.
	alternativeBytes int64
}

// NewStats creates a Stats using the given Estimator for uncached-baseline
// accounting. A nil estimator falls back to DefaultEstimator.
func NewStats(estimator Estimator) *Stats {
	if estimator == nil {
		estimator = NewDefaultEstimator()
	}
	return &Stats{estimator: estimator}
}

// EstimateBaseline exposes the configured Estimator's output directly, for
// callers (EncoderPolicy) that need a baseline estimate before deciding
// whether a rectangle will actually become a ref or an init.
func (s *Stats) EstimateBaseline(width, height int) int64 {
	return s.estimator.EstimateBytes(width, height)
}

// RecordRef records a cache-hit reference message of wireBytes length for a
// width x height rectangle.
func (s *Stats) RecordRef(width, height int, wireBytes int64) {
	s.cachedRefBytes += wireBytes
	s.cachedRefCount++
	s.alternativeBytes += s.estimator.EstimateBytes(width, height)
}

// RecordInit records a cache-miss init message (payload plus registration
// overhead) of wireBytes length for a width x height rectangle. Init
// messages still count toward bytes saved on every subsequent ref to the
// same content, but the init itself is not a saving.
func (s *Stats) RecordInit(width, height int, wireBytes int64) {
	s.cachedInitBytes += wireBytes
	s.cachedInitCount++
}

// SavedBytes returns the estimated bytes saved by cache hits so far:
// the uncached-baseline estimate for all ref rectangles, minus the bytes
// actually spent on the wire this session -- both refs and the inits that
// registered them.
func (s *Stats) SavedBytes() int64 {
	saved := s.alternativeBytes - (s.cachedRefBytes + s.cachedInitBytes)
	if saved < 0 {
		return 0
	}
	return saved
}

// ReductionPct returns the percentage reduction in wire bytes achieved by
// cache hits relative to the estimated uncached baseline for those same
// rectangles. Returns 0 when no reference baseline has been recorded.
func (s *Stats) ReductionPct() float64 {
	if s.alternativeBytes == 0 {
		return 0
	}
	return 100 * float64(s.SavedBytes()) / float64(s.alternativeBytes)
}

// TotalWireBytes returns the total bytes actually placed on the wire by
// the caching layer: refs plus inits.
func (s *Stats) TotalWireBytes() int64 {
	return s.cachedRefBytes + s.cachedInitBytes
}

// FormatSummary renders a one-line human-readable shutdown summary (spec
// §4.9: "shutdown summary").
func (s *Stats) FormatSummary() string {
	return fmt.Sprintf(
		"cache bandwidth: %d refs (%d bytes), %d inits (%d bytes), saved ~%d bytes (%.1f%% reduction vs uncached baseline)",
		s.cachedRefCount, s.cachedRefBytes,
		s.cachedInitCount, s.cachedInitBytes,
		s.SavedBytes(), s.ReductionPct(),
	)
}
