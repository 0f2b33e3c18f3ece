// Package dataset implements the bounded, replayable example store the
// interactive-ML facade trains from: a fixed-capacity collection of
// (feature, label) pairs with a selectable eviction policy and random
// full-dataset sampling.
package dataset

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/monkeyw/imlengine/internal/mlp"
)

// ForgetMode selects the eviction policy applied when Add is called at
// capacity with replay enabled.
type ForgetMode int

const (
	// FIFO removes the oldest example (index 0).
	FIFO ForgetMode = iota
	// RandomEqual draws an index uniformly at random.
	RandomEqual
	// RandomOlder weights each index by its age and draws proportionally;
	// falls back to uniform when every example shares the same age.
	RandomOlder
)

func (f ForgetMode) String() string {
	switch f {
	case FIFO:
		return "fifo"
	case RandomEqual:
		return "random_equal"
	case RandomOlder:
		return "random_older"
	default:
		return fmt.Sprintf("forget_mode(%d)", int(f))
	}
}

// Dataset is a bounded store of (feature, label) pairs with a
// monotonically increasing insertion timestamp per example. It is safe
// for concurrent use: every method locks an internal RWMutex, so callers
// never need to bring their own lock around a *Dataset.
type Dataset[F mlp.FloatType] struct {
	mu sync.RWMutex

	features   [][]F
	labels     [][]F
	timestamps []int64

	maxExamples   int
	replayEnabled bool
	forgetMode    ForgetMode
	nextTimestamp int64

	rng *rand.Rand
}

// New creates an empty dataset bounded at maxExamples, with replay and a
// forget mode. rng drives shuffles and eviction draws.
func New[F mlp.FloatType](maxExamples int, replayEnabled bool, forgetMode ForgetMode, rng *rand.Rand) *Dataset[F] {
	return &Dataset[F]{
		maxExamples:   maxExamples,
		replayEnabled: replayEnabled,
		forgetMode:    forgetMode,
		rng:           rng,
	}
}

// Size returns the current example count.
func (d *Dataset[F]) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.features)
}

// Add appends (feature, label) to the dataset. It rejects mismatched
// widths with mlp.ErrShapeMismatch. At capacity, it evicts per the
// configured forget mode when replay is enabled, or rejects with
// mlp.ErrCapacityExceeded when replay is disabled.
func (d *Dataset[F]) Add(feature, label []F) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.features)
	if n > 0 {
		if len(feature) != len(d.features[0]) {
			return fmt.Errorf("%w: feature width %d, dataset width %d", mlp.ErrShapeMismatch, len(feature), len(d.features[0]))
		}
		if len(label) != len(d.labels[0]) {
			return fmt.Errorf("%w: label width %d, dataset width %d", mlp.ErrShapeMismatch, len(label), len(d.labels[0]))
		}
	}

	if n == d.maxExamples {
		if !d.replayEnabled {
			return mlp.ErrCapacityExceeded
		}
		d.evictLocked()
	}

	featureCopy := append([]F(nil), feature...)
	labelCopy := append([]F(nil), label...)
	d.features = append(d.features, featureCopy)
	d.labels = append(d.labels, labelCopy)
	d.timestamps = append(d.timestamps, d.nextTimestamp)
	d.nextTimestamp++
	return nil
}

// evictLocked removes one example per the configured forget mode. Caller
// must hold d.mu for writing.
func (d *Dataset[F]) evictLocked() {
	n := len(d.features)
	if n == 0 {
		return
	}
	var idx int
	switch d.forgetMode {
	case FIFO:
		idx = 0
	case RandomEqual:
		idx = d.rng.IntN(n)
	case RandomOlder:
		idx = d.randomOlderIndexLocked()
	default:
		idx = 0
	}
	d.removeAtLocked(idx)
}

// randomOlderIndexLocked weights each index by age = nextTimestamp -
// timestamp_i and draws with probability proportional to age. Falls back
// to uniform when the total weight is zero (every example shares the
// current timestamp). With n==1 the draw degenerates to index 0 regardless
// of weight.
func (d *Dataset[F]) randomOlderIndexLocked() int {
	n := len(d.timestamps)
	var totalWeight int64
	for _, ts := range d.timestamps {
		totalWeight += d.nextTimestamp - ts
	}
	if totalWeight <= 0 {
		return d.rng.IntN(n)
	}
	r := d.rng.Int64N(totalWeight)
	var cum int64
	for i, ts := range d.timestamps {
		cum += d.nextTimestamp - ts
		if r < cum {
			return i
		}
	}
	return n - 1
}

// removeAtLocked deletes the example at idx, preserving order. Caller must
// hold d.mu for writing.
func (d *Dataset[F]) removeAtLocked(idx int) {
	d.features = append(d.features[:idx], d.features[idx+1:]...)
	d.labels = append(d.labels[:idx], d.labels[idx+1:]...)
	d.timestamps = append(d.timestamps[:idx], d.timestamps[idx+1:]...)
}

// Features returns a copy of every stored feature vector. When withBias is
// set, 1.0 is appended to each returned vector.
func (d *Dataset[F]) Features(withBias bool) [][]F {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]F, len(d.features))
	for i, f := range d.features {
		if withBias {
			v := make([]F, len(f)+1)
			copy(v, f)
			v[len(f)] = 1
			out[i] = v
		} else {
			out[i] = append([]F(nil), f...)
		}
	}
	return out
}

// Labels returns a copy of every stored label vector.
func (d *Dataset[F]) Labels() [][]F {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([][]F, len(d.labels))
	for i, l := range d.labels {
		out[i] = append([]F(nil), l...)
	}
	return out
}

// Sample returns (features, labels). When replay is enabled, the entire
// set is returned in a freshly shuffled order (with bias appended as
// requested); when disabled, the underlying vectors are returned in
// insertion order.
func (d *Dataset[F]) Sample(withBias bool) ([][]F, [][]F) {
	// Write lock: the shuffle advances the shared rng.
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.features)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if d.replayEnabled {
		d.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	features := make([][]F, n)
	labels := make([][]F, n)
	for i, idx := range order {
		f := d.features[idx]
		if withBias {
			v := make([]F, len(f)+1)
			copy(v, f)
			v[len(f)] = 1
			features[i] = v
		} else {
			features[i] = append([]F(nil), f...)
		}
		labels[i] = append([]F(nil), d.labels[idx]...)
	}
	return features, labels
}

// Clear empties the dataset and resets the timestamp counter.
func (d *Dataset[F]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.features = nil
	d.labels = nil
	d.timestamps = nil
	d.nextTimestamp = 0
}

// SetMaxExamples changes the capacity, truncating by repeated eviction
// (replay enabled) or by plain right-truncation (replay disabled) if the
// new cap is below the current size.
func (d *Dataset[F]) SetMaxExamples(m int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxExamples = m
	for len(d.features) > m {
		if d.replayEnabled {
			d.evictLocked()
		} else {
			last := len(d.features) - 1
			d.removeAtLocked(last)
		}
	}
}

// SetReplayEnabled toggles replay.
func (d *Dataset[F]) SetReplayEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replayEnabled = enabled
}

// SetForgetMode changes the eviction policy.
func (d *Dataset[F]) SetForgetMode(mode ForgetMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forgetMode = mode
}

// MaxExamples returns the configured capacity.
func (d *Dataset[F]) MaxExamples() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxExamples
}

// ReplayEnabled reports whether replay is enabled.
func (d *Dataset[F]) ReplayEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.replayEnabled
}

// ForgetModeValue returns the configured eviction policy.
func (d *Dataset[F]) ForgetModeValue() ForgetMode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.forgetMode
}

// NextTimestamp returns the next timestamp that would be assigned.
func (d *Dataset[F]) NextTimestamp() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nextTimestamp
}
