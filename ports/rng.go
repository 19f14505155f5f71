package ports

import (
	"math/rand"
)

// RNGFactory provides seeded random number generation for deterministic
// replications. Every stochastic operation receives its own generator
// instance; no ambient or shared generator state survives between calls.
type RNGFactory interface {
	// Replication creates the generator for replication k of a run.
	// The stream depends only on baseSeed and k, never on execution order
	// or worker count.
	Replication(baseSeed int64, k int) *rand.Rand

	// Fold creates the generator used to realize the trend injector of
	// fold i. Fold and replication seed ranges must not collide.
	Fold(baseSeed int64, fold int) *rand.Rand
}

// OffsetRNGFactory derives streams by deterministic seed offsets, the scheme
// under which an entire experiment reproduces from one integer.
type OffsetRNGFactory struct{}

// Replication seeds from baseSeed + k.
func (OffsetRNGFactory) Replication(baseSeed int64, k int) *rand.Rand {
	return rand.New(rand.NewSource(baseSeed + int64(k)))
}

// Fold seeds from baseSeed - fold - 1 so fold streams never alias
// replication streams, which count upward from baseSeed.
func (OffsetRNGFactory) Fold(baseSeed int64, fold int) *rand.Rand {
	return rand.New(rand.NewSource(baseSeed - int64(fold) - 1))
}
