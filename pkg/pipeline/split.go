package pipeline

import (
	"math/rand"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
)

// SplitData divides data at int(len(data)*ratio). With shuffle set, a copy of
// data is shuffled with seed first; data itself is never reordered.
func SplitData(data []sequence.Sequence, ratio float64, shuffle bool, seed int64) ([]sequence.Sequence, []sequence.Sequence) {
	shuffled := append([]sequence.Sequence(nil), data...)
	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}

	size := int(float64(len(shuffled)) * ratio)
	size = max(0, min(size, len(shuffled)))
	return shuffled[:size:size], shuffled[size:]
}
