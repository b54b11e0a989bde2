package benchmark

import (
	"fmt"
	"math/rand"
	"sort"
)

// Sample returns n problems drawn without replacement using the given seed.
// When n is zero, negative, or at least the dataset size, all problems are
// returned unchanged.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	if d == nil {
		return nil
	}
	if n <= 0 || n >= len(d.Problems) {
		return &Dataset{Problems: append([]Problem(nil), d.Problems...)}
	}

	rng := rand.New(rand.NewSource(seed))
	shuffled := append([]Problem(nil), d.Problems...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return &Dataset{Problems: shuffled[:n]}
}

// StratifiedSample draws n problems spread across groups keyed by "level" or
// "type". Each group receives n/k picks, with the remainder going to the
// first groups in key order; the combined sample is shuffled before return.
func (d *Dataset) StratifiedSample(n int, by string, seed int64) (*Dataset, error) {
	if d == nil {
		return nil, fmt.Errorf("benchmark: nil dataset")
	}
	if by != "level" && by != "type" {
		return nil, fmt.Errorf("benchmark: stratify by %q (want level or type)", by)
	}
	if n <= 0 || n >= len(d.Problems) {
		return &Dataset{Problems: append([]Problem(nil), d.Problems...)}, nil
	}

	groups := make(map[string][]Problem)
	for _, p := range d.Problems {
		key := p.Type
		if by == "level" {
			key = fmt.Sprintf("%d", p.Level)
		}
		groups[key] = append(groups[key], p)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rng := rand.New(rand.NewSource(seed))
	perGroup := n / len(keys)
	remainder := n % len(keys)

	out := make([]Problem, 0, n)
	for i, key := range keys {
		alloc := perGroup
		if i < remainder {
			alloc++
		}

		group := append([]Problem(nil), groups[key]...)
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		if alloc > len(group) {
			alloc = len(group)
		}
		out = append(out, group[:alloc]...)
	}

	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return &Dataset{Problems: out}, nil
}
