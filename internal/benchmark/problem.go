package benchmark

import (
	"fmt"
	"sort"
)

// Problem is a single MATH benchmark problem.
type Problem struct {
	ID       string `json:"id"`
	Problem  string `json:"problem"`
	Solution string `json:"solution,omitempty"`
	Answer   string `json:"answer"`
	Level    int    `json:"level"`
	Type     string `json:"type"`
}

// Dataset holds a loaded set of problems.
type Dataset struct {
	Problems []Problem
}

// Statistics summarizes a dataset by level and problem type.
type Statistics struct {
	Total   int            `json:"total"`
	ByLevel map[int]int    `json:"by_level"`
	ByType  map[string]int `json:"by_type"`
}

// FilterByLevel keeps problems whose difficulty level is in levels.
func (d *Dataset) FilterByLevel(levels ...int) *Dataset {
	if d == nil {
		return nil
	}
	if len(levels) == 0 {
		return &Dataset{Problems: append([]Problem(nil), d.Problems...)}
	}

	want := make(map[int]struct{}, len(levels))
	for _, lv := range levels {
		want[lv] = struct{}{}
	}

	out := make([]Problem, 0, len(d.Problems))
	for _, p := range d.Problems {
		if _, ok := want[p.Level]; ok {
			out = append(out, p)
		}
	}
	return &Dataset{Problems: out}
}

// FilterByType keeps problems whose type is in types.
func (d *Dataset) FilterByType(types ...string) *Dataset {
	if d == nil {
		return nil
	}
	if len(types) == 0 {
		return &Dataset{Problems: append([]Problem(nil), d.Problems...)}
	}

	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[normalizeType(t)] = struct{}{}
	}

	out := make([]Problem, 0, len(d.Problems))
	for _, p := range d.Problems {
		if _, ok := want[p.Type]; ok {
			out = append(out, p)
		}
	}
	return &Dataset{Problems: out}
}

// Get returns the problem with the given ID.
func (d *Dataset) Get(id string) (Problem, bool) {
	if d == nil {
		return Problem{}, false
	}
	for _, p := range d.Problems {
		if p.ID == id {
			return p, true
		}
	}
	return Problem{}, false
}

// Statistics counts problems by level and type.
func (d *Dataset) Statistics() Statistics {
	stats := Statistics{
		ByLevel: make(map[int]int),
		ByType:  make(map[string]int),
	}
	if d == nil {
		return stats
	}
	stats.Total = len(d.Problems)
	for _, p := range d.Problems {
		stats.ByLevel[p.Level]++
		stats.ByType[p.Type]++
	}
	return stats
}

// SortedByID returns the problems ordered by ID.
func (d *Dataset) SortedByID() []Problem {
	if d == nil {
		return nil
	}
	out := append([]Problem(nil), d.Problems...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func problemID(i int) string {
	return fmt.Sprintf("math_%05d", i)
}
