package pma

import (
	"math"
	"sort"
)

const (
	negInf int64 = math.MinInt64
	posInf int64 = math.MaxInt64
)

// SeparatorIndex is the abstract contract of C4: map a query key to a
// segment id and keep one separator per segment in sync with the
// sparse array. spec.md 4.4 allows several concrete realizations
// (B+-tree-like, ART-style, implicit comparison); comparisonIndex below
// is the one this repository ships (see DESIGN.md's Open Question 1).
type SeparatorIndex interface {
	Find(k int64) int
	FindFirst(k int64) int
	FindLast(k int64) int
	SetSeparator(i int, key int64)
	Rebuild(n int)
}

// comparisonIndex is a flat, sorted slice of per-segment separators
// searched with sort.Search. No ecosystem package improves on the
// standard library for binary search over a sorted slice of fixed-width
// integers (see DESIGN.md).
type comparisonIndex struct {
	sep []int64
}

func newComparisonIndex(n int) *comparisonIndex {
	c := &comparisonIndex{}
	c.Rebuild(n)
	return c
}

// Rebuild reinitializes the index for n segments, all carrying the
// lower sentinel (an all-empty array is valid: segment 0's separator is
// the lower sentinel per spec.md 3's Separator invariant).
func (c *comparisonIndex) Rebuild(n int) {
	c.sep = make([]int64, n)
	for i := range c.sep {
		c.sep[i] = negInf
	}
}

func (c *comparisonIndex) SetSeparator(i int, key int64) { c.sep[i] = key }

// Find returns the unique i such that separator[i] <= k < separator[i+1]
// (with separator[n] = +inf).
func (c *comparisonIndex) Find(k int64) int {
	n := len(c.sep)
	i := sort.Search(n, func(i int) bool { return c.sep[i] > k })
	if i == 0 {
		return 0
	}
	return i - 1
}

// FindFirst returns the smallest i with separator[i] >= k, clipped to
// the last segment if none.
func (c *comparisonIndex) FindFirst(k int64) int {
	n := len(c.sep)
	i := sort.Search(n, func(i int) bool { return c.sep[i] >= k })
	if i == n {
		return n - 1
	}
	return i
}

// FindLast returns the largest i with separator[i] <= k, clipped to 0
// if none.
func (c *comparisonIndex) FindLast(k int64) int {
	n := len(c.sep)
	i := sort.Search(n, func(i int) bool { return c.sep[i] > k })
	if i == 0 {
		return 0
	}
	return i - 1
}
