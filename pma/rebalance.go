package pma

import (
	"math"
	"sort"
)

// elem is a single (key, value) pair moving through the rebalancer's
// gather/redistribute pipeline.
type elem struct {
	k, v int64
}

// gather collects the occupied elements of segments [lo, hi) in
// left-to-right, parity-respecting order, splicing pending into its
// sorted position if non-nil. This plays the role of spec.md 4.3's
// "compact into a contiguous run" step; we use an O(window) auxiliary
// slice rather than the two-buffer O(S) scheme of the C++ original,
// trading a constant-factor memory saving for a much simpler and more
// obviously correct implementation (see DESIGN.md Open Questions).
func gather(s *storage, lo, hi int, pending *elem) []elem {
	buf := make([]elem, 0, (hi-lo)*s.segCap+1)
	for i := lo; i < hi; i++ {
		l, h := s.occupiedGlobalRange(i)
		for t := l; t < h; t++ {
			buf = append(buf, elem{s.keys[t], s.values[t]})
		}
	}
	if pending != nil {
		pos := sort.Search(len(buf), func(i int) bool { return buf[i].k >= pending.k })
		buf = append(buf, elem{})
		copy(buf[pos+1:], buf[pos:])
		buf[pos] = *pending
	}
	return buf
}

// computeTargets splits n elements across k segments: the first n%k
// segments get ceil(n/k), the rest floor(n/k), per spec.md 4.3/4.5.
func computeTargets(n, k int) []int {
	targets := make([]int, k)
	base := n / k
	rem := n % k
	for j := range targets {
		if j < rem {
			targets[j] = base + 1
		} else {
			targets[j] = base
		}
	}
	return targets
}

// redistribute writes buf into dst's segments [lo, lo+len(targets)) per
// the target sizes, respecting the parity convention, then refreshes
// separators over that same range (invariant S).
func redistribute(dst *storage, idx *comparisonIndex, lo int, targets []int, buf []elem) {
	pos := 0
	for j, t := range targets {
		segIdx := lo + j
		base := segIdx * dst.segCap
		if isEven(segIdx) {
			start := dst.segCap - t
			for x := 0; x < t; x++ {
				dst.keys[base+start+x] = buf[pos+x].k
				dst.values[base+start+x] = buf[pos+x].v
			}
		} else {
			for x := 0; x < t; x++ {
				dst.keys[base+x] = buf[pos+x].k
				dst.values[base+x] = buf[pos+x].v
			}
		}
		dst.size[segIdx] = int32(t)
		pos += t
	}

	end := lo + len(targets)
	next := posInf
	if end < len(idx.sep) {
		next = idx.sep[end]
	}
	for j := len(targets) - 1; j >= 0; j-- {
		segIdx := lo + j
		if dst.size[segIdx] > 0 {
			k, _ := dst.segMin(segIdx)
			idx.sep[segIdx] = k
			next = k
		} else {
			idx.sep[segIdx] = next
		}
	}
	if lo == 0 && idx.sep[0] == posInf {
		idx.sep[0] = negInf
	}
}

// windowSearch walks the calibrator tree outward from segIdx (spec.md
// 4.3), looking for the smallest window whose density would land within
// bounds once the pending insert (or the already-applied delete) is
// accounted for. found=false means no window up to the root qualifies
// and a resize is required.
func (e *Engine) windowSearch(segIdx int, pendingInsert bool) (winStart, winSize, height int, found bool) {
	H := e.calibrator.height
	for h := 1; h <= H; h++ {
		ws := 1 << uint(h-1)
		wStart := (segIdx / ws) * ws
		total := 0
		for j := wStart; j < wStart+ws; j++ {
			total += int(e.storage.size[j])
		}
		if pendingInsert {
			total++
		}
		density := float64(total) / float64(ws*e.storage.segCap)
		rho, theta := e.calibrator.at(h)
		if pendingInsert {
			if density <= theta {
				return wStart, ws, h, true
			}
		} else if density >= rho {
			return wStart, ws, h, true
		}
	}
	return 0, 0, 0, false
}

// spread redistributes a window's elements evenly across its segments
// in place, optionally splicing in a pending insert.
func (e *Engine) spread(winStart, winSize int, pending *elem) {
	buf := gather(e.storage, winStart, winStart+winSize, pending)
	targets := computeTargets(len(buf), winSize)
	redistribute(e.storage, e.idx, winStart, targets, buf)
}

// rebuildFromSorted allocates a fresh storage/index pair of the given
// segment count and redistributes buf (already sorted by key) across
// it, then swaps it in as the engine's live state and refreshes the
// calibrator for the new height.
func (e *Engine) rebuildFromSorted(buf []elem, numSegments int) {
	if numSegments < 1 {
		numSegments = 1
	}
	ns := newStorage(e.storage.segCap, numSegments)
	ni := newComparisonIndex(numSegments)
	targets := computeTargets(len(buf), numSegments)
	redistribute(ns, ni, 0, targets, buf)
	e.storage = ns
	e.idx = ni
	e.calibrator.rebuild(log2(numSegments) + 1)
}

// resizeGrow doubles capacity (insert-triggered resize).
func (e *Engine) resizeGrow(pending *elem) {
	buf := gather(e.storage, 0, e.storage.numSegments, pending)
	e.rebuildFromSorted(buf, e.storage.numSegments*2)
}

// resizeShrink halves capacity, never below one segment (delete-triggered resize).
func (e *Engine) resizeShrink() {
	buf := gather(e.storage, 0, e.storage.numSegments, nil)
	newNumSegments := e.storage.numSegments / 2
	e.rebuildFromSorted(buf, newNumSegments)
}

// rebalanceInsert is invoked when segIdx has no spare room for (k, v).
func (e *Engine) rebalanceInsert(segIdx int, k, v int64) {
	pending := &elem{k, v}
	winStart, winSize, _, found := e.windowSearch(segIdx, true)
	if found {
		e.spread(winStart, winSize, pending)
		return
	}
	e.resizeGrow(pending)
}

// rebalanceDelete is invoked when segIdx has dropped below its minimum
// occupancy (the delete has already been applied to storage).
func (e *Engine) rebalanceDelete(segIdx int) {
	if e.storage.numSegments == 1 {
		// A single-segment array is allowed to hold 0..S elements
		// (spec.md 4.3's numeric edges); no rebalance is needed.
		return
	}
	winStart, winSize, _, found := e.windowSearch(segIdx, false)
	if found {
		e.spread(winStart, winSize, nil)
		return
	}
	e.resizeShrink()
}

// minSegmentSize is the floor below which a delete triggers rebalancing:
// max(ceil(rho(1)*S), 1), per spec.md 4.3's numeric edges.
func (e *Engine) minSegmentSize() int {
	rho, _ := e.calibrator.at(1)
	t := int(math.Ceil(rho * float64(e.storage.segCap)))
	if t < 1 {
		t = 1
	}
	return t
}

func log2(n int) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
