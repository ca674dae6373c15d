package replay

import "github.com/deepqgo/deepq/utils/intutils"

// segmentTree is a flat-array segment tree over a fixed number of
// leaves, padded up to a power of two. Leaves that were never written
// hold the operation's neutral element, so a priority tree never draws
// a slot that holds no transition.
//
// The internal nodes occupy indices [1, size) and the leaves
// [size, 2*size), with node i aggregating nodes 2i and 2i+1.
type segmentTree struct {
	size    int
	nodes   []float64
	op      func(a, b float64) float64
	neutral float64
}

func newSegmentTree(capacity int, op func(a, b float64) float64,
	neutral float64) *segmentTree {
	size := intutils.NextPowOf2(capacity)
	nodes := make([]float64, 2*size)
	for i := range nodes {
		nodes[i] = neutral
	}

	return &segmentTree{
		size:    size,
		nodes:   nodes,
		op:      op,
		neutral: neutral,
	}
}

// set writes value at leaf i and refreshes the aggregates on the path
// to the root in O(log n).
func (s *segmentTree) set(i int, value float64) {
	i += s.size
	s.nodes[i] = value
	for i > 1 {
		i /= 2
		s.nodes[i] = s.op(s.nodes[2*i], s.nodes[2*i+1])
	}
}

// get returns the value at leaf i.
func (s *segmentTree) get(i int) float64 {
	return s.nodes[i+s.size]
}

// reduce applies the tree operation over the leaves in [start, end) in
// O(log n).
func (s *segmentTree) reduce(start, end int) float64 {
	result := s.neutral

	start += s.size
	end += s.size
	for start < end {
		if start&1 == 1 {
			result = s.op(result, s.nodes[start])
			start++
		}
		if end&1 == 1 {
			end--
			result = s.op(result, s.nodes[end])
		}
		start /= 2
		end /= 2
	}
	return result
}

// prefixIndex descends a sum tree to the leaf i with the largest index
// such that the sum of leaves [0, i) is <= prefix. Valid only for
// trees built with addition.
func (s *segmentTree) prefixIndex(prefix float64) int {
	i := 1
	for i < s.size {
		if s.nodes[2*i] > prefix {
			i = 2 * i
		} else {
			prefix -= s.nodes[2*i]
			i = 2*i + 1
		}
	}
	return i - s.size
}
