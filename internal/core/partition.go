package core

import (
	"github.com/standardbeagle/codesearch/internal/debug"
)

// Range is a contiguous run of items [Start, Start+Count).
type Range struct {
	Start int
	Count int
}

// End returns the index one past the last item.
func (r Range) End() int {
	return r.Start + r.Count
}

// Partition splits weighted items into exactly `partitions` contiguous
// ranges whose summed weights are as even as a greedy walk can make them.
// Items keep their order, every item lands in exactly one range, and
// trailing ranges may be empty when there are fewer items than partitions.
//
// The walk places the k-th cut at whichever item boundary is closest to
// k*total/partitions. Zero weights are allowed.
func Partition(weights []int64, partitions int) []Range {
	if partitions <= 0 {
		partitions = 1
	}

	var total int64
	for _, w := range weights {
		total += w
	}

	p := int64(partitions)
	boundary := func(k int) int64 {
		kk := int64(k)
		return total/p*kk + total%p*kk/p
	}

	ranges := make([]Range, 0, partitions)
	start := 0
	var sum int64
	for i, w := range weights {
		closeAfter := false
		for len(ranges) < partitions-1 {
			b := boundary(len(ranges) + 1)
			if sum+w <= b {
				break
			}
			// Cut before item i if that lands closer to the target.
			if sum+w-b > b-sum {
				ranges = append(ranges, Range{Start: start, Count: i - start})
				start = i
				continue
			}
			closeAfter = true
			break
		}
		sum += w
		if closeAfter {
			ranges = append(ranges, Range{Start: start, Count: i + 1 - start})
			start = i + 1
		}
	}

	for len(ranges) < partitions {
		ranges = append(ranges, Range{Start: start, Count: len(weights) - start})
		start = len(weights)
	}
	return ranges
}

// PieceWeights returns each piece's byte length as a partition weight.
func PieceWeights(pieces []ContentPiece) []int64 {
	weights := make([]int64, len(pieces))
	for i, p := range pieces {
		weights[i] = int64(p.Length)
	}
	return weights
}

// PartitionPieces splits pieces into byte-balanced ranges.
func PartitionPieces(pieces []ContentPiece, partitions int) []Range {
	return Partition(PieceWeights(pieces), partitions)
}

// RangeWeights sums the weights inside each range.
func RangeWeights(weights []int64, ranges []Range) []int64 {
	sums := make([]int64, len(ranges))
	for i, r := range ranges {
		for _, w := range weights[r.Start:r.End()] {
			sums[i] += w
		}
	}
	return sums
}

// LogPiecePartitions writes the per-partition piece counts and byte totals
// to the index debug log.
func LogPiecePartitions(pieces []ContentPiece, ranges []Range) {
	if !debug.IsDebugEnabled() {
		return
	}
	sums := RangeWeights(PieceWeights(pieces), ranges)
	for i, r := range ranges {
		debug.LogIndex("partition %d: %d pieces, %d bytes\n", i, r.Count, sums[i])
	}
}
