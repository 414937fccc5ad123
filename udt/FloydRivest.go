package udt

import (
	"math"
	"sort"
)

// Adapted from the Floyd-Rivest partial-sort algorithm (Floyd & Rivest,
// 1975), as applied to Go's sort.Interface by github.com/furstenheim/nth_element.

// floydRivestSmallPartition is the interval size below which
// FloydRivestSelect falls back to the plain partition scheme instead of the
// two-pass narrowing estimate (the narrowing pass only pays for itself on
// large ranges).
const floydRivestSmallPartition = 600

// bucketRange is an inclusive [left, right] index range awaiting a
// Floyd-Rivest partition in FloydRivestBuckets' work stack.
type bucketRange struct {
	left, right int
}

// FloydRivestBuckets sorts a slice into buckets of the given size: every
// element in one bucket is smaller than every element in the next, but
// elements within a bucket are left in arbitrary order. Element i*bucketSize
// ends up holding what would be the (i*bucketSize)'th smallest value overall.
//
//	FloydRivestBuckets(sort.Interface(s), 5)
//	// s is now sorted into buckets of size 5:
//	// max(s[0:5]) < min(s[5:10]); max(s[10:15]) < min(s[15:20]); ...
func FloydRivestBuckets(slice sort.Interface, bucketSize int) {
	pending := []bucketRange{{left: 0, right: slice.Len() - 1}}
	for len(pending) > 0 {
		r := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		left, right := r.left, r.right
		if right-left <= bucketSize {
			continue
		}

		// + bucketSize - 1 is to do math ceil
		mid := left + ((right-left+bucketSize-1)/bucketSize/2)*bucketSize
		FloydRivestSelect(slice, mid, left, right)
		pending = append(pending, bucketRange{left, mid}, bucketRange{mid, right})
	}
}

// FloydRivestSelect partially sorts array[left:right+1] in place so that
// array[k] holds the element that would occupy position k were the whole
// range fully sorted, with every smaller element to its left and every
// larger element to its right.
func FloydRivestSelect(array sort.Interface, k, left, right int) {
	length := array.Len()
	for right > left {
		if right-left > floydRivestSmallPartition {
			// narrow [left, right] to a smaller range known to still
			// contain the k'th element, using the probabilistic sample-size
			// estimate from the original Floyd-Rivest paper.
			var n = float64(right - left + 1)
			var kf = float64(k)
			var m = float64(k - left + 1)
			var z = math.Log(n)
			var s = 0.5 * math.Exp(2*z/3)
			sign := float64(1)
			if m-n/2 < 0 {
				sign = -1
			}
			var sd = 0.5 * math.Sqrt(z*s*(n-s)/n) * sign
			var newLeft = intMax(left, int(math.Floor(kf-m*s/n+sd)))
			var newRight = intMin(right, int(math.Floor(kf+(n-m)*s/n+sd)))
			FloydRivestSelect(array, k, newLeft, newRight)
		}

		var i = left
		var j = right
		array.Swap(left, k)
		// in the original algorithm array[k] is stored to a value. To use golangs sort interface we need to keep track of the changes for the index
		// we define it as right because in the first iteration of for i<j it will be changed
		pointIndex := right
		if array.Less(left, right) {
			array.Swap(left, right)
			pointIndex = left
		}

		for i < j {
			// pointIndex is swapped only once in the first iteration. Later it will either be bigger (if left) or smaller (if right)
			array.Swap(i, j)
			i++
			j--
			for i < length && array.Less(i, pointIndex) {
				i++
			}
			for j >= 0 && array.Less(pointIndex, j) {
				j--
			}
		}
		// All equal points
		if !array.Less(left, pointIndex) && !array.Less(pointIndex, left) {
			array.Swap(left, j)
		} else {
			j++
			array.Swap(j, right)
		}
		if j <= k {
			left = j + 1
		}
		if k <= j {
			right = j - 1
		}
	}
}

func intMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func intMax(a, b int) int {
	if a > b {
		return a
	}
	return b
}
