package wgtrain

import "github.com/chewxy/math32"

// padRow truncates or right-pads row with zeros to exactly n values. The
// result never aliases row.
func padRow(row []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, row)
	return out
}

// sanitize replaces NaN and ±Inf with 0 in place.
func sanitize(v []float32) []float32 {
	for i, x := range v {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			v[i] = 0
		}
	}
	return v
}

// ArgMax returns the index of the maximum value in the slice.
// If the slice is empty, it returns -1.
func ArgMax(arr []float32) int {
	if len(arr) == 0 {
		return -1
	}
	maxIdx := 0
	for i := 1; i < len(arr); i++ {
		if arr[i] > arr[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}
