package util

// Min: returns the smaller of two integers.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// MaxInt64: returns the larger of two int64 values.
func MaxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// CeilDiv: integer division rounded up. Used for paging math where a partial
// page still costs a full request.
func CeilDiv(n, per int) int {
	if per <= 0 {
		return 0
	}
	return (n + per - 1) / per
}
