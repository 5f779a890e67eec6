package utils

// AnyOf reports whether pred holds for any index in [0, n).
func AnyOf(n int, pred func(i int) bool) bool {
	for i := 0; i < n; i++ {
		if pred(i) {
			return true
		}
	}
	return false
}
