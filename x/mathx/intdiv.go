package mathx

// RoundDiv returns a/b rounded half up; zero when b is zero.
func RoundDiv[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

// ScalePercent maps pct (0..100, clamped) onto 0..full with rounding.
func ScalePercent(pct uint8, full uint32) uint32 {
	return uint32(RoundDiv(uint64(Min(pct, 100))*uint64(full), 100))
}
