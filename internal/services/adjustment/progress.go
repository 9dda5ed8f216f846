package adjustment

import "math"

// Progress maps now onto the window [startAt, endsAt] and returns the eased
// completion in [0,1]. now is clamped to the window first.
func Progress(now, startAt, endsAt int64) (float64, error) {
	if endsAt <= startAt {
		return 0, ErrMalformedAdjustment
	}
	if now < startAt {
		now = startAt
	}
	if now > endsAt {
		now = endsAt
	}
	r := float64(now-startAt) / float64(endsAt-startAt)
	return easeInOut(r), nil
}

// easeInOut is the symmetric quadratic ease: slow at both ends, fastest at r=0.5.
func easeInOut(r float64) float64 {
	if r < 0.5 {
		return 2 * r * r
	}
	return 1 - math.Pow(-2*r+2, 2)/2
}
