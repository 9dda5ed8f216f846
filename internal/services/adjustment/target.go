package adjustment

import (
	"errors"
	"fmt"
	"math"

	"PriceShaper/internal/domain/models"
)

var (
	// ErrMalformedAdjustment marks a record that can never be applied
	// (bad window, non-finite magnitude, unknown kind).
	ErrMalformedAdjustment = errors.New("adjustment: malformed")
	// ErrInvalidAdjustment marks a record whose resolved target is unusable
	// for the given anchor.
	ErrInvalidAdjustment = errors.New("adjustment: invalid target")
)

// Target resolves the price an adjustment drives toward from anchor.
func Target(a models.Adjustment, anchor float64) (float64, error) {
	if !finite(anchor) || anchor <= 0 {
		return 0, fmt.Errorf("%w: anchor %v", ErrInvalidAdjustment, anchor)
	}
	if !finite(a.Magnitude) {
		return 0, fmt.Errorf("%w: magnitude %v", ErrMalformedAdjustment, a.Magnitude)
	}
	var p float64
	switch a.Kind {
	case models.KindPercent:
		p = anchor * (1 + a.Magnitude/100)
	case models.KindAbsolute:
		p = anchor + a.Magnitude
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrMalformedAdjustment, a.Kind)
	}
	if !finite(p) || p <= 0 {
		return 0, fmt.Errorf("%w: target %v", ErrInvalidAdjustment, p)
	}
	return p, nil
}

// Validate reports whether a record is structurally usable. It does not
// look at the anchor, which may only be known once a raw price is seen.
func Validate(a models.Adjustment) error {
	if a.EndsAt <= a.StartAt {
		return fmt.Errorf("%w: ends_at %d <= start_at %d", ErrMalformedAdjustment, a.EndsAt, a.StartAt)
	}
	if !finite(a.Magnitude) {
		return fmt.Errorf("%w: magnitude %v", ErrMalformedAdjustment, a.Magnitude)
	}
	if a.Kind != models.KindPercent && a.Kind != models.KindAbsolute {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedAdjustment, a.Kind)
	}
	if a.AnchorPrice != nil && (!finite(*a.AnchorPrice) || *a.AnchorPrice <= 0) {
		return fmt.Errorf("%w: anchor snapshot %v", ErrMalformedAdjustment, *a.AnchorPrice)
	}
	return nil
}

// Governing picks the adjustment whose window contains at for instrument.
// Malformed records are skipped; ties go to the most recently started one,
// then to the later entry in adjs.
func Governing(adjs []models.Adjustment, instrument string, at int64) (models.Adjustment, bool) {
	var (
		best  models.Adjustment
		found bool
	)
	for _, a := range adjs {
		if instrument != "" && a.InstrumentID != "" && !Matches(a.InstrumentID, instrument) {
			continue
		}
		if at < a.StartAt || at > a.EndsAt {
			continue
		}
		if Validate(a) != nil {
			continue
		}
		if !found || a.StartAt >= best.StartAt {
			best, found = a, true
		}
	}
	return best, found
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
