package adjustment

import "strings"

// Normalize reduces an instrument identifier to a comparable key:
// exchange/type prefixes ("BINANCE:", "crypto:") are dropped, separators
// ('/', '-', '_', '.', spaces) removed, and the result upper-cased.
//
//	"BINANCE:BTC/USDT" -> "BTCUSDT"
//	"btc-usdt"         -> "BTCUSDT"
func Normalize(id string) string {
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch r {
		case '/', '-', '_', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Matches reports whether a and b name the same instrument. Shortened and
// fully-qualified forms match when one normalized key contains the other.
func Matches(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}
