package scale

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Comma groups thousands: 311273 -> "311,273".
func Comma(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return humanize.Commaf(v)
}

// Sig2 rounds to two significant digits and groups thousands:
// 31913 -> "32,000", 53 -> "53", 0.5 -> "0.50".
func Sig2(v float64) string {
	return Sig(v, 2)
}

// Sig rounds v to the given number of significant digits. Trailing zeros of
// the significand are kept.
func Sig(v float64, digits int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if digits < 1 {
		digits = 1
	}
	if v == 0 {
		return strconv.FormatFloat(0, 'f', digits-1, 64)
	}

	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	// 'e' formatting does the rounding; the exponent says where the point goes.
	e := strconv.FormatFloat(v, 'e', digits-1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	rounded, _ := strconv.ParseFloat(e, 64)

	decimals := digits - 1 - exp
	if decimals <= 0 {
		return sign + humanize.Comma(int64(rounded))
	}
	s := strconv.FormatFloat(rounded, 'f', decimals, 64)
	whole, frac, _ := strings.Cut(s, ".")
	n, _ := strconv.ParseInt(whole, 10, 64)
	return sign + humanize.Comma(n) + "." + frac
}

// Dollars formats an amount with two significant digits: "$32,000".
func Dollars(v float64) string {
	if v < 0 {
		return "-$" + Sig2(-v)
	}
	return "$" + Sig2(v)
}

// DollarTick formats an axis tick: "$85,000".
func DollarTick(v float64) string {
	return "$" + Comma(v)
}

// Percent formats a fraction as a whole percentage: 0.463 -> "46%".
func Percent(v float64) string {
	if math.IsNaN(v) {
		return "NaN%"
	}
	return strconv.Itoa(int(math.Round(v*100))) + "%"
}

// Year formats a year tick without grouping: 1950 -> "1950".
func Year(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}
