package cache

import (
	"math/rand"
	"time"
)

// Quality scores a batch of write-path records on [0,1]: the fraction
// carrying both an identifier and a cover image, plus a small bonus for
// substantial descriptions. Used to scale TTLs at write time.
func Quality(n, withIdentifierAndCover int, avgDescriptionLen int) float64 {
	if n == 0 {
		return 0
	}
	score := float64(withIdentifierAndCover) / float64(n)
	if avgDescriptionLen > 200 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// AdjustedTTL applies spec.md §4.4's quality adjustment: doubled above 0.8,
// halved below 0.4, unchanged in between.
func AdjustedTTL(kind Kind, quality float64) time.Duration {
	base := baseTTL[kind]
	switch {
	case quality > 0.8:
		return base * 2
	case quality < 0.4:
		return base / 2
	default:
		return base
	}
}

// fuzz scales d into the range (d, d*f), spreading expirations so a burst of
// writes at the same instant doesn't also expire in the same instant.
func fuzz(d time.Duration, f float64) time.Duration {
	if f < 1.0 {
		f += 1.0
	}
	factor := 1.0 + rand.Float64()*(f-1.0)
	return time.Duration(float64(d) * factor)
}
