package validation

import (
	"fmt"
	"hash/fnv"

	"wyckoff/internal/campaign"
)

// EventFingerprint hashes the content of one detection: pattern type, where
// in the trading range it printed, volume context, confidence and size.
// Campaign state and timestamps are deliberately excluded, so a retransmitted
// identical event always lands on the same fingerprint no matter how far the
// campaign has advanced since the first copy was applied.
func EventFingerprint(e campaign.PatternEvent) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.4f|%s",
		e.Type,
		pricePosition(e, e.Range),
		e.Volume.Level,
		e.Volume.Ratio.Round(4),
		e.Confidence,
		e.RiskPct.Round(4),
	)
	return fmt.Sprintf("%016x", h.Sum64())
}

// cacheKey derives the memoization key for a validation decision. Unlike the
// event fingerprint it also covers the campaign phase and the active
// confidence floor: the verdict depends on both, and a threshold change must
// never resurrect a stale decision.
func cacheKey(c *campaign.Campaign, e campaign.PatternEvent, minConfidence float64) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%.4f", EventFingerprint(e), c.Phase, minConfidence)
	return fmt.Sprintf("%016x", h.Sum64())
}

// pricePosition normalizes the event price into its trading range so the
// fingerprint captures where in the structure the pattern printed rather
// than the absolute price.
func pricePosition(e campaign.PatternEvent, r campaign.TradingRange) string {
	span := r.High.Sub(r.Low)
	if !span.IsPositive() {
		return e.Price.Round(4).String()
	}
	return e.Price.Sub(r.Low).DivRound(span, 4).String()
}
