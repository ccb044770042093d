package services

// RefundTier grants Percent of the amount due when at least MinHours remain
// before departure.
type RefundTier struct {
	MinHours float64
	Percent  int
}

// RefundPolicy is ordered from the most generous tier down.
type RefundPolicy struct {
	Tiers []RefundTier
	// MinNoticeHours is the latest a cancellation may be requested.
	MinNoticeHours float64
}

// DefaultRefundPolicy: 24h or more 100%, 12-24h 75%, 5-12h 50%, under 5h nothing.
var DefaultRefundPolicy = RefundPolicy{
	Tiers: []RefundTier{
		{MinHours: 24, Percent: 100},
		{MinHours: 12, Percent: 75},
		{MinHours: 5, Percent: 50},
	},
	MinNoticeHours: 5,
}

// Percent returns the refund percentage for hours remaining to departure.
func (p RefundPolicy) Percent(hours float64) int {
	for _, t := range p.Tiers {
		if hours >= t.MinHours {
			return t.Percent
		}
	}
	return 0
}

// Refund returns the refund in minor units, rounded down, and the percentage.
func (p RefundPolicy) Refund(amountDue int64, hours float64) (int64, int) {
	pct := p.Percent(hours)
	return amountDue * int64(pct) / 100, pct
}

// Accepts reports whether a request may still be filed.
func (p RefundPolicy) Accepts(hours float64) bool {
	return hours >= p.MinNoticeHours
}

func (p RefundPolicy) orDefault() RefundPolicy {
	if len(p.Tiers) == 0 {
		return DefaultRefundPolicy
	}
	return p
}
