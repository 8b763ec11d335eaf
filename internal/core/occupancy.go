package core

import "time"

// OccupancySummary is the unit occupancy figure set for a property or the
// whole portfolio.
type OccupancySummary struct {
	TotalUnits    int     `json:"totalUnits"`
	OccupiedUnits int     `json:"occupiedUnits"`
	VacantUnits   int     `json:"vacantUnits"`
	OccupancyRate float64 `json:"occupancyRate"`
}

// Occupancy computes the occupancy rate from raw counts, defined as 0 when
// there are no units.
func Occupancy(totalUnits, occupiedUnits int) OccupancySummary {
	rate := 0.0
	if totalUnits > 0 {
		rate = float64(occupiedUnits) / float64(totalUnits) * 100
	}
	return OccupancySummary{
		TotalUnits:    totalUnits,
		OccupiedUnits: occupiedUnits,
		VacantUnits:   totalUnits - occupiedUnits,
		OccupancyRate: rate,
	}
}

// PropertyOccupancy summarizes one property from its units' stored
// occupancy flags.
func PropertyOccupancy(p Property) OccupancySummary {
	occupied := 0
	for _, u := range p.Units {
		if u.Occupied {
			occupied++
		}
	}
	return Occupancy(len(p.Units), occupied)
}

// PortfolioOccupancy summarizes all properties together, computed the same
// way as the per-property figure.
func PortfolioOccupancy(props []Property) OccupancySummary {
	total, occupied := 0, 0
	for _, p := range props {
		total += len(p.Units)
		for _, u := range p.Units {
			if u.Occupied {
				occupied++
			}
		}
	}
	return Occupancy(total, occupied)
}

// EventKind is a product-interaction event type used for engagement
// scoring.
type EventKind string

const (
	EventView           EventKind = "view"
	EventOpen           EventKind = "open"
	EventCreate         EventKind = "create"
	EventReportDownload EventKind = "report_download"
	EventPaymentPaid    EventKind = "payment_paid"
)

// eventWeight returns the score contribution of one event. Unknown kinds
// score nothing rather than failing.
func eventWeight(k EventKind) int {
	switch k {
	case EventView:
		return 5
	case EventOpen:
		return 10
	case EventCreate:
		return 20
	case EventReportDownload:
		return 30
	case EventPaymentPaid:
		return 40
	default:
		return 0
	}
}

// ActivityEvent is one recorded interaction on an account.
type ActivityEvent struct {
	AccountID string
	Kind      EventKind
	At        time.Time
}

// EngagementTier labels an account's engagement band.
type EngagementTier string

const (
	TierReadyToPay EngagementTier = "ready_to_pay"
	TierActive     EngagementTier = "active"
	TierSemiActive EngagementTier = "semi_active"
	TierDormant    EngagementTier = "dormant"
)

// ClassifyScore maps a usage score onto its tier. Band bounds are
// inclusive: exactly 100 is ReadyToPay and exactly 40 is Active.
func ClassifyScore(score int) EngagementTier {
	switch {
	case score >= 100:
		return TierReadyToPay
	case score >= 40:
		return TierActive
	case score >= 1:
		return TierSemiActive
	default:
		return TierDormant
	}
}

// UsageScore is the scored engagement result for one account.
type UsageScore struct {
	Score        int            `json:"score"`
	Tier         EngagementTier `json:"tier"`
	LastActivity time.Time      `json:"lastActivity"`
}

// ScoreUsage sums weighted event counts over the trailing window and
// classifies the result. Events outside the window contribute nothing. An
// account whose most recent activity is older than dormantAfterDays is
// Dormant regardless of any residual score.
func ScoreUsage(events []ActivityEvent, now time.Time, windowDays, dormantAfterDays int) UsageScore {
	windowStart := now.AddDate(0, 0, -windowDays)

	score := 0
	var last time.Time
	for _, ev := range events {
		if ev.At.After(now) {
			continue
		}
		if ev.At.After(last) {
			last = ev.At
		}
		if ev.At.Before(windowStart) {
			continue
		}
		score += eventWeight(ev.Kind)
	}

	tier := ClassifyScore(score)
	if last.IsZero() || last.Before(now.AddDate(0, 0, -dormantAfterDays)) {
		tier = TierDormant
	}

	return UsageScore{Score: score, Tier: tier, LastActivity: last}
}
