package billing

import (
	"context"
	"time"

	"campaign-engine/internal/pricing"
)

// PricingRateCard adapts the pricing service's region-based minute pricing
// into the RateCard shape the billing engine consumes: telephony credits
// come from pricing.Service.CalculateCallCost against the outbound
// direction; AI credits come from a flat-rate assistant minute price,
// since no per-region assistant pricing exists.
type PricingRateCard struct {
	Pricing         *pricing.Service
	AIRatePerMinute int64
}

func (c PricingRateCard) Price(ctx context.Context, tenantID, destination string, durationSeconds int, provider string) (aiCredits, telephonyCredits int64) {
	if durationSeconds <= 0 {
		return 0, 0
	}
	cost, err := c.Pricing.CalculateCallCost(ctx, pricing.CallCostRequest{
		WorkspaceID:     tenantID,
		Direction:       pricing.CallDirectionOutbound,
		Destination:     destination,
		DurationSeconds: durationSeconds,
		At:              time.Now().UTC(),
	})
	if err != nil {
		telephonyCredits = 0
	} else {
		telephonyCredits = cost.TotalMinor
	}

	minutes := durationSeconds / 60
	if durationSeconds%60 != 0 {
		minutes++
	}
	aiCredits = c.AIRatePerMinute * int64(minutes)
	return aiCredits, telephonyCredits
}
