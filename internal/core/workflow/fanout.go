package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxFanOut bounds how many customers one available property can reach
	MaxFanOut = 100
	// FanOutThrottle spaces dispatches to stay under gateway rate limits
	FanOutThrottle = 200 * time.Millisecond
	// DisqualifiedStage is the terminal lifecycle stage excluded from fan-out
	DisqualifiedStage = "disqualified"
	// capacityRatio is the share of the sale price a customer must afford
	capacityRatio = 0.8
)

// FanOutResult summarizes one property.available broadcast
type FanOutResult struct {
	PropertyID string `json:"property_id"`
	Matched    int    `json:"matched"`
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// FanOut runs the trigger pipeline for every customer matching an available
// property
type FanOut struct {
	customers CustomerStore
	selector  *Selector
	pipeline  *Pipeline
	throttle  time.Duration
}

// NewFanOut creates a fan-out matcher with the default throttle
func NewFanOut(customers CustomerStore, selector *Selector, pipeline *Pipeline) *FanOut {
	return &FanOut{
		customers: customers,
		selector:  selector,
		pipeline:  pipeline,
		throttle:  FanOutThrottle,
	}
}

// SetThrottle changes the pause between two dispatches
func (f *FanOut) SetThrottle(d time.Duration) {
	f.throttle = d
}

// MatchCriteriaFor builds the customer query for property p
func MatchCriteriaFor(p Property) MatchCriteria {
	criteria := MatchCriteria{
		PropertyKind: p.Kind,
		ExcludeStage: DisqualifiedStage,
		Limit:        MaxFanOut,
	}
	if p.SalePrice > 0 {
		criteria.MinCapacity = p.SalePrice * capacityRatio
	}
	return criteria
}

// PropertyAvailable matches customers for p and fires property.available for
// each of them. A failure for one customer never stops the others.
func (f *FanOut) PropertyAvailable(ctx context.Context, p Property) (FanOutResult, error) {
	result := FanOutResult{PropertyID: p.ID}

	automations, err := f.selector.Select(ctx, TriggerPropertyAvailable)
	if err != nil {
		return result, err
	}
	if len(automations) == 0 {
		return result, nil
	}

	matches, err := f.customers.FindMatches(ctx, MatchCriteriaFor(p))
	if err != nil {
		return result, fmt.Errorf("find customers for property %s: %w", p.ID, err)
	}
	if len(matches) > MaxFanOut {
		matches = matches[:MaxFanOut]
	}
	result.Matched = len(matches)

	log.Info().
		Str("property_id", p.ID).
		Str("kind", p.Kind).
		Int("matches", len(matches)).
		Msg("🏠 Property available, fanning out")

	property := p
	sent := 0
	for _, customer := range matches {
		if NormalizePhone(customer.Phone) == "" {
			result.Skipped++
			continue
		}

		if sent > 0 {
			if err := f.wait(ctx); err != nil {
				return result, err
			}
		}
		sent++

		res, err := f.pipeline.Fire(ctx, TriggerPropertyAvailable, PartialContext{
			CustomerID: customer.ID,
			Name:       customer.Name,
			Phone:      customer.Phone,
			OwnerID:    customer.OwnerID,
			Property:   &property,
		})
		switch {
		case err != nil:
			log.Warn().Err(err).Str("customer_id", customer.ID.String()).Msg("⚠️ Fan-out dispatch failed")
			result.Failed++
		case res.Skipped:
			result.Skipped++
		case res.Failed():
			result.Failed++
		default:
			result.Dispatched++
		}
	}

	log.Info().
		Str("property_id", p.ID).
		Int("dispatched", result.Dispatched).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("✅ Fan-out finished")
	return result, nil
}

func (f *FanOut) wait(ctx context.Context) error {
	if f.throttle <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.throttle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
