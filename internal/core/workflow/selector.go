package workflow

import (
	"context"
	"fmt"
)

// Selector loads the active automations bound to a trigger event
type Selector struct {
	automations AutomationStore
}

// NewSelector creates a new automation selector
func NewSelector(automations AutomationStore) *Selector {
	return &Selector{automations: automations}
}

// Select returns active automations for event in definition order. An empty
// result is a normal no-op for the caller.
func (s *Selector) Select(ctx context.Context, event TriggerEvent) ([]Automation, error) {
	automations, err := s.automations.ListActive(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("list active automations for %s: %w", event, err)
	}

	// never start a disabled automation
	active := automations[:0]
	for _, a := range automations {
		if a.Active && a.TriggerEvent == event {
			active = append(active, a)
		}
	}
	return active, nil
}
