package workflow

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// TriggerResult reports what one trigger did
type TriggerResult struct {
	Event      TriggerEvent `json:"event"`
	Skipped    bool         `json:"skipped"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Executions []*Execution `json:"executions"`
	Errors     []string     `json:"errors,omitempty"`
}

// Failed reports whether any automation ended FAILED or could not run
func (r *TriggerResult) Failed() bool {
	if len(r.Errors) > 0 {
		return true
	}
	for _, exec := range r.Executions {
		if exec.State == StateFailed {
			return true
		}
	}
	return false
}

// Pipeline is the full trigger path: resolve the context, select the bound
// automations, check entry conditions and run each automation
type Pipeline struct {
	resolver   *Resolver
	selector   *Selector
	conditions *ConditionEvaluator
	engine     *Engine
}

// NewPipeline creates a new trigger pipeline
func NewPipeline(resolver *Resolver, selector *Selector, engine *Engine) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		selector:   selector,
		conditions: NewConditionEvaluator(),
		engine:     engine,
	}
}

// Fire handles one trigger event for one customer. Step failures show up in
// the returned executions; the error is reserved for infrastructure failures
// before any automation ran.
func (p *Pipeline) Fire(ctx context.Context, event TriggerEvent, partial PartialContext) (*TriggerResult, error) {
	result := &TriggerResult{Event: event, Executions: []*Execution{}}

	automations, err := p.selector.Select(ctx, event)
	if err != nil {
		return nil, err
	}
	if len(automations) == 0 {
		result.Skipped = true
		result.SkipReason = "no active automation"
		return result, nil
	}

	c, err := p.resolver.Resolve(ctx, event, partial)
	if errors.Is(err, ErrNoContactChannel) {
		log.Info().Str("event", string(event)).Str("customer_id", partial.CustomerID.String()).Msg("⏭️ No contact channel, skipping trigger")
		result.Skipped = true
		result.SkipReason = ErrNoContactChannel.Error()
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	data := c.Fields()
	for _, a := range automations {
		matched, err := p.conditions.Evaluate(a.Conditions, data)
		if err != nil {
			log.Warn().Err(err).Str("automation_id", a.ID.String()).Msg("⚠️ Invalid entry condition, skipping automation")
			continue
		}
		if !matched {
			continue
		}

		exec, err := p.engine.Run(ctx, a, c)
		if err != nil {
			log.Error().Err(err).Str("automation_id", a.ID.String()).Msg("❌ Failed to run automation")
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Executions = append(result.Executions, exec)
	}
	return result, nil
}
