package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"
)

// DefaultQueue is the durable queue trigger events travel on
const DefaultQueue = "marketing.triggers"

// TriggerMessage is the queued form of a trigger request. Customer-scoped
// events carry Context; property.available carries Property.
type TriggerMessage struct {
	Event       workflow.TriggerEvent    `json:"event" validate:"required,oneof=lead.created visit.scheduled visit.completed property.available"`
	Context     *workflow.PartialContext `json:"context,omitempty" validate:"required_unless=Event property.available"`
	Property    *workflow.Property       `json:"property,omitempty" validate:"required_if=Event property.available"`
	RequestedAt time.Time                `json:"requested_at"`
}

// Decode parses and validates a message body
func Decode(body []byte) (*TriggerMessage, error) {
	var msg TriggerMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("malformed trigger message: %w", err)
	}
	if err := utils.ValidateStruct(msg); err != nil {
		return nil, fmt.Errorf("invalid trigger message: %w", err)
	}
	return &msg, nil
}
