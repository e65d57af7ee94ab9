package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context is the per-trigger value object used for rendering and routing.
// A snapshot is kept on the execution so a resumed run renders the same values.
type Context struct {
	CustomerID uuid.UUID  `json:"customer_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	OwnerID    string     `json:"owner_id,omitempty"`
	VisitDate  *time.Time `json:"visit_date,omitempty"`
	Property   *Property  `json:"property,omitempty"`
}

// PartialContext is what the raising code path already has in hand
type PartialContext struct {
	CustomerID uuid.UUID  `json:"customer_id" validate:"required"`
	Name       string     `json:"name,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	OwnerID    string     `json:"owner_id,omitempty"`
	VisitDate  *time.Time `json:"visit_date,omitempty"`
	Property   *Property  `json:"property,omitempty"`
}

// Fields flattens the context for condition evaluation
func (c Context) Fields() map[string]interface{} {
	data := map[string]interface{}{
		"customer_id": c.CustomerID.String(),
		"name":        c.Name,
		"phone":       c.Phone,
		"owner_id":    c.OwnerID,
		"has_visit":   c.VisitDate != nil,
	}
	if c.Property != nil {
		data["property_id"] = c.Property.ID
		data["property_kind"] = c.Property.Kind
		data["sale_price"] = c.Property.SalePrice
		data["project_id"] = c.Property.ProjectID
	}
	return data
}

// Resolver builds a complete Context from a partial one
type Resolver struct {
	customers CustomerStore
}

// NewResolver creates a new context resolver
func NewResolver(customers CustomerStore) *Resolver {
	return &Resolver{customers: customers}
}

// Resolve fills name, phone and owner with at most one customer lookup and
// normalizes the phone. It returns ErrNoContactChannel when no phone exists.
func (r *Resolver) Resolve(ctx context.Context, event TriggerEvent, p PartialContext) (Context, error) {
	c := Context{
		CustomerID: p.CustomerID,
		Name:       strings.TrimSpace(p.Name),
		Phone:      strings.TrimSpace(p.Phone),
		OwnerID:    p.OwnerID,
		VisitDate:  p.VisitDate,
		Property:   p.Property,
	}

	if c.Phone == "" || c.Name == "" {
		customer, err := r.lookup(ctx, c.CustomerID)
		if err != nil {
			return Context{}, fmt.Errorf("resolve %s context: %w", event, err)
		}
		if customer != nil {
			if c.Name == "" {
				c.Name = customer.Name
			}
			if c.Phone == "" {
				c.Phone = customer.Phone
			}
			if c.OwnerID == "" {
				c.OwnerID = customer.OwnerID
			}
		}
	}

	c.Phone = NormalizePhone(c.Phone)
	if c.Phone == "" {
		return Context{}, ErrNoContactChannel
	}
	return c, nil
}

// lookup returns nil without error when the customer does not exist
func (r *Resolver) lookup(ctx context.Context, id uuid.UUID) (*Customer, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	customer, err := r.customers.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return customer, err
}

// Peruvian numbering: 9-digit mobile numbers, country code 51
const (
	countryCode      = "51"
	localPhoneDigits = 9
)

// NormalizePhone returns the canonical +<country><number> form, or an empty
// string when the input carries no digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case len(digits) == len(countryCode)+localPhoneDigits && strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case len(digits) == localPhoneDigits:
		return "+" + countryCode + digits
	default:
		return "+" + digits
	}
}
