package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memCampaigns struct {
	mu       sync.Mutex
	items    []*Campaign
	finished map[uuid.UUID]Campaign
}

func (m *memCampaigns) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Campaign
	for _, c := range m.items {
		if c.State == CampaignScheduled && !c.StartsAt.After(now) && len(out) < limit {
			c.State = CampaignRunning
			out = append(out, *c)
		}
	}
	return out, nil
}

// Finish and Release fail on a cancelled context, like a database call would
func (m *memCampaigns) Finish(ctx context.Context, id uuid.UUID, state CampaignState, sent, failed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id && c.State == CampaignRunning {
			c.State, c.TotalSent, c.TotalFailed = state, sent, failed
			m.finished[id] = *c
			return nil
		}
	}
	return ErrConflict
}

func (m *memCampaigns) Release(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id && c.State == CampaignRunning {
			c.State = CampaignScheduled
			return nil
		}
	}
	return ErrConflict
}

// CancelStalled treats StartsAt as the start time
func (m *memCampaigns) CancelStalled(ctx context.Context, startedBefore time.Time) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Campaign
	for _, c := range m.items {
		if c.State == CampaignRunning && c.StartsAt.Before(startedBefore) {
			c.State = CampaignCancelled
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaigns) state(id uuid.UUID) CampaignState {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id {
			return c.State
		}
	}
	return ""
}

// cancellingGateway cancels the sweep context while a message is in flight
type cancellingGateway struct {
	fakeGateway
	cancel context.CancelFunc
}

func (g *cancellingGateway) Send(ctx context.Context, phone, text string) (string, error) {
	g.cancel()
	return g.fakeGateway.Send(ctx, phone, text)
}

func TestCampaignRunnerSendsDueCampaigns(t *testing.T) {
	h := newHarness()
	ok := h.customers.add(Customer{Name: "Ana", Phone: "987654321"})
	optedOut := h.customers.add(Customer{Name: "Luis", Phone: "912345678", OptOut: true})
	failing := h.customers.add(Customer{Name: "Rosa", Phone: "955555555"})
	h.whatsapp.failFor["+51955555555"] = true
	tpl := h.templates.add(Template{Name: "promo", Channel: ChannelWhatsApp, BodyText: "Hola {{nombre}}"})

	campaigns := &memCampaigns{finished: map[uuid.UUID]Campaign{}}
	due := &Campaign{ID: uuid.New(), TemplateID: tpl.ID.String(), State: CampaignScheduled, StartsAt: h.clock.Now().Add(-time.Hour),
		CustomerIDs: []uuid.UUID{ok.ID, optedOut.ID, failing.ID, uuid.New()}}
	later := &Campaign{ID: uuid.New(), TemplateID: tpl.ID.String(), State: CampaignScheduled, StartsAt: h.clock.Now().Add(time.Hour)}
	campaigns.items = []*Campaign{due, later}

	runner := NewCampaignRunner(campaigns, h.customers, h.templates, h.dispatcher, h.audit)
	runner.clock = h.clock.Now
	runner.SetThrottle(0)

	results, err := runner.RunDue(context.Background(), 5)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	res := results[0]
	if res.State != CampaignCompleted || res.Sent != 1 || res.Failed != 1 || res.Skipped != 2 {
		t.Errorf("result = %+v", res)
	}
	if got := campaigns.finished[due.ID]; got.State != CampaignCompleted || got.TotalSent != 1 {
		t.Errorf("stored campaign = %+v", got)
	}
	if later.State != CampaignScheduled {
		t.Error("future campaign was claimed")
	}
	if len(h.audit.byEvent(EventCampaignSent)) != 1 || len(h.audit.byEvent(EventCampaignError)) != 1 {
		t.Error("campaign sends were not audited")
	}
}

func TestCampaignRunnerCancelsWithoutTemplate(t *testing.T) {
	h := newHarness()
	customer := h.customers.add(Customer{Name: "Ana", Phone: "987654321"})
	campaigns := &memCampaigns{finished: map[uuid.UUID]Campaign{}}
	c := &Campaign{ID: uuid.New(), TemplateID: uuid.NewString(), State: CampaignScheduled, StartsAt: h.clock.Now(), CustomerIDs: []uuid.UUID{customer.ID}}
	campaigns.items = []*Campaign{c}

	runner := NewCampaignRunner(campaigns, h.customers, h.templates, h.dispatcher, h.audit)
	runner.clock = h.clock.Now

	results, err := runner.RunDue(context.Background(), 5)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if results[0].State != CampaignCancelled || campaigns.finished[c.ID].State != CampaignCancelled {
		t.Errorf("result = %+v", results[0])
	}
	if h.whatsapp.count() != 0 || len(h.audit.byEvent(EventCampaignCancelled)) != 1 {
		t.Error("cancelled campaign sent messages or was not audited")
	}
}

func TestCampaignRunnerClosesCampaignAfterDeadline(t *testing.T) {
	h := newHarness()
	ana := h.customers.add(Customer{Name: "Ana", Phone: "987654321"})
	luis := h.customers.add(Customer{Name: "Luis", Phone: "912345678"})
	tpl := h.templates.add(Template{Name: "promo", Channel: ChannelWhatsApp, BodyText: "Hola {{nombre}}"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway := &cancellingGateway{fakeGateway: fakeGateway{failFor: map[string]bool{}}, cancel: cancel}
	dispatcher := NewChannelDispatcher(gateway, nil, h.audit, nil)

	campaigns := &memCampaigns{finished: map[uuid.UUID]Campaign{}}
	first := &Campaign{ID: uuid.New(), TemplateID: tpl.ID.String(), State: CampaignScheduled, StartsAt: h.clock.Now().Add(-2 * time.Hour),
		CustomerIDs: []uuid.UUID{ana.ID, luis.ID}}
	second := &Campaign{ID: uuid.New(), TemplateID: tpl.ID.String(), State: CampaignScheduled, StartsAt: h.clock.Now().Add(-time.Hour),
		CustomerIDs: []uuid.UUID{ana.ID}}
	campaigns.items = []*Campaign{first, second}

	runner := NewCampaignRunner(campaigns, h.customers, h.templates, dispatcher, h.audit)
	runner.clock = h.clock.Now
	runner.SetThrottle(0)

	results, err := runner.RunDue(ctx, 5)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if res := results[0]; res.State != CampaignCompleted || res.Sent != 1 || res.Failed != 1 {
		t.Errorf("first result = %+v", res)
	}
	if got := campaigns.finished[first.ID]; got.State != CampaignCompleted || got.TotalSent != 1 {
		t.Errorf("first campaign stored = %+v", got)
	}
	if results[1].State != CampaignScheduled || campaigns.state(second.ID) != CampaignScheduled {
		t.Errorf("second campaign = %+v, stored %s; want released", results[1], campaigns.state(second.ID))
	}
	if gateway.count() != 1 {
		t.Errorf("sent %d messages, want 1", gateway.count())
	}
	if len(h.audit.byEvent(EventCampaignCancelled)) != 0 {
		t.Error("a campaign was cancelled because of the deadline")
	}
}

func TestCampaignRunnerReportsCloseFailure(t *testing.T) {
	h := newHarness()
	customer := h.customers.add(Customer{Name: "Ana", Phone: "987654321"})
	tpl := h.templates.add(Template{Name: "promo", Channel: ChannelWhatsApp, BodyText: "Hola"})

	campaigns := &memCampaigns{finished: map[uuid.UUID]Campaign{}}
	c := &Campaign{ID: uuid.New(), TemplateID: tpl.ID.String(), State: CampaignScheduled, StartsAt: h.clock.Now(), CustomerIDs: []uuid.UUID{customer.ID}}
	campaigns.items = []*Campaign{c}

	runner := NewCampaignRunner(campaigns, h.customers, h.templates, h.dispatcher, h.audit)
	runner.clock = h.clock.Now
	// closed elsewhere while sending
	h.whatsapp.onSend = func() { c.State = CampaignCancelled }

	results, err := runner.RunDue(context.Background(), 5)
	if err == nil {
		t.Fatal("expected the close failure to be returned")
	}
	if results[0].State != CampaignRunning {
		t.Errorf("result state = %s, want RUNNING", results[0].State)
	}
}

func TestCampaignRunnerCancelStalled(t *testing.T) {
	h := newHarness()
	campaigns := &memCampaigns{finished: map[uuid.UUID]Campaign{}}
	stalled := &Campaign{ID: uuid.New(), State: CampaignRunning, StartsAt: h.clock.Now().Add(-time.Hour)}
	fresh := &Campaign{ID: uuid.New(), State: CampaignRunning, StartsAt: h.clock.Now().Add(-time.Minute)}
	campaigns.items = []*Campaign{stalled, fresh}

	runner := NewCampaignRunner(campaigns, h.customers, h.templates, h.dispatcher, h.audit)
	runner.clock = h.clock.Now

	cancelled, err := runner.CancelStalled(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("CancelStalled: %v", err)
	}
	if len(cancelled) != 1 || cancelled[0].ID != stalled.ID {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if campaigns.state(fresh.ID) != CampaignRunning {
		t.Error("fresh campaign was cancelled")
	}
	if len(h.audit.byEvent(EventCampaignCancelled)) != 1 {
		t.Error("stalled campaign was not audited")
	}
}
