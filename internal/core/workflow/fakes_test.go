package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memExecutions is an in-memory ExecutionStore with the same claim semantics
// as the gorm repository
type memExecutions struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Execution
	order []uuid.UUID
	clock *manualClock
}

func newMemExecutions(clock *manualClock) *memExecutions {
	return &memExecutions{items: make(map[uuid.UUID]*Execution), clock: clock}
}

func cloneExecution(e *Execution) *Execution {
	c := *e
	c.StepsLog = append([]StepResult(nil), e.StepsLog...)
	if e.NextActionAt != nil {
		t := *e.NextActionAt
		c.NextActionAt = &t
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (m *memExecutions) CreateIfAbsent(ctx context.Context, exec *Execution) (*Execution, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		existing := m.items[id]
		if existing.AutomationID == exec.AutomationID && existing.CustomerID == exec.CustomerID && !existing.State.IsTerminal() {
			return cloneExecution(existing), false, nil
		}
	}

	stored := cloneExecution(exec)
	stored.Version = 1
	m.items[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	return cloneExecution(stored), true, nil
}

func (m *memExecutions) Load(ctx context.Context, id uuid.UUID) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneExecution(stored), nil
}

func (m *memExecutions) Save(ctx context.Context, exec *Execution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[exec.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != exec.Version || stored.State.IsTerminal() {
		return ErrConflict
	}
	exec.Version++
	exec.UpdatedAt = m.clock.Now()
	m.items[exec.ID] = cloneExecution(exec)
	return nil
}

func (m *memExecutions) claimLocked(stored *Execution) *Execution {
	stored.NextActionAt = nil
	stored.Version++
	stored.UpdatedAt = m.clock.Now()
	return cloneExecution(stored)
}

func (m *memExecutions) Claim(ctx context.Context, id uuid.UUID, now time.Time) (*Execution, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if !stored.IsDue(now) {
		return nil, false, nil
	}
	return m.claimLocked(stored), true, nil
}

func (m *memExecutions) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Execution
	for _, id := range m.order {
		if stored := m.items[id]; stored.IsDue(now) {
			due = append(due, stored)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextActionAt.Before(*due[j].NextActionAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Execution, 0, len(due))
	for _, stored := range due {
		claimed = append(claimed, m.claimLocked(stored))
	}
	return claimed, nil
}

func (m *memExecutions) ClaimStalled(ctx context.Context, before time.Time, limit int) ([]*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var claimed []*Execution
	for _, id := range m.order {
		stored := m.items[id]
		if stored.State == StateRunning && stored.NextActionAt == nil && stored.UpdatedAt.Before(before) {
			claimed = append(claimed, m.claimLocked(stored))
			if limit > 0 && len(claimed) == limit {
				break
			}
		}
	}
	return claimed, nil
}

// put stores an execution as-is, for tests that need a specific shape
func (m *memExecutions) put(exec *Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[exec.ID] = cloneExecution(exec)
	m.order = append(m.order, exec.ID)
}

func (m *memExecutions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type memAutomations struct {
	mu      sync.Mutex
	items   []*Automation
	err     error
	incrErr error
	incrs   int
}

func (m *memAutomations) add(a Automation) Automation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	stored := a
	m.items = append(m.items, &stored)
	return a
}

func (m *memAutomations) ListActive(ctx context.Context, event TriggerEvent) ([]Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []Automation
	for _, a := range m.items {
		if a.Active && a.TriggerEvent == event {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAutomations) Get(ctx context.Context, id uuid.UUID) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAutomations) IncrementCounters(ctx context.Context, id uuid.UUID, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrs++
	if m.incrErr != nil {
		return m.incrErr
	}
	for _, a := range m.items {
		if a.ID == id {
			a.TotalRuns++
			if completed {
				a.TotalCompleted++
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *memAutomations) counters(id uuid.UUID) (int64, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			return a.TotalRuns, a.TotalCompleted
		}
	}
	return -1, -1
}

type memCustomers struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*Customer
	order     []uuid.UUID
	gets      int
	updateErr error
}

func newMemCustomers() *memCustomers {
	return &memCustomers{items: make(map[uuid.UUID]*Customer)}
}

func (m *memCustomers) add(c Customer) Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	stored := c
	m.items[c.ID] = &stored
	m.order = append(m.order, c.ID)
	return c
}

func (m *memCustomers) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *memCustomers) Update(ctx context.Context, id uuid.UUID, fields CustomerUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if fields.OwnerID != nil {
		c.OwnerID = *fields.OwnerID
	}
	if fields.Stage != nil {
		c.Stage = *fields.Stage
	}
	return nil
}

// FindMatches filters like the SQL query but ignores Limit so callers' own
// caps are exercised
func (m *memCustomers) FindMatches(ctx context.Context, criteria MatchCriteria) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Customer
	for _, id := range m.order {
		c := m.items[id]
		if c.OptOut || c.Stage == criteria.ExcludeStage {
			continue
		}
		if criteria.PropertyKind != "" && !strings.Contains(strings.ToLower(c.Interest), strings.ToLower(criteria.PropertyKind)) {
			continue
		}
		if criteria.MinCapacity > 0 && c.Capacity < criteria.MinCapacity {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memCustomers) customer(id uuid.UUID) Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

type memTemplates map[string]*Template

func (m memTemplates) add(t Template) Template {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	stored := t
	m[t.ID.String()] = &stored
	return t
}

func (m memTemplates) Get(ctx context.Context, id string) (*Template, error) {
	t, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

type memConversations map[string]bool

func (m memConversations) HasInbound(ctx context.Context, phone string) (bool, error) {
	return m[phone], nil
}

type sentMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	failFor  map[string]bool
	sequence int
	onSend   func()
}

func (g *fakeGateway) deliver(to string, msg sentMessage) (string, error) {
	if g.onSend != nil {
		g.onSend()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[to] {
		return "", errors.New("gateway rejected message")
	}
	g.sequence++
	g.sent = append(g.sent, msg)
	return fmt.Sprintf("SM%04d", g.sequence), nil
}

func (g *fakeGateway) Send(ctx context.Context, phone, text string) (string, error) {
	return g.deliver(phone, sentMessage{To: phone, Text: text})
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type fakeEmailGateway struct {
	fakeGateway
}

func (g *fakeEmailGateway) Send(ctx context.Context, to, subject, html, text string) (string, error) {
	return g.deliver(to, sentMessage{To: to, Subject: subject, HTML: html, Text: text})
}

type memAudit struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (m *memAudit) Append(ctx context.Context, record AuditRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
}

func (m *memAudit) byEvent(event string) []AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditRecord
	for _, r := range m.records {
		if r.EventType == event {
			out = append(out, r)
		}
	}
	return out
}

// harness wires the engine to in-memory collaborators
type harness struct {
	clock         *manualClock
	executions    *memExecutions
	automations   *memAutomations
	customers     *memCustomers
	templates     memTemplates
	conversations memConversations
	whatsapp      *fakeGateway
	email         *fakeEmailGateway
	audit         *memAudit
	dispatcher    *ChannelDispatcher
	engine        *Engine
	pipeline      *Pipeline
	selector      *Selector
}

func newHarness() *harness {
	h := &harness{
		clock:         newManualClock(),
		automations:   &memAutomations{},
		customers:     newMemCustomers(),
		templates:     memTemplates{},
		conversations: memConversations{},
		whatsapp:      &fakeGateway{failFor: map[string]bool{}},
		email:         &fakeEmailGateway{fakeGateway{failFor: map[string]bool{}}},
		audit:         &memAudit{},
	}
	h.executions = newMemExecutions(h.clock)
	h.dispatcher = NewChannelDispatcher(h.whatsapp, h.email, h.audit, nil)
	h.dispatcher.clock = h.clock.Now
	runner := NewActionExecutor(h.customers, h.templates, h.conversations, h.dispatcher)
	h.engine = NewEngine(h.executions, h.automations, runner, h.audit)
	h.engine.SetClock(h.clock.Now)
	h.selector = NewSelector(h.automations)
	h.pipeline = NewPipeline(NewResolver(h.customers), h.selector, h.engine)
	return h
}

func (h *harness) context(c Customer) Context {
	return Context{CustomerID: c.ID, Name: c.Name, Phone: NormalizePhone(c.Phone), OwnerID: c.OwnerID}
}
