package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/shopspring/decimal"
)

// memDB is an in-memory store. A single mutex serialises every write, which
// gives vote commits the same all-or-nothing behaviour as the unique
// constraint plus transaction in Postgres.
type memDB struct {
	mu          sync.Mutex
	events      map[string]*model.Event
	categories  map[string]*model.Category
	contestants map[string]*model.Contestant
	payments    map[string]*model.Payment
	votes       map[string]*model.Vote
	settings    model.PlatformSettings
	withdrawals map[string]*model.Withdrawal

	commitErr error
}

func newMemDB() *memDB {
	return &memDB{
		events:      map[string]*model.Event{},
		categories:  map[string]*model.Category{},
		contestants: map[string]*model.Contestant{},
		payments:    map[string]*model.Payment{},
		votes:       map[string]*model.Vote{},
		withdrawals: map[string]*model.Withdrawal{},
	}
}

func clonePayment(p *model.Payment) *model.Payment {
	c := *p
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}

type memEvents struct{ *memDB }

func (m memEvents) Create(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *e
	m.events[e.ID] = &c
	return nil
}

func (m memEvents) List(context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m memEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (m memEvents) UpdateSchedule(_ context.Context, id string, price decimal.Decimal, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if e.TotalVotes > 0 {
		return repository.ErrEventHasVotes
	}
	e.VotePrice, e.StartDate, e.EndDate = price, start, end
	return nil
}

func (m memEvents) SetStatus(_ context.Context, id string, from []model.EventStatus, to model.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !slices.Contains(from, e.Status) {
		return repository.ErrStatusConflict
	}
	e.Status = to
	return nil
}

func (m memEvents) Readiness(_ context.Context, eventID string) (model.EventReadiness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r model.EventReadiness
	for _, c := range m.categories {
		if c.EventID != eventID {
			continue
		}
		r.Categories++
		for _, ct := range m.contestants {
			if ct.CategoryID == c.ID {
				r.CategoriesWithEntrants++
				break
			}
		}
	}
	return r, nil
}

func (m memEvents) CreateCategory(_ context.Context, c *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[c.EventID]
	if !ok {
		return repository.ErrNotFound
	}
	if e.TotalVotes > 0 {
		return repository.ErrEventHasVotes
	}
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m memEvents) GetCategory(_ context.Context, id string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memEvents) CreateContestant(_ context.Context, c *model.Contestant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[c.CategoryID]
	if !ok {
		return repository.ErrNotFound
	}
	if m.events[cat.EventID].TotalVotes > 0 {
		return repository.ErrEventHasVotes
	}
	cp := *c
	m.contestants[c.ID] = &cp
	return nil
}

func (m memEvents) GetContestant(_ context.Context, id string) (*model.Contestant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contestants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memEvents) DeleteContestant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contestants[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, p := range m.payments {
		if p.ContestantID == id {
			return repository.ErrContestantHasPayments
		}
	}
	if c.VoteCount > 0 || m.events[c.EventID].TotalVotes > 0 {
		return repository.ErrEventHasVotes
	}
	delete(m.contestants, id)
	return nil
}

type memPayments struct{ *memDB }

func (m memPayments) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; ok {
		return repository.ErrDuplicatePayment
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

func (m memPayments) GetByID(_ context.Context, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m memPayments) GetByProviderRef(_ context.Context, method model.PaymentMethod, ref string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Method == method && p.ProviderRef != nil && *p.ProviderRef == ref {
			return clonePayment(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memPayments) AttachProviderRef(_ context.Context, id, ref string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.ProviderRef != nil {
		if *p.ProviderRef == ref {
			return nil
		}
		return repository.ErrProviderRefConflict
	}
	p.ProviderRef = &ref
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["intent"] = payload
	return nil
}

func (m memPayments) Transition(_ context.Context, id string, from []model.PaymentStatus, to model.PaymentStatus, reason string, payload map[string]any) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(from, p.Status) {
		return clonePayment(p), repository.ErrStatusConflict
	}
	p.Status = to
	if reason != "" {
		p.FailureReason = reason
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata[string(to)] = payload
	if to == model.PaymentCompleted {
		now := time.Now()
		p.CompletedAt = &now
	}
	return clonePayment(p), nil
}

func (m memPayments) ListCompletedWithoutVote(_ context.Context, limit int) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if _, voted := m.votes[p.ID]; p.Status == model.PaymentCompleted && !voted && len(out) < limit {
			out = append(out, *clonePayment(p))
		}
	}
	return out, nil
}

func (m memPayments) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentPending && p.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, *clonePayment(p))
		}
	}
	return out, nil
}

type memVotes struct{ *memDB }

func (m memVotes) Commit(_ context.Context, v *model.Vote) (*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	p, ok := m.payments[v.PaymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.Status != model.PaymentCompleted {
		return nil, repository.ErrPaymentNotCompleted
	}
	if existing, ok := m.votes[v.PaymentID]; ok {
		c := *existing
		return &c, repository.ErrAlreadyCommitted
	}
	c := *v
	m.votes[v.PaymentID] = &c
	m.contestants[v.ContestantID].VoteCount++
	e := m.events[v.EventID]
	e.TotalVotes++
	e.TotalRevenue = e.TotalRevenue.Add(v.Amount)
	out := c
	return &out, nil
}

func (m memVotes) GetByPaymentID(_ context.Context, paymentID string) (*model.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *v
	return &c, nil
}

type memSettings struct{ *memDB }

func (m memSettings) Get(context.Context) (model.PlatformSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m memSettings) Save(_ context.Context, s model.PlatformSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

type memWithdrawals struct{ *memDB }

func (m memWithdrawals) balanceLocked(organizerID string) model.Balance {
	b := model.Balance{OrganizerID: organizerID}
	for _, p := range m.payments {
		if p.Status == model.PaymentCompleted && m.events[p.EventID].OrganizerID == organizerID {
			b.Earnings = b.Earnings.Add(p.OrganizerEarnings)
		}
	}
	for _, w := range m.withdrawals {
		if w.OrganizerID == organizerID && w.Status != model.WithdrawalFailed {
			b.Reserved = b.Reserved.Add(w.Amount)
		}
	}
	b.Available = b.Earnings.Sub(b.Reserved)
	return b
}

func (m memWithdrawals) Balance(_ context.Context, organizerID string) (model.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(organizerID), nil
}

func (m memWithdrawals) CreateWithinBalance(_ context.Context, w *model.Withdrawal) (model.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceLocked(w.OrganizerID)
	if w.Amount.GreaterThan(b.Available) {
		return b, repository.ErrInsufficientBalance
	}
	c := *w
	m.withdrawals[w.ID] = &c
	return m.balanceLocked(w.OrganizerID), nil
}

func (m memWithdrawals) GetByID(_ context.Context, id string) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (m memWithdrawals) ListByOrganizer(_ context.Context, organizerID string) ([]model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Withdrawal
	for _, w := range m.withdrawals {
		if w.OrganizerID == organizerID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m memWithdrawals) Transition(_ context.Context, id string, from []model.WithdrawalStatus, to model.WithdrawalStatus, reason, transferCode string) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(from, w.Status) {
		c := *w
		return &c, repository.ErrStatusConflict
	}
	w.Status = to
	if reason != "" {
		w.FailureReason = reason
	}
	if transferCode != "" {
		code := transferCode
		w.TransferCode = &code
	}
	c := *w
	return &c, nil
}

type fakeAdapter struct {
	method model.PaymentMethod

	mu        sync.Mutex
	createErr error
	block     bool
	status    provider.StatusResult
	statusErr error
	cancelErr error
	created   []provider.IntentRequest
	canceled  []string
}

func (f *fakeAdapter) Method() model.PaymentMethod { return f.method }

func (f *fakeAdapter) ref(paymentID string) string {
	if f.method == model.MethodCard {
		return "pi_" + paymentID
	}
	return paymentID
}

func (f *fakeAdapter) CreateIntent(ctx context.Context, req provider.IntentRequest) (*provider.Intent, error) {
	f.mu.Lock()
	f.created = append(f.created, req)
	block, createErr := f.block, f.createErr
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", provider.ErrProvider, ctx.Err())
	}
	if createErr != nil {
		return nil, createErr
	}
	return &provider.Intent{
		ProviderRef:      f.ref(req.PaymentID),
		ClientSecret:     "secret_" + req.PaymentID,
		AuthorizationURL: "https://checkout.example/" + req.PaymentID,
		Raw:              map[string]any{"id": f.ref(req.PaymentID)},
	}, nil
}

func (f *fakeAdapter) RetrieveStatus(context.Context, string) (provider.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeAdapter) Cancel(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, ref)
	return f.cancelErr
}

type fakePayouts struct {
	mu        sync.Mutex
	err       error
	transfers []provider.TransferRequest
}

func (f *fakePayouts) Transfer(_ context.Context, req provider.TransferRequest) (*provider.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.transfers = append(f.transfers, req)
	return &provider.Transfer{TransferCode: "TRF_" + req.Reference, Status: "pending"}, nil
}

func (f *fakePayouts) SettlementCurrency() string { return "GHS" }

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(_ context.Context, eventType, _ string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, eventType)
	return nil
}

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type fixture struct {
	db          *memDB
	card        *fakeAdapter
	mm          *fakeAdapter
	payouts     *fakePayouts
	pub         *fakePublisher
	guard       *Guard
	ledger      *Ledger
	committer   *Committer
	settlement  *Settlement
	withdrawals *WithdrawalService
	now         time.Time

	event      *model.Event
	category   *model.Category
	contestant *model.Contestant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		db:      db,
		card:    &fakeAdapter{method: model.MethodCard, status: provider.StatusResult{Status: provider.StatusPending}},
		mm:      &fakeAdapter{method: model.MethodMobileMoney, status: provider.StatusResult{Status: provider.StatusPending}},
		payouts: &fakePayouts{},
		pub:     &fakePublisher{},
		now:     now,
	}
	db.settings = model.PlatformSettings{
		CommissionRate:     decimal.RequireFromString("0.05"),
		CardEnabled:        true,
		MobileMoneyEnabled: true,
	}

	f.event = &model.Event{
		ID: "event-1", OrganizerID: "org-1", Name: "Awards", Currency: "USD",
		VotePrice: decimal.RequireFromString("5.00"),
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
		Status: model.EventActive,
	}
	f.category = &model.Category{ID: "cat-1", EventID: "event-1", Name: "Best Newcomer"}
	f.contestant = &model.Contestant{ID: "contestant-1", CategoryID: "cat-1", EventID: "event-1", Name: "Ada"}
	db.events[f.event.ID] = f.event
	db.categories[f.category.ID] = f.category
	db.contestants[f.contestant.ID] = f.contestant

	clock := func() time.Time { return f.now }
	f.guard = NewGuard(memEvents{db})
	f.ledger = NewLedger(memPayments{db}, memSettings{db}, f.guard, f.pub, time.Second, f.card, f.mm)
	f.ledger.now = clock
	f.committer = NewCommitter(memPayments{db}, memVotes{db}, f.pub)
	f.committer.now = clock
	f.settlement = NewSettlement(f.ledger, f.committer, memVotes{db})
	f.withdrawals = NewWithdrawalService(memWithdrawals{db}, f.payouts, f.pub, time.Second)
	f.withdrawals.now = clock
	return f
}

// pay creates a payment through the ledger and returns it.
func (f *fixture) pay(t *testing.T, method model.PaymentMethod, voterID string) *model.Payment {
	t.Helper()
	intent, err := f.ledger.CreateIntent(context.Background(), voterID, method, model.CreatePaymentRequest{
		ContestantID: f.contestant.ID,
		Amount:       decimal.RequireFromString("5.00"),
		Email:        voterID + "@example.com",
	})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	return intent.Payment
}

func (f *fixture) payment(t *testing.T, id string) *model.Payment {
	t.Helper()
	p, err := memPayments{f.db}.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load payment %s: %v", id, err)
	}
	return p
}

func (f *fixture) counts() (votes int, contestantVotes, eventVotes int64, revenue decimal.Decimal) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.votes), f.db.contestants[f.contestant.ID].VoteCount,
		f.db.events[f.event.ID].TotalVotes, f.db.events[f.event.ID].TotalRevenue
}
