package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
)

// ErrMockServiceFailure is returned when a mock call is configured to fail
var ErrMockServiceFailure = errors.New("mock service failure")

// mockBackend records every call and answers from its configuration
type mockBackend struct {
	mu sync.Mutex

	BookingErr     error
	BookingReceipt BookingReceipt
	OrderErr       error
	Order          PaymentOrder
	VerifyErr      error
	Verdict        Verification
	MarkFailedErr  error

	// VerifyBlock makes VerifyPayment wait for ctx before answering
	VerifyBlock bool
	// VerifyGate, when set, holds VerifyPayment until it is closed or ctx ends
	VerifyGate chan struct{}
	// BookingGate, when set, holds the next CreateBooking until it is closed.
	// Only one call consumes it.
	BookingGate chan struct{}

	Bookings   []BookingDraft
	Orders     []OrderRequest
	Verifies   []VerifyRequest
	MarkFailed []FailedPaymentRequest
	markCtxErr []error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		BookingReceipt: BookingReceipt{BookingID: "bk-1"},
		Order:          PaymentOrder{OrderID: "order_1", PaymentRecordID: "pay-row-1"},
		Verdict:        Verification{Verified: true, BookingReference: "REF-1"},
	}
}

func (m *mockBackend) CreateBooking(ctx context.Context, draft BookingDraft) (BookingReceipt, error) {
	m.mu.Lock()
	gate := m.BookingGate
	m.BookingGate = nil
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return BookingReceipt{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bookings = append(m.Bookings, draft)
	if m.BookingErr != nil {
		return BookingReceipt{}, m.BookingErr
	}
	return m.BookingReceipt, nil
}

func (m *mockBackend) CreatePaymentOrder(_ context.Context, _ domain.Entity, req OrderRequest) (PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, req)
	if m.OrderErr != nil {
		return PaymentOrder{}, m.OrderErr
	}
	order := m.Order
	order.BookingID = req.BookingID
	order.Amount = req.Amount
	return order, nil
}

func (m *mockBackend) VerifyPayment(ctx context.Context, _ domain.Entity, req VerifyRequest) (Verification, error) {
	m.mu.Lock()
	m.Verifies = append(m.Verifies, req)
	block := m.VerifyBlock
	gate := m.VerifyGate
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return Verification{}, ctx.Err()
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Verification{}, ctx.Err()
		}
	}
	if m.VerifyErr != nil {
		return Verification{}, m.VerifyErr
	}
	return m.Verdict, nil
}

func (m *mockBackend) MarkPaymentFailed(ctx context.Context, _ domain.Entity, req FailedPaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkFailed = append(m.MarkFailed, req)
	m.markCtxErr = append(m.markCtxErr, ctx.Err())
	return m.MarkFailedErr
}

func (m *mockBackend) verifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Verifies)
}

func (m *mockBackend) calls() (bookings, orders, verifies, markFailed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Bookings), len(m.Orders), len(m.Verifies), len(m.MarkFailed)
}

// flakyStore fails the transition into FailOn once, then behaves like MemoryStore
type flakyStore struct {
	*MemoryStore
	FailOn State
	failed bool
}

func (s *flakyStore) SaveTransition(ctx context.Context, t *Transition) error {
	if !s.failed && t.ToState == s.FailOn {
		s.failed = true
		return errors.New("store unavailable")
	}
	return s.MemoryStore.SaveTransition(ctx, t)
}

// mockGateway answers Collect with a fixed outcome
type mockGateway struct {
	Outcome  GatewayOutcome
	Err      error
	Requests []GatewayRequest
}

func (g *mockGateway) Collect(_ context.Context, req GatewayRequest) (GatewayOutcome, error) {
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return GatewayOutcome{}, g.Err
	}
	out := g.Outcome
	if out.OrderID == "" && !out.Cancelled && out.Error == "" {
		out.OrderID = req.OrderID
	}
	return out, nil
}

func paidOutcome() GatewayOutcome {
	return GatewayOutcome{PaymentID: "pay_1", Signature: "sig_1"}
}

type clearCall struct {
	SessionID string
	Entity    domain.Entity
	EntityID  domain.ID
}

type mockSelections struct {
	mu    sync.Mutex
	Calls []clearCall
}

func (s *mockSelections) Clear(_ context.Context, sessionID string, entity domain.Entity, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, clearCall{SessionID: sessionID, Entity: entity, EntityID: id})
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	States []State
}

func (p *mockPublisher) PublishOutcome(_ context.Context, a *Attempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.States = append(p.States, a.State)
	return nil
}

// activitySnapshot is 2 adults at 500 and 1 child at 350
func activitySnapshot() selection.Snapshot {
	return selection.Snapshot{
		Entity:   domain.EntityActivity,
		EntityID: "42",
		DateID:   "d1",
		Date:     "2026-10-20",
		Lines: []selection.SnapshotLine{
			{TicketTypeID: "adult", Name: "Adult", Kind: domain.TicketAdult, Quantity: 2, ListPrice: domain.FromMajor(500), UnitPrice: domain.FromMajor(500)},
			{TicketTypeID: "child", Name: "Child", Kind: domain.TicketChild, Quantity: 1, ListPrice: domain.FromMajor(350), UnitPrice: domain.FromMajor(350)},
		},
	}
}

func validContact() Contact {
	return Contact{Name: "Asha Rao", Email: "asha@example.com", Phone: "+91 98765 43210"}
}

func validRequest() Request {
	return Request{
		SessionID: "sess-1",
		UserID:    "user-1",
		Selection: activitySnapshot(),
		Contact:   validContact(),
	}
}
