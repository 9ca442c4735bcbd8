package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultVerifyTimeout       = 60 * time.Second
	DefaultCompensationTimeout = 10 * time.Second
)

// SelectionClearer drops a session's stored selection once it is paid for
type SelectionClearer interface {
	Clear(ctx context.Context, sessionID string, entity domain.Entity, id domain.ID) error
}

// OutcomePublisher is told about every attempt that reaches a terminal state
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, a *Attempt) error
}

// Config holds the orchestrator's collaborators and settings
type Config struct {
	Backend    Backend
	Store      Store
	Selections SelectionClearer
	Publisher  OutcomePublisher
	Logger     *logger.Logger

	GatewayKey   string
	Currency     string
	MerchantName string

	VerifyTimeout       time.Duration
	CompensationTimeout time.Duration
	Now                 func() time.Time
}

// Request is one submit of the checkout form
type Request struct {
	SessionID   string
	UserID      string
	Selection   selection.Snapshot
	Contact     Contact
	GuideCharge domain.Money
}

// Orchestrator drives a selection through booking, payment order, gateway
// and verification. Only one submit per session and entity runs at a time.
type Orchestrator struct {
	backend    Backend
	sm         *StateMachine
	selections SelectionClearer
	publisher  OutcomePublisher
	logger     *logger.Logger

	gatewayKey   string
	currency     string
	merchantName string

	verifyTimeout       time.Duration
	compensationTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}

	attempts      *telemetry.Counter
	outcomes      *telemetry.Counter
	compensations *telemetry.Counter
	stepLatency   *telemetry.Histogram
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultVerifyTimeout
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = DefaultCompensationTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}

	o := &Orchestrator{
		backend:             cfg.Backend,
		sm:                  NewStateMachine(cfg.Store, cfg.Now),
		selections:          cfg.Selections,
		publisher:           cfg.Publisher,
		logger:              cfg.Logger,
		gatewayKey:          cfg.GatewayKey,
		currency:            cfg.Currency,
		merchantName:        cfg.MerchantName,
		verifyTimeout:       cfg.VerifyTimeout,
		compensationTimeout: cfg.CompensationTimeout,
		inflight:            make(map[string]struct{}),
	}

	o.attempts, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storefront_checkout_attempts_total",
		Description: "Checkout submits that passed validation",
		Unit:        "1",
	})
	o.outcomes, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storefront_checkout_outcomes_total",
		Description: "Checkout attempts reaching a terminal state",
		Unit:        "1",
	})
	o.compensations, _ = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storefront_checkout_compensations_total",
		Description: "Mark-payment-failed calls issued",
		Unit:        "1",
	})
	o.stepLatency, _ = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "storefront_checkout_step_duration_seconds",
		Description: "Duration of backend calls per checkout step",
		Unit:        "s",
	})
	return o
}

// VerifyTimeout returns the allowance given to payment verification
func (o *Orchestrator) VerifyTimeout() time.Duration {
	return o.verifyTimeout
}

// Begin validates the form, creates the booking and the payment order, and
// returns the widget request. The attempt is left in AWAITING_GATEWAY_RESULT
// until Resume is called with the widget's outcome.
//
// A *ValidationError leaves the attempt unsaved in IDLE. Business failures
// return the FAILED attempt together with its *Failure.
func (o *Orchestrator) Begin(ctx context.Context, req Request) (*Attempt, *GatewayRequest, error) {
	release, err := o.acquire(inflightKey(req.SessionID, req.Selection.Entity, req.Selection.EntityID))
	if err != nil {
		return nil, nil, err
	}
	defer release()

	return o.begin(ctx, req)
}

// Resume finishes an attempt with the widget's outcome: a cancel or failure
// is compensated, a payment is verified.
func (o *Orchestrator) Resume(ctx context.Context, attemptID string, outcome GatewayOutcome) (*Attempt, error) {
	a, err := o.sm.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(inflightKey(a.SessionID, a.Entity, a.EntityID))
	if err != nil {
		return a, err
	}
	defer release()

	// re-read under the guard so a concurrent Resume or sweep is seen
	if a, err = o.sm.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	return o.resume(ctx, a, outcome)
}

// Checkout runs a whole attempt around a blocking gateway
func (o *Orchestrator) Checkout(ctx context.Context, req Request, gw Gateway) (*Attempt, error) {
	release, err := o.acquire(inflightKey(req.SessionID, req.Selection.Entity, req.Selection.EntityID))
	if err != nil {
		return nil, err
	}
	defer release()

	a, gwReq, err := o.begin(ctx, req)
	if err != nil {
		return a, err
	}

	outcome, err := gw.Collect(ctx, *gwReq)
	if err != nil {
		outcome = GatewayOutcome{Error: err.Error()}
	}
	return o.resume(ctx, a, outcome)
}

// Get returns an attempt with its transition history
func (o *Orchestrator) Get(ctx context.Context, attemptID string) (*Attempt, error) {
	return o.sm.Get(ctx, attemptID)
}

// ExpireAbandoned fails and compensates attempts that have waited on the
// gateway since before cutoff. Attempts with a submit in flight are skipped.
func (o *Orchestrator) ExpireAbandoned(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := o.sm.StaleAwaiting(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale attempts: %w", err)
	}

	expired := 0
	for _, a := range stale {
		release, err := o.acquire(inflightKey(a.SessionID, a.Entity, a.EntityID))
		if err != nil {
			continue
		}
		current, err := o.sm.Get(ctx, a.ID)
		if err == nil && current.State == StateAwaitingGatewayResult {
			f := newFailure(ReasonPaymentCancelledOrFailed, KindGateway, "", errors.New("payment window abandoned"))
			o.fail(ctx, current, f)
			expired++
		}
		release()
	}
	return expired, nil
}

func (o *Orchestrator) begin(ctx context.Context, req Request) (*Attempt, *GatewayRequest, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.begin")
	defer span.End()
	sctx := context.WithoutCancel(ctx)

	snap := req.Selection
	a := o.sm.NewAttempt(req.SessionID, req.UserID, snap.Entity, snap.EntityID)
	span.SetAttributes(attribute.String("checkout.attempt_id", a.ID), telemetry.EntityAttr(string(snap.Entity)))

	if err := o.sm.Advance(a, StateValidatingInput, "submit"); err != nil {
		return nil, nil, err
	}

	contact := Contact{
		Name:  strings.TrimSpace(req.Contact.Name),
		Email: strings.TrimSpace(req.Contact.Email),
		Phone: strings.TrimSpace(req.Contact.Phone),
	}
	if err := ValidateContact(contact); err != nil {
		_ = o.sm.Advance(a, StateIdle, "validation failed")
		return a, nil, err
	}
	draft, err := NewDraft(snap, contact, req.GuideCharge)
	if err != nil {
		_ = o.sm.Advance(a, StateIdle, "validation failed")
		return a, nil, &ValidationError{Fields: map[string]string{"selection": err.Error()}}
	}
	a.Entity = draft.Entity
	a.Draft = draft

	if err := o.sm.Create(sctx, a); err != nil {
		return nil, nil, err
	}
	o.attempts.Inc(ctx, telemetry.EntityAttr(string(a.Entity)))

	log := o.logger.WithContext(ctx).WithFields(
		zap.String("attempt_id", a.ID),
		zap.String("entity", string(a.Entity)),
		zap.String("entity_id", a.EntityID.String()),
	)

	// Step 1: create booking
	if err := o.sm.TransitionTo(sctx, a, StateCreatingBooking, "input valid"); err != nil {
		log.Error("failed to record booking step", zap.Error(err))
		return a, nil, o.fail(ctx, a, newFailure(ReasonBookingCreationFailed, KindTransport, "", err))
	}
	start := time.Now()
	receipt, err := o.backend.CreateBooking(sctx, draft)
	o.observe(ctx, StateCreatingBooking, start)
	if err != nil || receipt.BookingID == "" {
		f := bookingFailure(receipt, err)
		log.Warn("booking creation failed", zap.String("reason", string(f.Reason)), zap.Error(err))
		return a, nil, o.fail(ctx, a, f)
	}
	a.BookingID = receipt.BookingID

	// Step 2: create payment order
	if err := o.sm.TransitionTo(sctx, a, StateCreatingPaymentOrder, "booking created"); err != nil {
		log.Error("failed to record payment order step", zap.String("booking_id", a.BookingID), zap.Error(err))
		return a, nil, o.fail(ctx, a, newFailure(ReasonOrderCreationFailed, KindTransport, "", err))
	}
	start = time.Now()
	order, err := o.backend.CreatePaymentOrder(sctx, a.Entity, OrderRequest{
		EntityID:  a.EntityID,
		BookingID: a.BookingID,
		Amount:    draft.TotalAmount,
	})
	o.observe(ctx, StateCreatingPaymentOrder, start)
	a.PaymentRecordID = order.PaymentRecordID
	if err != nil || order.OrderID == "" {
		f := newFailure(ReasonOrderCreationFailed, errorKind(err), serverMessage(err), orMissing(err, "order id"))
		log.Warn("payment order creation failed",
			zap.String("booking_id", a.BookingID),
			zap.Error(err),
		)
		return a, nil, o.fail(ctx, a, f)
	}
	a.OrderID = order.OrderID

	// Step 3: hand over to the gateway
	if err := o.sm.TransitionTo(sctx, a, StateAwaitingGatewayResult, "order created"); err != nil {
		return a, nil, o.fail(ctx, a, newFailure(ReasonOrderCreationFailed, KindTransport, "", err))
	}

	log.Info("checkout awaiting gateway",
		zap.String("booking_id", a.BookingID),
		zap.String("order_id", a.OrderID),
		zap.Int64("amount_minor", draft.TotalAmount.Minor()),
	)
	return a, o.gatewayRequest(a), nil
}

func (o *Orchestrator) resume(ctx context.Context, a *Attempt, outcome GatewayOutcome) (*Attempt, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.resume")
	defer span.End()
	sctx := context.WithoutCancel(ctx)
	span.SetAttributes(attribute.String("checkout.attempt_id", a.ID), telemetry.EntityAttr(string(a.Entity)))

	if a.State != StateAwaitingGatewayResult {
		return a, fmt.Errorf("%w: attempt is %s", ErrInvalidStateTransition, a.State)
	}

	log := o.logger.WithContext(ctx).WithFields(
		zap.String("attempt_id", a.ID),
		zap.String("order_id", a.OrderID),
	)

	if !outcome.Succeeded() {
		var err error
		if outcome.Error != "" {
			err = errors.New(outcome.Error)
		}
		log.Info("gateway cancelled or failed", zap.Bool("cancelled", outcome.Cancelled), zap.String("error", outcome.Error))
		return a, o.fail(ctx, a, newFailure(ReasonPaymentCancelledOrFailed, KindGateway, "", err))
	}
	if outcome.OrderID != "" && outcome.OrderID != a.OrderID {
		err := fmt.Errorf("gateway returned order %s, expected %s", outcome.OrderID, a.OrderID)
		return a, o.fail(ctx, a, newFailure(ReasonVerificationFailed, KindBusiness, "", err))
	}

	a.PaymentID = outcome.PaymentID
	if err := o.sm.TransitionTo(sctx, a, StateVerifyingPayment, "gateway returned payment"); err != nil {
		return a, err
	}

	// the caller going away must not turn a possibly captured payment into a
	// resubmittable failure
	vctx, cancel := context.WithTimeout(sctx, o.verifyTimeout)
	start := time.Now()
	verdict, err := o.backend.VerifyPayment(vctx, a.Entity, VerifyRequest{
		BookingID: a.BookingID,
		OrderID:   a.OrderID,
		PaymentID: outcome.PaymentID,
		Signature: outcome.Signature,
	})
	timedOut := vctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	cancel()
	o.observe(ctx, StateVerifyingPayment, start)

	switch {
	case err != nil && (timedOut || apiclient.IsTimeout(err)):
		log.Warn("payment verification timed out", zap.Duration("allowance", o.verifyTimeout), zap.Error(err))
		return a, o.fail(ctx, a, newFailure(ReasonVerificationTimeout, KindTransport, "", err))
	case err != nil:
		log.Warn("payment verification failed", zap.Error(err))
		return a, o.fail(ctx, a, newFailure(ReasonVerificationFailed, errorKind(err), serverMessage(err), err))
	case !verdict.Verified:
		log.Warn("payment rejected by verification", zap.String("message", verdict.Message))
		return a, o.fail(ctx, a, newFailure(ReasonVerificationFailed, KindBusiness, verdict.Message, nil))
	}

	if err := o.sm.TransitionTo(sctx, a, StateConfirmed, "payment verified"); err != nil {
		return a, err
	}
	o.outcomes.Inc(ctx, telemetry.EntityAttr(string(a.Entity)), telemetry.CheckoutStateAttr(string(StateConfirmed)))
	log.Info("checkout confirmed",
		zap.String("booking_id", a.BookingID),
		zap.String("payment_id", a.PaymentID),
	)

	if o.selections != nil {
		if err := o.selections.Clear(sctx, a.SessionID, a.Entity, a.EntityID); err != nil {
			log.Warn("failed to clear selection after confirmation", zap.Error(err))
		}
	}
	o.publish(sctx, a)
	return a, nil
}

// fail compensates when an order exists, then records FAILED. The returned
// failure is the one attached to the attempt.
func (o *Orchestrator) fail(ctx context.Context, a *Attempt, f *Failure) *Failure {
	sctx := context.WithoutCancel(ctx)
	if a.HasOrder() {
		f.Compensated = o.compensate(ctx, a, f.Reason)
	}
	if err := o.sm.MarkFailed(sctx, a, f); err != nil {
		o.logger.WithContext(ctx).Error("failed to record checkout failure",
			zap.String("attempt_id", a.ID),
			zap.String("reason", string(f.Reason)),
			zap.Error(err),
		)
	}
	telemetry.SetSpanError(ctx, f)
	o.outcomes.Inc(ctx,
		telemetry.EntityAttr(string(a.Entity)),
		telemetry.CheckoutStateAttr(string(StateFailed)),
		telemetry.FailReasonAttr(string(f.Reason)),
	)
	o.publish(sctx, a)
	return f
}

// compensate issues the mark-failed call on a context detached from the
// caller's cancellation. Failures are logged and reported as false.
func (o *Orchestrator) compensate(ctx context.Context, a *Attempt, reason FailureReason) bool {
	log := o.logger.WithContext(ctx).WithFields(
		zap.String("attempt_id", a.ID),
		zap.String("order_id", a.OrderID),
		zap.String("reason", string(reason)),
	)
	if !a.HasOrder() {
		log.Debug("no payment order to compensate")
		return false
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.compensationTimeout)
	defer cancel()

	err := o.backend.MarkPaymentFailed(cctx, a.Entity, FailedPaymentRequest{
		BookingID:       a.BookingID,
		OrderID:         a.OrderID,
		PaymentRecordID: a.PaymentRecordID,
		Reason:          reason,
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	o.compensations.Inc(ctx,
		telemetry.EntityAttr(string(a.Entity)),
		telemetry.FailReasonAttr(string(reason)),
		attribute.String("status", status),
	)

	if err != nil {
		log.Warn("compensating mark-failed call failed", zap.Error(err))
		return false
	}
	log.Info("payment marked failed")
	return true
}

func (o *Orchestrator) publish(ctx context.Context, a *Attempt) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishOutcome(ctx, a); err != nil {
		o.logger.WithContext(ctx).Warn("failed to publish checkout outcome",
			zap.String("attempt_id", a.ID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) gatewayRequest(a *Attempt) *GatewayRequest {
	return &GatewayRequest{
		AttemptID:   a.ID,
		Key:         o.gatewayKey,
		Amount:      a.Draft.TotalAmount.Minor(),
		Currency:    o.currency,
		Name:        o.merchantName,
		Description: fmt.Sprintf("%s booking %s", a.Entity, a.BookingID),
		OrderID:     a.OrderID,
		Prefill: Prefill{
			Name:    a.Draft.Contact.Name,
			Email:   a.Draft.Contact.Email,
			Contact: a.Draft.Contact.Phone,
		},
	}
}

func (o *Orchestrator) observe(ctx context.Context, step State, start time.Time) {
	o.stepLatency.Record(ctx, time.Since(start).Seconds(), telemetry.CheckoutStepAttr(string(step)))
}

func (o *Orchestrator) acquire(key string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[key]; busy {
		return nil, ErrSubmitInFlight
	}
	o.inflight[key] = struct{}{}
	return func() {
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
	}, nil
}

func inflightKey(sessionID string, entity domain.Entity, entityID domain.ID) string {
	return sessionID + "|" + string(entity) + "|" + string(entityID)
}

func bookingFailure(receipt BookingReceipt, err error) *Failure {
	if err == nil {
		return newFailure(ReasonBookingCreationFailed, KindBusiness, receipt.Message, errors.New("booking id missing from response"))
	}
	if errors.Is(err, apiclient.ErrNoToken) {
		return newFailure(ReasonAuthenticationExpired, KindBusiness, "", err)
	}
	if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Unauthorized() {
		return newFailure(ReasonAuthenticationExpired, KindBusiness, "", err)
	}
	return newFailure(ReasonBookingCreationFailed, errorKind(err), serverMessage(err), err)
}

func errorKind(err error) ErrorKind {
	if _, ok := apiclient.AsAPIError(err); ok || err == nil {
		return KindBusiness
	}
	return KindTransport
}

func serverMessage(err error) string {
	if apiErr, ok := apiclient.AsAPIError(err); ok {
		return apiErr.Message
	}
	return ""
}

func orMissing(err error, what string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%s missing from response", what)
}
