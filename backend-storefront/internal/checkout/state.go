package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

// State is a step of a checkout attempt
type State string

const (
	StateIdle                  State = "IDLE"
	StateValidatingInput       State = "VALIDATING_INPUT"
	StateCreatingBooking       State = "CREATING_BOOKING"
	StateCreatingPaymentOrder  State = "CREATING_PAYMENT_ORDER"
	StateAwaitingGatewayResult State = "AWAITING_GATEWAY_RESULT"
	StateVerifyingPayment      State = "VERIFYING_PAYMENT"
	StateConfirmed             State = "CONFIRMED"
	StateFailed                State = "FAILED"
)

var (
	// ErrInvalidStateTransition is returned when a state transition is not allowed
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrAttemptNotFound is returned when a checkout attempt is not found
	ErrAttemptNotFound = errors.New("checkout attempt not found")
)

// validTransitions defines allowed state transitions.
// FAILED is reachable from every non-terminal state except IDLE.
var validTransitions = map[State][]State{
	StateIdle:                  {StateValidatingInput},
	StateValidatingInput:       {StateIdle, StateCreatingBooking, StateFailed},
	StateCreatingBooking:       {StateCreatingPaymentOrder, StateFailed},
	StateCreatingPaymentOrder:  {StateAwaitingGatewayResult, StateFailed},
	StateAwaitingGatewayResult: {StateVerifyingPayment, StateFailed},
	StateVerifyingPayment:      {StateConfirmed, StateFailed},
	StateConfirmed:             {}, // Terminal state
	StateFailed:                {}, // Terminal state
}

// IsTerminal returns true if the state is a terminal state
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// IsValid returns true if the state is a known checkout state
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if transition to the target state is allowed
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Attempt is one submit of the checkout form and everything the flow learned
// along the way
type Attempt struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"session_id"`
	UserID          string        `json:"user_id,omitempty"`
	Entity          domain.Entity `json:"entity"`
	EntityID        domain.ID     `json:"entity_id"`
	State           State         `json:"state"`
	PreviousState   State         `json:"previous_state,omitempty"`
	Draft           BookingDraft  `json:"draft"`
	BookingID       string        `json:"booking_id,omitempty"`
	OrderID         string        `json:"order_id,omitempty"`
	PaymentRecordID string        `json:"payment_record_id,omitempty"`
	PaymentID       string        `json:"payment_id,omitempty"`
	Failure         *Failure      `json:"failure,omitempty"`
	Transitions     []Transition  `json:"transitions,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// HasOrder reports whether a gateway order exists for this attempt
func (a *Attempt) HasOrder() bool {
	return a.OrderID != ""
}

// Transition is one recorded state change
type Transition struct {
	ID        string    `json:"id"`
	AttemptID string    `json:"attempt_id"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists attempts and their transitions
type Store interface {
	// SaveAttempt persists a new attempt
	SaveAttempt(ctx context.Context, a *Attempt) error
	// GetAttempt retrieves an attempt by ID, without transitions
	GetAttempt(ctx context.Context, id string) (*Attempt, error)
	// UpdateAttempt updates an existing attempt
	UpdateAttempt(ctx context.Context, a *Attempt) error
	// SaveTransition persists a state transition
	SaveTransition(ctx context.Context, t *Transition) error
	// GetTransitions retrieves all transitions for an attempt, oldest first
	GetTransitions(ctx context.Context, attemptID string) ([]Transition, error)
	// GetStaleAttempts retrieves attempts in state last updated before cutoff
	GetStaleAttempts(ctx context.Context, state State, cutoff time.Time, limit int) ([]*Attempt, error)
}

// StateMachine applies and records transitions on attempts
type StateMachine struct {
	store Store
	now   func() time.Time
}

// NewStateMachine creates a new state machine
func NewStateMachine(store Store, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{store: store, now: now}
}

// NewAttempt creates an unsaved attempt in IDLE
func (sm *StateMachine) NewAttempt(sessionID, userID string, entity domain.Entity, entityID domain.ID) *Attempt {
	now := sm.now()
	return &Attempt{
		ID:        generateID(),
		SessionID: sessionID,
		UserID:    userID,
		Entity:    entity,
		EntityID:  entityID,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// apply validates and applies a transition in memory
func (sm *StateMachine) apply(a *Attempt, newState State, reason string) (*Transition, error) {
	if !a.State.CanTransitionTo(newState) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, a.State, newState)
	}

	now := sm.now()
	t := Transition{
		ID:        generateID(),
		AttemptID: a.ID,
		FromState: a.State,
		ToState:   newState,
		Reason:    reason,
		Timestamp: now,
	}

	a.PreviousState = a.State
	a.State = newState
	a.UpdatedAt = now
	if newState.IsTerminal() {
		a.CompletedAt = &now
	}
	a.Transitions = append(a.Transitions, t)
	return &t, nil
}

// Advance applies a transition without persisting it. Used before the
// attempt is first saved.
func (sm *StateMachine) Advance(a *Attempt, newState State, reason string) error {
	_, err := sm.apply(a, newState, reason)
	return err
}

// Create persists a new attempt along with the transitions it has so far
func (sm *StateMachine) Create(ctx context.Context, a *Attempt) error {
	if err := sm.store.SaveAttempt(ctx, a); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	for i := range a.Transitions {
		if err := sm.store.SaveTransition(ctx, &a.Transitions[i]); err != nil {
			return fmt.Errorf("failed to save transition: %w", err)
		}
	}
	return nil
}

// TransitionTo applies a transition and persists it
func (sm *StateMachine) TransitionTo(ctx context.Context, a *Attempt, newState State, reason string) error {
	t, err := sm.apply(a, newState, reason)
	if err != nil {
		return err
	}
	if err := sm.store.SaveTransition(ctx, t); err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}
	if err := sm.store.UpdateAttempt(ctx, a); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	return nil
}

// MarkFailed moves a non-terminal attempt to FAILED with failure attached
func (sm *StateMachine) MarkFailed(ctx context.Context, a *Attempt, failure *Failure) error {
	if a.State.IsTerminal() {
		return fmt.Errorf("%w: cannot transition from terminal state %s", ErrInvalidStateTransition, a.State)
	}
	a.Failure = failure
	return sm.TransitionTo(ctx, a, StateFailed, string(failure.Reason))
}

// Save persists field changes on an attempt without a state change
func (sm *StateMachine) Save(ctx context.Context, a *Attempt) error {
	a.UpdatedAt = sm.now()
	if err := sm.store.UpdateAttempt(ctx, a); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt with its transition history
func (sm *StateMachine) Get(ctx context.Context, id string) (*Attempt, error) {
	a, err := sm.store.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	transitions, err := sm.store.GetTransitions(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Transitions = transitions
	return a, nil
}

// StaleAwaiting returns attempts parked on the gateway since before cutoff
func (sm *StateMachine) StaleAwaiting(ctx context.Context, cutoff time.Time, limit int) ([]*Attempt, error) {
	return sm.store.GetStaleAttempts(ctx, StateAwaitingGatewayResult, cutoff, limit)
}

// generateID generates a unique ID using UUID
func generateID() string {
	return uuid.New().String()
}
