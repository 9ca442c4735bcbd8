package events

import (
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

// Topic names for checkout outcome events
const (
	TopicCheckoutConfirmed = "checkout.confirmed"
	TopicCheckoutFailed    = "checkout.failed"
)

// CheckoutConfirmedEvent is published when a payment is verified and the booking confirmed
type CheckoutConfirmedEvent struct {
	EventType    string        `json:"event_type"`
	AttemptID    string        `json:"attempt_id"`
	SessionID    string        `json:"session_id"`
	UserID       string        `json:"user_id,omitempty"`
	Entity       domain.Entity `json:"entity"`
	EntityID     domain.ID     `json:"entity_id"`
	BookingID    string        `json:"booking_id"`
	OrderID      string        `json:"order_id"`
	PaymentID    string        `json:"payment_id"`
	VisitDate    string        `json:"visit_date,omitempty"`
	Quantity     int           `json:"quantity"`
	TotalAmount  domain.Money  `json:"total_amount"`
	ContactEmail string        `json:"contact_email,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning
func (e *CheckoutConfirmedEvent) Key() string {
	return e.BookingID
}

// CheckoutFailedEvent is published when an attempt ends in FAILED
type CheckoutFailedEvent struct {
	EventType   string                 `json:"event_type"`
	AttemptID   string                 `json:"attempt_id"`
	SessionID   string                 `json:"session_id"`
	UserID      string                 `json:"user_id,omitempty"`
	Entity      domain.Entity          `json:"entity"`
	EntityID    domain.ID              `json:"entity_id"`
	BookingID   string                 `json:"booking_id,omitempty"`
	OrderID     string                 `json:"order_id,omitempty"`
	FailedState checkout.State         `json:"failed_state"`
	Reason      checkout.FailureReason `json:"reason"`
	Message     string                 `json:"message"`
	Compensated bool                   `json:"compensated"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Key returns the Kafka message key for partitioning. Attempts that failed
// before a booking existed are keyed by attempt.
func (e *CheckoutFailedEvent) Key() string {
	if e.BookingID != "" {
		return e.BookingID
	}
	return e.AttemptID
}

func newConfirmedEvent(a *checkout.Attempt) *CheckoutConfirmedEvent {
	return &CheckoutConfirmedEvent{
		EventType:    TopicCheckoutConfirmed,
		AttemptID:    a.ID,
		SessionID:    a.SessionID,
		UserID:       a.UserID,
		Entity:       a.Entity,
		EntityID:     a.EntityID,
		BookingID:    a.BookingID,
		OrderID:      a.OrderID,
		PaymentID:    a.PaymentID,
		VisitDate:    a.Draft.VisitDate,
		Quantity:     a.Draft.TotalQuantity(),
		TotalAmount:  a.Draft.TotalAmount,
		ContactEmail: a.Draft.Contact.Email,
		Timestamp:    completedAt(a),
	}
}

func newFailedEvent(a *checkout.Attempt) *CheckoutFailedEvent {
	e := &CheckoutFailedEvent{
		EventType:   TopicCheckoutFailed,
		AttemptID:   a.ID,
		SessionID:   a.SessionID,
		UserID:      a.UserID,
		Entity:      a.Entity,
		EntityID:    a.EntityID,
		BookingID:   a.BookingID,
		OrderID:     a.OrderID,
		FailedState: a.PreviousState,
		Timestamp:   completedAt(a),
	}
	if a.Failure != nil {
		e.Reason = a.Failure.Reason
		e.Message = a.Failure.Message
		e.Compensated = a.Failure.Compensated
	}
	return e
}

func completedAt(a *checkout.Attempt) time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.UpdatedAt
}
