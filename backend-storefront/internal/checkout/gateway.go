package checkout

import (
	"context"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

// Prefill is the contact data handed to the payment widget
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// GatewayRequest is everything the payment widget needs to open. Amount is
// in minor units.
type GatewayRequest struct {
	AttemptID   string  `json:"attempt_id"`
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	Prefill     Prefill `json:"prefill"`
}

// GatewayOutcome is what the widget reports back
type GatewayOutcome struct {
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Succeeded reports whether the widget returned a payment to verify
func (o GatewayOutcome) Succeeded() bool {
	return !o.Cancelled && o.Error == "" && o.PaymentID != "" && o.Signature != ""
}

// Gateway runs the payment widget and blocks until the user finishes with it.
// A cancelled modal is a GatewayOutcome with Cancelled set, not an error.
type Gateway interface {
	Collect(ctx context.Context, req GatewayRequest) (GatewayOutcome, error)
}

// BookingReceipt is create-booking's answer
type BookingReceipt struct {
	BookingID string
	Message   string
}

// OrderRequest asks for a gateway order against a booking. Amount is sent in
// base currency.
type OrderRequest struct {
	EntityID  domain.ID
	BookingID string
	Amount    domain.Money
}

// PaymentOrder is a created gateway order. PaymentRecordID is the backend's
// own payment row id, when it returns one.
type PaymentOrder struct {
	OrderID         string
	BookingID       string
	Amount          domain.Money
	Currency        string
	PaymentRecordID string
}

// VerifyRequest is the gateway result sent for server verification
type VerifyRequest struct {
	BookingID string
	OrderID   string
	PaymentID string
	Signature string
}

// Verification is the backend's verdict on a payment
type Verification struct {
	Verified         bool
	Message          string
	BookingReference string
	EmailSent        bool
}

// FailedPaymentRequest is the compensating mark-failed call. PaymentRecordID
// is optional.
type FailedPaymentRequest struct {
	BookingID       string
	OrderID         string
	PaymentRecordID string
	Reason          FailureReason
}

// Backend is the booking and payment API the orchestrator drives
type Backend interface {
	CreateBooking(ctx context.Context, draft BookingDraft) (BookingReceipt, error)
	CreatePaymentOrder(ctx context.Context, entity domain.Entity, req OrderRequest) (PaymentOrder, error)
	VerifyPayment(ctx context.Context, entity domain.Entity, req VerifyRequest) (Verification, error)
	MarkPaymentFailed(ctx context.Context, entity domain.Entity, req FailedPaymentRequest) error
}
