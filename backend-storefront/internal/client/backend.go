package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/middleware"
)

// Backend implements checkout.Backend against the storefront backend's
// per-entity booking and payment endpoints
type Backend struct {
	user          *apiclient.Client
	server        *apiclient.Client
	verifyTimeout time.Duration
}

// NewBackend creates a backend client. Booking, order and verification go out
// on the user client. Mark-failed uses the user client while the caller's
// token is present and falls back to server when it is not, so background
// compensation still reaches the backend. server may be nil.
func NewBackend(user, server *apiclient.Client, verifyTimeout time.Duration) *Backend {
	if verifyTimeout <= 0 {
		verifyTimeout = checkout.DefaultVerifyTimeout
	}
	return &Backend{user: user, server: server, verifyTimeout: verifyTimeout}
}

var _ checkout.Backend = (*Backend)(nil)

type bookingLine struct {
	TicketTypeID domain.ID    `json:"ticket_type_id"`
	Quantity     int          `json:"quantity"`
	Price        domain.Money `json:"price"`
	LineTotal    domain.Money `json:"line_total"`
}

// CreateBooking posts the draft to create-{entity}-booking
func (b *Backend) CreateBooking(ctx context.Context, draft checkout.BookingDraft) (checkout.BookingReceipt, error) {
	lines := make([]bookingLine, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		lines = append(lines, bookingLine{
			TicketTypeID: l.TicketTypeID,
			Quantity:     l.Quantity,
			Price:        l.UnitPrice,
			LineTotal:    l.LineTotal,
		})
	}

	body := map[string]interface{}{
		draft.Entity.IDField(): draft.EntityID,
		"visit_date":           draft.VisitDate,
		"tickets":              lines,
		"total_quantity":       draft.TotalQuantity(),
		"total_amount":         draft.TotalAmount,
		"name":                 draft.Contact.Name,
		"email":                draft.Contact.Email,
		"phone":                draft.Contact.Phone,
	}
	if draft.DateID != "" {
		body["date_id"] = draft.DateID
	}
	if draft.ShowID != "" {
		body["show_id"] = draft.ShowID
	}
	if draft.DiscountAmount > 0 {
		body["discount_amount"] = draft.DiscountAmount
	}
	if draft.GuideCharge > 0 {
		body["guide_charge"] = draft.GuideCharge
	}

	var data map[string]json.RawMessage
	if err := b.user.Post(ctx, draft.Entity.CreateBookingPath(), body, &data); err != nil {
		return checkout.BookingReceipt{}, err
	}

	return checkout.BookingReceipt{
		BookingID: firstString(data, "booking_id", string(draft.Entity)+"_booking_id", "id"),
	}, nil
}

// CreatePaymentOrder posts to {entity}-payment. The amount goes out in base currency.
func (b *Backend) CreatePaymentOrder(ctx context.Context, entity domain.Entity, req checkout.OrderRequest) (checkout.PaymentOrder, error) {
	body := map[string]interface{}{
		entity.IDField(): req.EntityID,
		"booking_id":     req.BookingID,
		"amount":         req.Amount,
	}

	var data map[string]json.RawMessage
	if err := b.user.Post(ctx, entity.PaymentPath(), body, &data); err != nil {
		return checkout.PaymentOrder{}, err
	}

	order := checkout.PaymentOrder{
		OrderID:         firstString(data, "order_id", "razorpay_order_id", "id"),
		BookingID:       req.BookingID,
		Amount:          req.Amount,
		Currency:        firstString(data, "currency"),
		PaymentRecordID: firstString(data, entity.PaymentIDField(), "payment_record_id"),
	}
	return order, nil
}

type verifyData struct {
	Verified         *bool  `json:"verified"`
	Message          string `json:"message"`
	BookingReference string `json:"booking_reference"`
	EmailSent        bool   `json:"email_sent"`
}

// VerifyPayment posts the gateway result to {entity}-payment-verify with the
// extended verification timeout
func (b *Backend) VerifyPayment(ctx context.Context, entity domain.Entity, req checkout.VerifyRequest) (checkout.Verification, error) {
	body := map[string]interface{}{
		"booking_id": req.BookingID,
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
		"signature":  req.Signature,
	}

	var data verifyData
	err := b.user.Post(ctx, entity.PaymentVerifyPath(), body, &data, apiclient.WithCallTimeout(b.verifyTimeout))
	if err != nil {
		return checkout.Verification{}, err
	}

	return checkout.Verification{
		Verified:         data.Verified == nil || *data.Verified,
		Message:          data.Message,
		BookingReference: data.BookingReference,
		EmailSent:        data.EmailSent,
	}, nil
}

// MarkPaymentFailed posts the compensating call to {entity}-payment-failed.
// The payment record id is only sent when known.
func (b *Backend) MarkPaymentFailed(ctx context.Context, entity domain.Entity, req checkout.FailedPaymentRequest) error {
	if req.OrderID == "" {
		return fmt.Errorf("mark payment failed: order id is required")
	}

	body := map[string]interface{}{
		"booking_id": req.BookingID,
		"order_id":   req.OrderID,
		"reason":     string(req.Reason),
	}
	if req.PaymentRecordID != "" {
		body[entity.PaymentIDField()] = req.PaymentRecordID
	}

	c := b.user
	if _, ok := middleware.TokenFromContext(ctx); !ok && b.server != nil {
		c = b.server
	}
	return c.Post(ctx, entity.PaymentFailedPath(), body, nil)
}

// firstString returns the first key present in data as a string. Numeric ids
// are formatted without quotes.
func firstString(data map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		var id domain.ID
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			return id.String()
		}
	}
	return ""
}
