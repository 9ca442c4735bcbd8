package dto

import (
	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
)

// SessionHeader carries the anonymous storefront session id
const SessionHeader = "X-Session-ID"

// SelectDateRequest represents request to pick a visit date
type SelectDateRequest struct {
	DateID domain.ID `json:"date_id" binding:"required"`
}

// SelectShowRequest represents request to pick a show on the selected date
type SelectShowRequest struct {
	ShowID domain.ID `json:"show_id" binding:"required"`
}

// AdjustQuantityRequest represents a +/- on one ticket type
type AdjustQuantityRequest struct {
	TicketTypeID domain.ID `json:"ticket_type_id" binding:"required"`
	Delta        int       `json:"delta" binding:"required,min=-20,max=20"`
}

// TicketOption is a ticket type with its current quantity and button state
type TicketOption struct {
	ID           domain.ID         `json:"id"`
	Name         string            `json:"name"`
	Kind         domain.TicketKind `json:"kind"`
	Price        domain.Money      `json:"price"`
	UnitPrice    domain.Money      `json:"unit_price"`
	Discount     float64           `json:"discount,omitempty"`
	// Limit is -1 when neither a per-user cap nor a slot count applies
	Limit        int               `json:"limit"`
	Quantity     int               `json:"quantity"`
	CanIncrement bool              `json:"can_increment"`
}

// SelectionResponse represents a session's selection for one entity
type SelectionResponse struct {
	Entity         domain.Entity         `json:"entity"`
	EntityID       domain.ID             `json:"entity_id"`
	Dates          []domain.BookableDate `json:"dates,omitempty"`
	DateID         domain.ID             `json:"date_id,omitempty"`
	Date           string                `json:"date,omitempty"`
	ShowID         domain.ID             `json:"show_id,omitempty"`
	Tickets        []TicketOption        `json:"tickets"`
	Lines          []selection.Line      `json:"lines"`
	TotalQuantity  int                   `json:"total_quantity"`
	Subtotal       domain.Money          `json:"subtotal"`
	DiscountAmount domain.Money          `json:"discount_amount"`
	TotalPrice     domain.Money          `json:"total_price"`
	IsComplete     bool                  `json:"is_complete"`
	// Snapshot is the encoded selection to hand to checkout, set once complete
	Snapshot       string                `json:"snapshot,omitempty"`
}

// ToSelectionResponse converts a selection to its response
func ToSelectionResponse(sel *selection.Selection) (*SelectionResponse, error) {
	st := sel.State()
	resp := &SelectionResponse{
		Entity:        sel.Entity(),
		EntityID:      sel.EntityID(),
		Dates:         st.Dates,
		DateID:        sel.DateID(),
		Date:          sel.Date(),
		ShowID:        sel.ShowID(),
		Tickets:       make([]TicketOption, 0, len(st.TicketTypes)),
		Lines:         sel.Lines(),
		TotalQuantity: sel.TotalQuantity(),
		Subtotal:      sel.Subtotal(),
		TotalPrice:    sel.TotalPrice(),
		IsComplete:    sel.IsComplete(),
	}
	resp.DiscountAmount = resp.Subtotal - resp.TotalPrice

	for _, tt := range st.TicketTypes {
		key := sel.KeyFor(tt.ID)
		resp.Tickets = append(resp.Tickets, TicketOption{
			ID:           tt.ID,
			Name:         tt.Name,
			Kind:         tt.Kind,
			Price:        tt.Price,
			UnitPrice:    tt.UnitPrice(),
			Discount:     tt.Discount,
			Limit:        tt.Limit(),
			Quantity:     sel.Quantity(key),
			CanIncrement: sel.CanIncrement(key),
		})
	}

	if resp.IsComplete {
		token, err := selection.EncodeSnapshot(sel.Snapshot())
		if err != nil {
			return nil, err
		}
		resp.Snapshot = token
	}
	return resp, nil
}

// CheckoutRequest represents a checkout form submit. Either Snapshot (the
// encoded selection) or Entity and EntityID (the session's stored selection)
// must be set.
type CheckoutRequest struct {
	Snapshot    string           `json:"snapshot"`
	Entity      string           `json:"entity"`
	EntityID    domain.ID        `json:"entity_id"`
	Contact     checkout.Contact `json:"contact"`
	GuideCharge domain.Money     `json:"guide_charge"`
}

// CheckoutResponse represents a checkout that is waiting on the payment widget
type CheckoutResponse struct {
	AttemptID string                   `json:"attempt_id"`
	State     checkout.State           `json:"state"`
	BookingID string                   `json:"booking_id"`
	Gateway   *checkout.GatewayRequest `json:"gateway"`
}

// GatewayResultRequest represents what the payment widget reported
type GatewayResultRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error"`
}

// Outcome converts the request to a gateway outcome
func (r GatewayResultRequest) Outcome() checkout.GatewayOutcome {
	return checkout.GatewayOutcome{
		OrderID:   r.OrderID,
		PaymentID: r.PaymentID,
		Signature: r.Signature,
		Cancelled: r.Cancelled,
		Error:     r.Error,
	}
}

// AttemptResponse represents a checkout attempt and its history
type AttemptResponse struct {
	ID          string                `json:"id"`
	State       checkout.State        `json:"state"`
	Entity      domain.Entity         `json:"entity"`
	EntityID    domain.ID             `json:"entity_id"`
	BookingID   string                `json:"booking_id,omitempty"`
	OrderID     string                `json:"order_id,omitempty"`
	PaymentID   string                `json:"payment_id,omitempty"`
	TotalAmount domain.Money          `json:"total_amount"`
	Failure     *checkout.Failure     `json:"failure,omitempty"`
	Transitions []checkout.Transition `json:"transitions,omitempty"`
	Confirmed   bool                  `json:"confirmed"`
}

// ToAttemptResponse converts an attempt to its response
func ToAttemptResponse(a *checkout.Attempt) *AttemptResponse {
	return &AttemptResponse{
		ID:          a.ID,
		State:       a.State,
		Entity:      a.Entity,
		EntityID:    a.EntityID,
		BookingID:   a.BookingID,
		OrderID:     a.OrderID,
		PaymentID:   a.PaymentID,
		TotalAmount: a.Draft.TotalAmount,
		Failure:     a.Failure,
		Transitions: a.Transitions,
		Confirmed:   a.State == checkout.StateConfirmed,
	}
}
