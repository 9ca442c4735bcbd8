package checkout

import (
	"fmt"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
)

// Contact is the buyer's details from the checkout form
type Contact struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone" validate:"required,phone"`
}

// DraftLine is one ticket line of a booking
type DraftLine struct {
	TicketTypeID domain.ID    `json:"ticket_type_id"`
	Name         string       `json:"name,omitempty"`
	Quantity     int          `json:"quantity"`
	UnitPrice    domain.Money `json:"unit_price"`
	LineTotal    domain.Money `json:"line_total"`
}

// BookingDraft is what create-booking receives. TotalAmount is derived from
// the lines and the guide charge.
type BookingDraft struct {
	Entity         domain.Entity `json:"entity"`
	EntityID       domain.ID     `json:"entity_id"`
	VisitDate      string        `json:"visit_date,omitempty"`
	DateID         domain.ID     `json:"date_id,omitempty"`
	ShowID         domain.ID     `json:"show_id,omitempty"`
	Lines          []DraftLine   `json:"tickets"`
	Subtotal       domain.Money  `json:"subtotal"`
	DiscountAmount domain.Money  `json:"discount_amount,omitempty"`
	GuideCharge    domain.Money  `json:"guide_charge,omitempty"`
	TotalAmount    domain.Money  `json:"total_amount"`
	Contact        Contact       `json:"contact"`
}

// TotalQuantity sums the ticket quantities
func (d BookingDraft) TotalQuantity() int {
	n := 0
	for _, l := range d.Lines {
		n += l.Quantity
	}
	return n
}

// NewDraft builds a draft from a checkout-boundary snapshot. Line totals and
// the grand total are recomputed here, never copied from the snapshot.
func NewDraft(snap selection.Snapshot, contact Contact, guideCharge domain.Money) (BookingDraft, error) {
	if err := snap.Validate(); err != nil {
		return BookingDraft{}, err
	}
	if guideCharge < 0 || guideCharge > domain.MaxAmount {
		return BookingDraft{}, fmt.Errorf("%w: guide charge %s", domain.ErrAmountOutOfRange, guideCharge)
	}

	d := BookingDraft{
		Entity:      snap.Entity,
		EntityID:    snap.EntityID,
		VisitDate:   snap.Date,
		DateID:      snap.DateID,
		ShowID:      snap.ShowID,
		Lines:       make([]DraftLine, 0, len(snap.Lines)),
		GuideCharge: guideCharge,
		Contact:     contact,
	}

	var total domain.Money
	for _, l := range snap.Lines {
		lineTotal, err := l.UnitPrice.MulChecked(l.Quantity)
		if err != nil {
			return BookingDraft{}, err
		}
		listTotal, err := max(l.ListPrice, l.UnitPrice).MulChecked(l.Quantity)
		if err != nil {
			return BookingDraft{}, err
		}
		if d.Subtotal, err = d.Subtotal.AddChecked(listTotal); err != nil {
			return BookingDraft{}, err
		}
		if total, err = total.AddChecked(lineTotal); err != nil {
			return BookingDraft{}, err
		}
		d.Lines = append(d.Lines, DraftLine{
			TicketTypeID: l.TicketTypeID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LineTotal:    lineTotal,
		})
	}
	d.DiscountAmount = d.Subtotal - total

	grand, err := total.AddChecked(guideCharge)
	if err != nil {
		return BookingDraft{}, err
	}
	if grand <= 0 {
		return BookingDraft{}, fmt.Errorf("%w: total amount must be positive", domain.ErrAmountOutOfRange)
	}
	d.TotalAmount = grand
	return d, nil
}
