package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

var ErrInvalidSnapshot = errors.New("invalid selection snapshot")

// MaxLineQuantity caps the tickets on one line, whatever the ticket's own limit
const MaxLineQuantity = 100

// SnapshotLine is one ticket line handed to checkout
type SnapshotLine struct {
	TicketTypeID domain.ID         `json:"ticket_type_id"`
	Name         string            `json:"name"`
	Kind         domain.TicketKind `json:"kind"`
	Quantity     int               `json:"quantity"`
	ListPrice    domain.Money      `json:"list_price"`
	UnitPrice    domain.Money      `json:"unit_price"`
	LineTotal    domain.Money      `json:"line_total"`
}

// Snapshot is the selection as it crosses into checkout. Totals are derived
// from the lines and recomputed on decode.
type Snapshot struct {
	Entity         domain.Entity  `json:"entity"`
	EntityID       domain.ID      `json:"entity_id"`
	DateID         domain.ID      `json:"date_id,omitempty"`
	Date           string         `json:"date,omitempty"`
	ShowID         domain.ID      `json:"show_id,omitempty"`
	Lines          []SnapshotLine `json:"lines"`
	TotalQuantity  int            `json:"total_quantity"`
	Subtotal       domain.Money   `json:"subtotal"`
	DiscountAmount domain.Money   `json:"discount_amount"`
	TotalAmount    domain.Money   `json:"total_amount"`
}

// Snapshot captures the priced selection for checkout
func (s *Selection) Snapshot() Snapshot {
	snap := Snapshot{
		Entity:   s.entity,
		EntityID: s.entityID,
		DateID:   s.dateID,
		Date:     s.date,
		ShowID:   s.showID,
	}
	for _, line := range s.Lines() {
		snap.Lines = append(snap.Lines, SnapshotLine{
			TicketTypeID: line.Key.TicketTypeID,
			Name:         line.TicketType.Name,
			Kind:         line.TicketType.Kind,
			Quantity:     line.Quantity,
			ListPrice:    line.TicketType.Price,
			UnitPrice:    line.UnitPrice,
		})
	}
	snap.recompute()
	return snap
}

func (snap *Snapshot) recompute() {
	snap.TotalQuantity = 0
	snap.Subtotal = 0
	snap.TotalAmount = 0
	for i := range snap.Lines {
		l := &snap.Lines[i]
		if l.ListPrice < l.UnitPrice {
			l.ListPrice = l.UnitPrice
		}
		l.LineTotal = l.UnitPrice.Mul(l.Quantity)
		snap.TotalQuantity += l.Quantity
		snap.Subtotal += l.ListPrice.Mul(l.Quantity)
		snap.TotalAmount += l.LineTotal
	}
	snap.DiscountAmount = snap.Subtotal - snap.TotalAmount
}

// Validate checks the snapshot can be turned into a booking. Every total the
// lines imply must be positive and within domain.MaxAmount.
func (snap *Snapshot) Validate() error {
	entity, err := domain.ParseEntity(string(snap.Entity))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	snap.Entity = entity
	if snap.EntityID == "" {
		return fmt.Errorf("%w: missing entity id", ErrInvalidSnapshot)
	}
	if len(snap.Lines) == 0 {
		return fmt.Errorf("%w: no tickets selected", ErrInvalidSnapshot)
	}

	var subtotal, total domain.Money
	for _, l := range snap.Lines {
		if l.TicketTypeID == "" {
			return fmt.Errorf("%w: line without ticket type", ErrInvalidSnapshot)
		}
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: ticket %s has quantity %d", ErrInvalidSnapshot, l.TicketTypeID, l.Quantity)
		}
		if l.UnitPrice < 0 || l.ListPrice < 0 {
			return fmt.Errorf("%w: ticket %s has negative price", ErrInvalidSnapshot, l.TicketTypeID)
		}

		list := max(l.ListPrice, l.UnitPrice)
		lineTotal, err := l.UnitPrice.MulChecked(l.Quantity)
		if err == nil {
			total, err = total.AddChecked(lineTotal)
		}
		var listTotal domain.Money
		if err == nil {
			listTotal, err = list.MulChecked(l.Quantity)
		}
		if err == nil {
			subtotal, err = subtotal.AddChecked(listTotal)
		}
		if err != nil {
			return fmt.Errorf("%w: ticket %s: %v", ErrInvalidSnapshot, l.TicketTypeID, err)
		}
	}
	if total <= 0 {
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidSnapshot)
	}
	return nil
}

// EncodeSnapshot serialises a snapshot into a URL-safe token
func EncodeSnapshot(snap Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return url.QueryEscape(string(data)), nil
}

// DecodeSnapshot parses a token produced by EncodeSnapshot, validates it and
// recomputes every derived total from the lines.
func DecodeSnapshot(token string) (Snapshot, error) {
	raw, err := url.QueryUnescape(token)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	snap.recompute()
	return snap, nil
}
