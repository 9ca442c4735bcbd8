package selection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

var (
	// ErrLimitExceeded rejects an increment past available slots or the per-user cap
	ErrLimitExceeded = errors.New("ticket limit exceeded")
	// ErrUnknownTicketType is returned for a ticket type missing from the active price list
	ErrUnknownTicketType = errors.New("ticket type not in active price list")
	// ErrUnknownDate is returned when selecting a date the entity does not offer
	ErrUnknownDate = errors.New("date not bookable")
	// ErrUnknownShow is returned when selecting a show not offered on the selected date
	ErrUnknownShow = errors.New("show not offered on selected date")
	// ErrStaleKey is returned for a key pinned to a date or show that is no longer selected
	ErrStaleKey = errors.New("selection key does not match selected date/show")
	// ErrNoDate is returned when tickets are chosen before a date
	ErrNoDate = errors.New("no date selected")
)

// Key identifies one selected line. Entities without dates or shows leave
// those parts empty.
type Key struct {
	DateID       domain.ID `json:"date_id,omitempty"`
	ShowID       domain.ID `json:"show_id,omitempty"`
	TicketTypeID domain.ID `json:"ticket_type_id"`
}

// Line is a priced view of one selected key
type Line struct {
	Key        Key               `json:"key"`
	TicketType domain.TicketType `json:"ticket_type"`
	Quantity   int               `json:"quantity"`
	UnitPrice  domain.Money      `json:"unit_price"`
	LineTotal  domain.Money      `json:"line_total"`
}

// Selection is one session's in-progress choice for one entity. Quantities
// are always positive: a key that reaches zero is removed. Not safe for
// concurrent use.
type Selection struct {
	entity              domain.Entity
	entityID            domain.ID
	requiresParticipant bool
	multiShow           bool
	dates               []domain.BookableDate

	dateID domain.ID
	date   string
	showID domain.ID

	ticketTypes map[domain.ID]domain.TicketType
	ticketOrder []domain.ID
	quantities  map[Key]int
}

// New creates an empty selection for an entity from its booking details. The
// details' ticket types become the active price list until a date is chosen.
func New(entity domain.Entity, details domain.BookingDetails) *Selection {
	s := &Selection{
		entity:              entity,
		entityID:            details.EntityID,
		requiresParticipant: details.RequiresParticipant,
		multiShow:           entity.MultiShow(),
		dates:               details.Dates,
		quantities:          make(map[Key]int),
	}
	s.replacePriceList(details.TicketTypes)
	return s
}

func (s *Selection) Entity() domain.Entity { return s.entity }
func (s *Selection) EntityID() domain.ID   { return s.entityID }
func (s *Selection) DateID() domain.ID     { return s.dateID }
func (s *Selection) Date() string          { return s.date }
func (s *Selection) ShowID() domain.ID     { return s.showID }
func (s *Selection) MultiShow() bool       { return s.multiShow }

// FindDate returns the offered date with the given id
func (s *Selection) FindDate(dateID domain.ID) (domain.BookableDate, bool) {
	for _, d := range s.dates {
		if d.ID == dateID {
			return d, true
		}
	}
	return domain.BookableDate{}, false
}

// KeyFor builds the key for a ticket type under the current date and show
func (s *Selection) KeyFor(ticketTypeID domain.ID) Key {
	return Key{DateID: s.dateID, ShowID: s.showID, TicketTypeID: ticketTypeID}
}

// TicketTypes returns the active price list in backend order
func (s *Selection) TicketTypes() []domain.TicketType {
	out := make([]domain.TicketType, 0, len(s.ticketOrder))
	for _, id := range s.ticketOrder {
		out = append(out, s.ticketTypes[id])
	}
	return out
}

// Quantity returns the selected quantity for key, zero when absent
func (s *Selection) Quantity(key Key) int {
	return s.quantities[key]
}

// SelectDate makes dateID current and replaces the active price list with
// ticketTypes. Keys for other dates, and for ticket types absent from the
// new list, are dropped. Prices from the previous date never carry over.
func (s *Selection) SelectDate(dateID domain.ID, ticketTypes []domain.TicketType) error {
	d, ok := s.FindDate(dateID)
	if !ok && len(s.dates) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDate, dateID)
	}

	if s.dateID != dateID {
		s.showID = ""
	}
	s.dateID = dateID
	s.date = d.Date
	s.replacePriceList(ticketTypes)

	for key := range s.quantities {
		if key.DateID != s.dateID {
			delete(s.quantities, key)
			continue
		}
		if _, ok := s.ticketTypes[key.TicketTypeID]; !ok {
			delete(s.quantities, key)
		}
	}
	return nil
}

// SelectShow picks a show on the current date. Keys pinned to other shows are
// dropped; keys chosen before any show move to this one.
func (s *Selection) SelectShow(showID domain.ID) error {
	if s.dateID == "" {
		return ErrNoDate
	}
	if d, ok := s.FindDate(s.dateID); ok && len(d.Shows) > 0 {
		found := false
		for _, sh := range d.Shows {
			if sh.ID == showID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownShow, showID)
		}
	}

	s.showID = showID
	for key, q := range s.quantities {
		if key.ShowID == showID {
			continue
		}
		delete(s.quantities, key)
		if key.ShowID == "" {
			// chosen before any show: carry over to the show just picked
			key.ShowID = showID
			s.quantities[key] += q
		}
	}
	return nil
}

// CanIncrement reports whether one more ticket may be added for key. A false
// result is the disabled "+" button.
func (s *Selection) CanIncrement(key Key) bool {
	tt, ok := s.ticketTypes[key.TicketTypeID]
	if !ok || s.stale(key) {
		return false
	}
	return s.quantities[key]+1 <= lineLimit(tt)
}

// lineLimit is the ticket's own limit, never above MaxLineQuantity
func lineLimit(tt domain.TicketType) int {
	limit := tt.Limit()
	if limit < 0 || limit > MaxLineQuantity {
		return MaxLineQuantity
	}
	return limit
}

// SetQuantity applies delta to key and returns the resulting quantity.
// Increments past the ticket's limit are rejected with ErrLimitExceeded and
// leave the selection unchanged. Decrements clamp at zero, or at one for
// adult tickets when a participant is required. Zero removes the key.
func (s *Selection) SetQuantity(key Key, delta int) (int, error) {
	tt, ok := s.ticketTypes[key.TicketTypeID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTicketType, key.TicketTypeID)
	}
	if len(s.dates) > 0 && s.dateID == "" {
		return 0, ErrNoDate
	}
	if s.stale(key) {
		return 0, ErrStaleKey
	}

	current := s.quantities[key]
	next := current + delta

	if delta > 0 {
		if limit := lineLimit(tt); next > limit {
			return current, fmt.Errorf("%w: %s allows at most %d", ErrLimitExceeded, tt.Name, limit)
		}
	}

	floor := 0
	if s.requiresParticipant && tt.Kind == domain.TicketAdult && current >= 1 {
		floor = 1
	}
	if next < floor {
		next = floor
	}

	if next == 0 {
		delete(s.quantities, key)
		return 0, nil
	}
	s.quantities[key] = next
	return next, nil
}

// TotalQuantity sums all selected quantities
func (s *Selection) TotalQuantity() int {
	total := 0
	for _, q := range s.quantities {
		total += q
	}
	return total
}

// TotalPrice sums quantity times unit price, with unit prices taken from the
// active price list
func (s *Selection) TotalPrice() domain.Money {
	var total domain.Money
	for key, q := range s.quantities {
		total += s.ticketTypes[key.TicketTypeID].UnitPrice().Mul(q)
	}
	return total
}

// Subtotal sums quantity times list price, before ticket discounts
func (s *Selection) Subtotal() domain.Money {
	var total domain.Money
	for key, q := range s.quantities {
		total += s.ticketTypes[key.TicketTypeID].Price.Mul(q)
	}
	return total
}

// IsComplete gates the continue action: at least one ticket, a date when the
// entity offers dates, and a show for multi-show entities.
func (s *Selection) IsComplete() bool {
	if s.TotalQuantity() == 0 {
		return false
	}
	if len(s.dates) > 0 && s.dateID == "" {
		return false
	}
	if s.multiShow && s.showID == "" {
		return false
	}
	return true
}

// Lines returns the selected lines ordered as the price list is
func (s *Selection) Lines() []Line {
	rank := make(map[domain.ID]int, len(s.ticketOrder))
	for i, id := range s.ticketOrder {
		rank[id] = i
	}

	lines := make([]Line, 0, len(s.quantities))
	for key, q := range s.quantities {
		tt := s.ticketTypes[key.TicketTypeID]
		unit := tt.UnitPrice()
		lines = append(lines, Line{
			Key:        key,
			TicketType: tt,
			Quantity:   q,
			UnitPrice:  unit,
			LineTotal:  unit.Mul(q),
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		return rank[lines[i].Key.TicketTypeID] < rank[lines[j].Key.TicketTypeID]
	})
	return lines
}

// Clear removes every selected quantity and keeps the date and price list
func (s *Selection) Clear() {
	s.quantities = make(map[Key]int)
}

func (s *Selection) stale(key Key) bool {
	return key.DateID != s.dateID || key.ShowID != s.showID
}

func (s *Selection) replacePriceList(ticketTypes []domain.TicketType) {
	s.ticketTypes = make(map[domain.ID]domain.TicketType, len(ticketTypes))
	s.ticketOrder = make([]domain.ID, 0, len(ticketTypes))
	for _, tt := range ticketTypes {
		if _, dup := s.ticketTypes[tt.ID]; !dup {
			s.ticketOrder = append(s.ticketOrder, tt.ID)
		}
		s.ticketTypes[tt.ID] = tt
	}
}
