package domain

import (
	"encoding/json"
	"strings"
)

// TicketKind distinguishes adult and child tickets for pax pricing and the
// one-participant minimum
type TicketKind string

const (
	TicketAdult TicketKind = "adult"
	TicketChild TicketKind = "child"
	TicketOther TicketKind = "other"
)

// KindFromName infers the kind from a ticket type's display name
func KindFromName(name string) TicketKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "child"), strings.Contains(n, "kid"):
		return TicketChild
	case strings.Contains(n, "adult"):
		return TicketAdult
	default:
		return TicketOther
	}
}

// TicketType is a purchasable ticket line. Price is the list price before any discount.
type TicketType struct {
	ID             ID         `json:"id"`
	Name           string     `json:"name"`
	Kind           TicketKind `json:"kind"`
	Price          Money      `json:"price"`
	MaxPerUser     int        `json:"maximum_allowed_bookings_per_user"`
	AvailableSlots int        `json:"available_slots"`
	Discount       float64    `json:"discount,omitempty"`
}

// UnitPrice is the price charged per ticket after the discount percentage
func (t TicketType) UnitPrice() Money {
	if t.Discount <= 0 {
		return t.Price
	}
	return t.Price - t.Price.Percent(t.Discount)
}

// Limit is the highest quantity a user may select: the lower of the per-user
// cap and the remaining slots. Zero values mean "no limit from this source".
func (t TicketType) Limit() int {
	limit := -1
	if t.MaxPerUser > 0 {
		limit = t.MaxPerUser
	}
	if t.AvailableSlots >= 0 && (limit < 0 || t.AvailableSlots < limit) {
		limit = t.AvailableSlots
	}
	return limit
}

type rawTicketType struct {
	ID             ID              `json:"id"`
	TicketTypeID   ID              `json:"ticket_type_id"`
	Name           string          `json:"name"`
	TicketName     string          `json:"ticket_name"`
	Kind           TicketKind      `json:"kind"`
	Price          json.RawMessage `json:"price"`
	MaxPerUser     *int            `json:"maximum_allowed_bookings_per_user"`
	AvailableSlots *int            `json:"available_slots"`
	Discount       flexFloat       `json:"discount"`
}

// UnmarshalJSON tolerates the id/name aliases the backend uses across entities
// and prices given as numbers, strings or rate objects.
func (t *TicketType) UnmarshalJSON(data []byte) error {
	var raw rawTicketType
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = TicketType{
		ID:             raw.ID,
		Name:           raw.Name,
		Kind:           raw.Kind,
		AvailableSlots: -1,
		Discount:       float64(raw.Discount),
	}
	if t.ID == "" {
		t.ID = raw.TicketTypeID
	}
	if t.Name == "" {
		t.Name = raw.TicketName
	}
	if t.Kind == "" {
		t.Kind = KindFromName(t.Name)
	}
	if raw.MaxPerUser != nil {
		t.MaxPerUser = *raw.MaxPerUser
	}
	if raw.AvailableSlots != nil {
		t.AvailableSlots = *raw.AvailableSlots
	}

	q, err := NormalizePrice(raw.Price)
	if err != nil {
		return err
	}
	t.Price = q.UnitPrice(t.Kind)
	return nil
}

// Show is a time slot on a bookable date
type Show struct {
	ID        ID     `json:"id"`
	StartTime string `json:"start_time"`
	Label     string `json:"label,omitempty"`
}

// BookableDate is a date the entity can be visited on
type BookableDate struct {
	ID    ID     `json:"id"`
	Date  string `json:"date"`
	Shows []Show `json:"shows,omitempty"`
}

// BookingDetails is everything needed to build a selection for one entity
type BookingDetails struct {
	EntityID            ID             `json:"entity_id"`
	Title               string         `json:"title"`
	Dates               []BookableDate `json:"dates"`
	TicketTypes         []TicketType   `json:"ticket_types"`
	RequiresParticipant bool           `json:"requires_participant"`
	GuideCharge         Money          `json:"guide_charge,omitempty"`
}

// FindDate returns the bookable date with the given id
func (b BookingDetails) FindDate(id ID) (BookableDate, bool) {
	for _, d := range b.Dates {
		if d.ID == id {
			return d, true
		}
	}
	return BookableDate{}, false
}
