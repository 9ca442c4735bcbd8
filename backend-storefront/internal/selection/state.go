package selection

import (
	"fmt"
	"time"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
)

// Item is one persisted key and quantity
type Item struct {
	Key
	Quantity int `json:"quantity"`
}

// State is the explicit, serialisable form of a Selection
type State struct {
	Entity              domain.Entity         `json:"entity"`
	EntityID            domain.ID             `json:"entity_id"`
	RequiresParticipant bool                  `json:"requires_participant"`
	Dates               []domain.BookableDate `json:"dates,omitempty"`
	DateID              domain.ID             `json:"date_id,omitempty"`
	Date                string                `json:"date,omitempty"`
	ShowID              domain.ID             `json:"show_id,omitempty"`
	TicketTypes         []domain.TicketType   `json:"ticket_types"`
	Items               []Item                `json:"items"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// State captures the selection for persistence
func (s *Selection) State() *State {
	st := &State{
		Entity:              s.entity,
		EntityID:            s.entityID,
		RequiresParticipant: s.requiresParticipant,
		Dates:               s.dates,
		DateID:              s.dateID,
		Date:                s.date,
		ShowID:              s.showID,
		TicketTypes:         s.TicketTypes(),
		Items:               make([]Item, 0, len(s.quantities)),
		UpdatedAt:           time.Now(),
	}
	for _, line := range s.Lines() {
		st.Items = append(st.Items, Item{Key: line.Key, Quantity: line.Quantity})
	}
	return st
}

// Restore rebuilds a Selection from persisted state. Items with non-positive
// quantities or ticket types missing from the price list are rejected.
func Restore(st *State) (*Selection, error) {
	s := &Selection{
		entity:              st.Entity,
		entityID:            st.EntityID,
		requiresParticipant: st.RequiresParticipant,
		multiShow:           st.Entity.MultiShow(),
		dates:               st.Dates,
		dateID:              st.DateID,
		date:                st.Date,
		showID:              st.ShowID,
		quantities:          make(map[Key]int, len(st.Items)),
	}
	s.replacePriceList(st.TicketTypes)

	for _, item := range st.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %s: quantity must be positive, got %d", item.TicketTypeID, item.Quantity)
		}
		if _, ok := s.ticketTypes[item.TicketTypeID]; !ok {
			return nil, fmt.Errorf("item %s: %w", item.TicketTypeID, ErrUnknownTicketType)
		}
		s.quantities[item.Key] += item.Quantity
	}
	return s, nil
}
