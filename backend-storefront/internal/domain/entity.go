package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Entity is one of the three bookable catalog types
type Entity string

const (
	EntityActivity   Entity = "activity"
	EntityAttraction Entity = "attraction"
	EntityEvent      Entity = "event"
)

var ErrUnknownEntity = errors.New("unknown entity")

// ParseEntity accepts the singular or plural form, case-insensitively
func ParseEntity(s string) (Entity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "activity", "activities":
		return EntityActivity, nil
	case "attraction", "attractions":
		return EntityAttraction, nil
	case "event", "events":
		return EntityEvent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
	}
}

// Plural returns the collection name used by the listing endpoint
func (e Entity) Plural() string {
	if e == EntityActivity {
		return "activities"
	}
	return string(e) + "s"
}

// MultiShow reports whether the entity has per-day shows to pick from
func (e Entity) MultiShow() bool {
	return e == EntityEvent
}

func (e Entity) DetailsPath(id string) string        { return "/" + string(e) + "-details/" + id }
func (e Entity) GalleryPath(id string) string        { return "/" + string(e) + "-gallery/" + id }
func (e Entity) CategoriesPath() string              { return "/" + string(e) + "-categories" }
func (e Entity) ListPath() string                    { return "/" + e.Plural() }
func (e Entity) BookingDetailsPath(id string) string { return "/" + string(e) + "-booking-details/" + id }
func (e Entity) TicketPricesPath(id string) string   { return "/" + string(e) + "-ticket-prices/" + id }
func (e Entity) CreateBookingPath() string           { return "/create-" + string(e) + "-booking" }
func (e Entity) PaymentPath() string                 { return "/" + string(e) + "-payment" }
func (e Entity) PaymentVerifyPath() string           { return "/" + string(e) + "-payment-verify" }
func (e Entity) PaymentFailedPath() string           { return "/" + string(e) + "-payment-failed" }

// IDField is the request field naming the entity, e.g. "event_id"
func (e Entity) IDField() string {
	return string(e) + "_id"
}

// PaymentIDField is the field carrying the backend payment record id, e.g. "attraction_payment_id"
func (e Entity) PaymentIDField() string {
	return string(e) + "_payment_id"
}
