package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RateType selects how a PriceQuote resolves to a displayed number
type RateType string

const (
	RateFull RateType = "full"
	RatePax  RateType = "pax"
)

var ErrInvalidPrice = errors.New("invalid price")

// PriceQuote is the one canonical price shape. Full quotes carry FullRate;
// pax quotes carry AdultPrice and optionally ChildPrice.
type PriceQuote struct {
	RateType   RateType `json:"rate_type"`
	FullRate   Money    `json:"full_rate,omitempty"`
	AdultPrice Money    `json:"adult_price,omitempty"`
	ChildPrice *Money   `json:"child_price,omitempty"`
}

// Display returns the headline price: the full rate, or the adult price for pax quotes
func (q PriceQuote) Display() Money {
	if q.RateType == RatePax {
		return q.AdultPrice
	}
	return q.FullRate
}

// UnitPrice resolves the price for one ticket of the given kind. Child tickets
// on a pax quote without a child price pay the adult price.
func (q PriceQuote) UnitPrice(kind TicketKind) Money {
	if q.RateType != RatePax {
		return q.FullRate
	}
	if kind == TicketChild && q.ChildPrice != nil {
		return *q.ChildPrice
	}
	return q.AdultPrice
}

type rawQuote struct {
	RateType   string `json:"rate_type"`
	FullRate   *Money `json:"full_rate"`
	AdultPrice *Money `json:"adult_price"`
	ChildPrice *Money `json:"child_price"`
	Price      *Money `json:"price"`
}

// NormalizePrice turns any backend price shape into a PriceQuote: a bare
// number, a numeric string, or a {rate_type, full_rate, adult_price,
// child_price} object. Objects without rate_type are classified by the fields
// they carry.
func NormalizePrice(raw json.RawMessage) (PriceQuote, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return PriceQuote{RateType: RateFull}, nil
	}

	if raw[0] != '{' {
		var m Money
		if err := json.Unmarshal(raw, &m); err != nil {
			return PriceQuote{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
		return PriceQuote{RateType: RateFull, FullRate: m}, nil
	}

	var rq rawQuote
	if err := json.Unmarshal(raw, &rq); err != nil {
		return PriceQuote{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}

	rateType := RateType(strings.ToLower(strings.TrimSpace(rq.RateType)))
	if rateType == "" {
		switch {
		case rq.AdultPrice != nil:
			rateType = RatePax
		default:
			rateType = RateFull
		}
	}

	switch rateType {
	case RateFull:
		q := PriceQuote{RateType: RateFull}
		switch {
		case rq.FullRate != nil:
			q.FullRate = *rq.FullRate
		case rq.Price != nil:
			q.FullRate = *rq.Price
		}
		return q, nil
	case RatePax:
		if rq.AdultPrice == nil {
			return PriceQuote{}, fmt.Errorf("%w: pax rate without adult_price", ErrInvalidPrice)
		}
		return PriceQuote{RateType: RatePax, AdultPrice: *rq.AdultPrice, ChildPrice: rq.ChildPrice}, nil
	default:
		return PriceQuote{}, fmt.Errorf("%w: unknown rate_type %q", ErrInvalidPrice, rq.RateType)
	}
}
