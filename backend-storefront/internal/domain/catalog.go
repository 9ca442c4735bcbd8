package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend identifier that may arrive as a JSON string or number
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// CatalogItem is the display-ready shape of an activity, attraction or event.
// Prices are normalised once, on decode.
type CatalogItem struct {
	ID          ID           `json:"id"`
	Title       string       `json:"title"`
	Location    string       `json:"location,omitempty"`
	Address     string       `json:"address,omitempty"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Media       []string     `json:"media,omitempty"`
	Latitude    float64      `json:"latitude,omitempty"`
	Longitude   float64      `json:"longitude,omitempty"`
	Prices      []PriceQuote `json:"prices"`
}

// DisplayPrice returns the lowest headline price, or zero when unpriced
func (c CatalogItem) DisplayPrice() Money {
	var lowest Money
	for i, q := range c.Prices {
		if p := q.Display(); i == 0 || p < lowest {
			lowest = p
		}
	}
	return lowest
}

type rawCatalogItem struct {
	ID          ID              `json:"id"`
	Title       string          `json:"title"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	Address     string          `json:"address"`
	Description string          `json:"description"`
	Category    json.RawMessage `json:"category"`
	Images      []string        `json:"images"`
	Media       []string        `json:"media"`
	Latitude    flexFloat       `json:"latitude"`
	Longitude   flexFloat       `json:"longitude"`
	Price       json.RawMessage `json:"price"`
	Prices      json.RawMessage `json:"prices"`
}

// UnmarshalJSON accepts the backend's per-entity variations: name vs title,
// images vs media, a single price vs a price list, string or object category.
func (c *CatalogItem) UnmarshalJSON(data []byte) error {
	var raw rawCatalogItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = CatalogItem{
		ID:          raw.ID,
		Title:       raw.Title,
		Location:    raw.Location,
		Address:     raw.Address,
		Description: raw.Description,
		Category:    categoryName(raw.Category),
		Media:       raw.Media,
		Latitude:    float64(raw.Latitude),
		Longitude:   float64(raw.Longitude),
	}
	if c.Title == "" {
		c.Title = raw.Name
	}
	if len(c.Media) == 0 {
		c.Media = raw.Images
	}

	prices, err := normalizePrices(raw.Prices, raw.Price)
	if err != nil {
		return fmt.Errorf("item %s: %w", raw.ID, err)
	}
	c.Prices = prices
	return nil
}

func normalizePrices(list, single json.RawMessage) ([]PriceQuote, error) {
	list = bytes.TrimSpace(list)
	if len(list) > 0 && list[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(list, &raws); err != nil {
			return nil, err
		}
		out := make([]PriceQuote, 0, len(raws))
		for _, r := range raws {
			q, err := NormalizePrice(r)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}

	if len(bytes.TrimSpace(single)) == 0 || string(bytes.TrimSpace(single)) == "null" {
		single = list
	}
	if len(bytes.TrimSpace(single)) == 0 || string(bytes.TrimSpace(single)) == "null" {
		return []PriceQuote{}, nil
	}
	q, err := NormalizePrice(single)
	if err != nil {
		return nil, err
	}
	return []PriceQuote{q}, nil
}

func categoryName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '{' {
		var obj struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			if obj.Name != "" {
				return obj.Name
			}
			return obj.Title
		}
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// flexFloat accepts a JSON number or numeric string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" || string(data) == `""` {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Category is a catalog category
type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// GalleryImage is one media entry on the gallery endpoint
type GalleryImage struct {
	ID      ID     `json:"id,omitempty"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}
