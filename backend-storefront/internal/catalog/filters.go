package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Symbolic date filter values resolved before the request is sent
const (
	DateToday    = "today"
	DateTomorrow = "tomorrow"
	DateWeekend  = "weekend"
)

// Filters narrows a catalog listing
type Filters struct {
	Location  string   `form:"location"`
	Category  string   `form:"category"`
	Date      string   `form:"date"`
	Longitude *float64 `form:"longitude"`
	Latitude  *float64 `form:"latitude"`
	PriceFrom *float64 `form:"price_from"`
	PriceTo   *float64 `form:"price_to"`
	Page      int      `form:"page"`
	PerPage   int      `form:"per_page"`
}

// ResolveDate turns today/tomorrow/weekend into a YYYY-MM-DD date relative to
// now. Weekend is the coming Saturday, or today when now is already a weekend
// day. Literal dates are validated and returned unchanged.
func ResolveDate(value string, now time.Time) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		return "", nil
	case DateToday:
		return now.Format(dateLayout), nil
	case DateTomorrow:
		return now.AddDate(0, 0, 1).Format(dateLayout), nil
	case DateWeekend:
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return now.Format(dateLayout), nil
		default:
			days := int(time.Saturday - now.Weekday())
			return now.AddDate(0, 0, days).Format(dateLayout), nil
		}
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return "", fmt.Errorf("invalid date filter %q", value)
	}
	return v, nil
}

// Query builds the backend query string. Empty filters are omitted.
func (f Filters) Query(now time.Time) (url.Values, error) {
	q := url.Values{}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	date, err := ResolveDate(f.Date, now)
	if err != nil {
		return nil, err
	}
	if date != "" {
		q.Set("date", date)
	}
	setFloat(q, "longitude", f.Longitude)
	setFloat(q, "latitude", f.Latitude)
	setFloat(q, "price_from", f.PriceFrom)
	setFloat(q, "price_to", f.PriceTo)
	if f.PriceFrom != nil && f.PriceTo != nil && *f.PriceFrom > *f.PriceTo {
		return nil, fmt.Errorf("price_from %v is above price_to %v", *f.PriceFrom, *f.PriceTo)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q, nil
}

func setFloat(q url.Values, key string, v *float64) {
	if v != nil {
		q.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
	}
}
