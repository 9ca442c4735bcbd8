package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntity(t *testing.T) {
	tests := []struct {
		in      string
		want    Entity
		wantErr bool
	}{
		{"activity", EntityActivity, false},
		{"Activities", EntityActivity, false},
		{"attractions", EntityAttraction, false},
		{" event ", EntityEvent, false},
		{"tour", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntity(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownEntity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntityPaths(t *testing.T) {
	e := EntityAttraction
	assert.Equal(t, "/attraction-details/7", e.DetailsPath("7"))
	assert.Equal(t, "/attraction-gallery/7", e.GalleryPath("7"))
	assert.Equal(t, "/attraction-categories", e.CategoriesPath())
	assert.Equal(t, "/attractions", e.ListPath())
	assert.Equal(t, "/attraction-booking-details/7", e.BookingDetailsPath("7"))
	assert.Equal(t, "/attraction-ticket-prices/7", e.TicketPricesPath("7"))
	assert.Equal(t, "/create-attraction-booking", e.CreateBookingPath())
	assert.Equal(t, "/attraction-payment", e.PaymentPath())
	assert.Equal(t, "/attraction-payment-verify", e.PaymentVerifyPath())
	assert.Equal(t, "/attraction-payment-failed", e.PaymentFailedPath())
	assert.Equal(t, "attraction_payment_id", e.PaymentIDField())
	assert.Equal(t, "/activities", EntityActivity.ListPath())
	assert.True(t, EntityEvent.MultiShow())
	assert.False(t, EntityActivity.MultiShow())
}

func TestMoney(t *testing.T) {
	assert.Equal(t, Money(135000), FromMajor(1350))
	assert.Equal(t, int64(135000), FromMajor(1350).Minor())
	assert.Equal(t, 1350.0, Money(135000).Major())
	assert.Equal(t, Money(1999), FromMajor(19.99))
	assert.Equal(t, "499.50", Money(49950).String())
	assert.Equal(t, Money(45000), Money(50000).Percent(90))

	m, err := ParseMoney("1,350.50")
	require.NoError(t, err)
	assert.Equal(t, Money(135050), m)

	_, err = ParseMoney("abc")
	assert.Error(t, err)
}

func TestMoney_CheckedArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		calc    func() (Money, error)
		want    Money
		wantErr bool
	}{
		{"mul", func() (Money, error) { return FromMajor(500).MulChecked(3) }, FromMajor(1500), false},
		{"mul by zero", func() (Money, error) { return MaxAmount.MulChecked(0) }, 0, false},
		{"mul at ceiling", func() (Money, error) { return (MaxAmount / 4).MulChecked(4) }, MaxAmount, false},
		{"mul past ceiling", func() (Money, error) { return (MaxAmount / 4).MulChecked(5) }, 0, true},
		{"mul near int max", func() (Money, error) { return Money(50000).MulChecked(math.MaxInt) }, 0, true},
		{"mul negative price", func() (Money, error) { return Money(-1).MulChecked(2) }, 0, true},
		{"mul negative quantity", func() (Money, error) { return Money(100).MulChecked(-2) }, 0, true},
		{"add", func() (Money, error) { return FromMajor(1350).AddChecked(FromMajor(150)) }, FromMajor(1500), false},
		{"add past ceiling", func() (Money, error) { return MaxAmount.AddChecked(1) }, 0, true},
		{"add negative", func() (Money, error) { return Money(100).AddChecked(-200) }, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.calc()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrAmountOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_RejectsOutOfRangeInput(t *testing.T) {
	_, err := ParseMoney("1e30")
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	var m Money
	assert.ErrorIs(t, json.Unmarshal([]byte(`1e30`), &m), ErrAmountOutOfRange)
	assert.ErrorIs(t, json.Unmarshal([]byte(`-1e30`), &m), ErrAmountOutOfRange)
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money(135000)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":1350}`, string(data))

	var got struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":499.5,"b":"350","c":null}`), &got))
	assert.Equal(t, Money(49950), got.A)
	assert.Equal(t, Money(35000), got.B)
	assert.Equal(t, Money(0), got.C)
}

func TestNormalizePrice(t *testing.T) {
	child := Money(35000)

	tests := []struct {
		name    string
		raw     string
		want    PriceQuote
		wantErr bool
	}{
		{"bare number", `500`, PriceQuote{RateType: RateFull, FullRate: 50000}, false},
		{"numeric string", `"499.99"`, PriceQuote{RateType: RateFull, FullRate: 49999}, false},
		{"null", `null`, PriceQuote{RateType: RateFull}, false},
		{"full object", `{"rate_type":"full","full_rate":1200}`, PriceQuote{RateType: RateFull, FullRate: 120000}, false},
		{"pax object", `{"rate_type":"pax","adult_price":"500","child_price":350}`, PriceQuote{RateType: RatePax, AdultPrice: 50000, ChildPrice: &child}, false},
		{"pax inferred", `{"adult_price":500}`, PriceQuote{RateType: RatePax, AdultPrice: 50000}, false},
		{"full with price key", `{"price":"800"}`, PriceQuote{RateType: RateFull, FullRate: 80000}, false},
		{"upper case rate", `{"rate_type":"FULL","full_rate":10}`, PriceQuote{RateType: RateFull, FullRate: 1000}, false},
		{"pax without adult", `{"rate_type":"pax"}`, PriceQuote{}, true},
		{"unknown rate", `{"rate_type":"group"}`, PriceQuote{}, true},
		{"garbage", `"free"`, PriceQuote{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriceQuote_UnitPrice(t *testing.T) {
	child := Money(35000)
	pax := PriceQuote{RateType: RatePax, AdultPrice: 50000, ChildPrice: &child}
	assert.Equal(t, Money(50000), pax.UnitPrice(TicketAdult))
	assert.Equal(t, Money(35000), pax.UnitPrice(TicketChild))
	assert.Equal(t, Money(50000), pax.Display())

	noChild := PriceQuote{RateType: RatePax, AdultPrice: 50000}
	assert.Equal(t, Money(50000), noChild.UnitPrice(TicketChild))

	full := PriceQuote{RateType: RateFull, FullRate: 90000}
	assert.Equal(t, Money(90000), full.UnitPrice(TicketChild))
}

func TestCatalogItem_Unmarshal(t *testing.T) {
	t.Run("event with name, images and numeric id", func(t *testing.T) {
		var item CatalogItem
		err := json.Unmarshal([]byte(`{
			"id": 42, "name": "Sunburn", "images": ["a.jpg"],
			"category": {"name": "Music"}, "latitude": "15.5", "price": 1500
		}`), &item)
		require.NoError(t, err)

		assert.Equal(t, ID("42"), item.ID)
		assert.Equal(t, "Sunburn", item.Title)
		assert.Equal(t, []string{"a.jpg"}, item.Media)
		assert.Equal(t, "Music", item.Category)
		assert.Equal(t, 15.5, item.Latitude)
		require.Len(t, item.Prices, 1)
		assert.Equal(t, Money(150000), item.DisplayPrice())
	})

	t.Run("attraction with price list", func(t *testing.T) {
		var item CatalogItem
		err := json.Unmarshal([]byte(`{
			"id": "a-1", "title": "Fort", "category": "Heritage",
			"prices": [{"rate_type":"pax","adult_price":500,"child_price":350}, {"rate_type":"full","full_rate":300}]
		}`), &item)
		require.NoError(t, err)

		require.Len(t, item.Prices, 2)
		assert.Equal(t, RatePax, item.Prices[0].RateType)
		assert.Equal(t, Money(30000), item.DisplayPrice())
	})

	t.Run("single object under prices", func(t *testing.T) {
		var item CatalogItem
		require.NoError(t, json.Unmarshal([]byte(`{"id":"x","prices":{"rate_type":"full","full_rate":99}}`), &item))
		require.Len(t, item.Prices, 1)
		assert.Equal(t, Money(9900), item.Prices[0].FullRate)
	})

	t.Run("unpriced", func(t *testing.T) {
		var item CatalogItem
		require.NoError(t, json.Unmarshal([]byte(`{"id":"x"}`), &item))
		assert.Empty(t, item.Prices)
		assert.Equal(t, Money(0), item.DisplayPrice())
	})

	t.Run("cache round trip keeps normalised prices", func(t *testing.T) {
		child := Money(35000)
		in := CatalogItem{ID: "9", Title: "Zoo", Prices: []PriceQuote{{RateType: RatePax, AdultPrice: 50000, ChildPrice: &child}}}
		data, err := json.Marshal(in)
		require.NoError(t, err)

		var out CatalogItem
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})
}

func TestTicketType_Unmarshal(t *testing.T) {
	var tt TicketType
	err := json.Unmarshal([]byte(`{
		"ticket_type_id": 3, "ticket_name": "Child (5-12)", "price": "350",
		"maximum_allowed_bookings_per_user": 4, "available_slots": 2, "discount": "10"
	}`), &tt)
	require.NoError(t, err)

	assert.Equal(t, ID("3"), tt.ID)
	assert.Equal(t, TicketChild, tt.Kind)
	assert.Equal(t, Money(35000), tt.Price)
	assert.Equal(t, Money(31500), tt.UnitPrice())
	assert.Equal(t, 2, tt.Limit())
}

func TestTicketType_Limit(t *testing.T) {
	tests := []struct {
		name      string
		maxPer    int
		available int
		want      int
	}{
		{"per user cap lower", 4, 10, 4},
		{"slots lower", 4, 2, 2},
		{"sold out", 4, 0, 0},
		{"no cap", 0, 7, 7},
		{"unknown slots", 5, -1, 5},
		{"unbounded", 0, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := TicketType{MaxPerUser: tt.maxPer, AvailableSlots: tt.available}
			assert.Equal(t, tt.want, ticket.Limit())
		})
	}
}

func TestKindFromName(t *testing.T) {
	assert.Equal(t, TicketAdult, KindFromName("Adult Entry"))
	assert.Equal(t, TicketChild, KindFromName("Kids"))
	assert.Equal(t, TicketOther, KindFromName("VIP"))
}
