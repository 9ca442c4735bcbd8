package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResult struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Items []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"items"`
		Total int64 `json:"total"`
	} `json:"data"`
}

func TestCatalogHandler_List(t *testing.T) {
	fetcher := newSampleFetcher(map[string]string{
		"/events": `{"items": [{"id": 9, "title": "Jazz night", "price": 799}], "total": 41, "page": 3, "per_page": 1}`,
	})
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/events?location=Goa&page=3&per_page=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 3, env.Meta.Page)
	assert.Equal(t, 1, env.Meta.PerPage)
	assert.Equal(t, int64(41), env.Meta.Total)

	var res listResult
	decodeData(t, env, &res)
	assert.True(t, res.Status)
	require.Len(t, res.Data.Items, 1)
	assert.Equal(t, "9", res.Data.Items[0].ID)
	assert.Equal(t, "Goa", fetcher.queries["/events"].Get("location"))
}

func TestCatalogHandler_ListSoftFailure(t *testing.T) {
	// no /activities response: the backend answers 404
	router := newTestRouter(testDeps{loader: catalog.NewLoader(newSampleFetcher(nil))})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/activity", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Meta.Page)
	assert.Equal(t, 20, env.Meta.PerPage)

	var res listResult
	decodeData(t, env, &res)
	assert.False(t, res.Status)
	assert.Equal(t, "Not found", res.Message)
	assert.NotNil(t, res.Data.Items)
	assert.Empty(t, res.Data.Items)
}

func TestCatalogHandler_ListErrors(t *testing.T) {
	fetcher := newSampleFetcher(nil)
	fetcher.errs["/attractions"] = &apiclient.APIError{StatusCode: http.StatusServiceUnavailable, Path: "/attractions"}
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown entity", "/api/v1/catalog/cruises", http.StatusBadRequest, response.ErrCodeBadRequest},
		{"bad date filter", "/api/v1/catalog/attractions?date=someday", http.StatusBadRequest, response.ErrCodeBadRequest},
		{"backend outage", "/api/v1/catalog/attractions", http.StatusBadGateway, response.ErrCodeUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := doRequest(t, router, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestCatalogHandler_Detail(t *testing.T) {
	fetcher := newSampleFetcher(map[string]string{
		"/activity-details/42":         `{"id": 42, "title": "Harbour Cruise", "price": 500}`,
		"/activity-booking-details/42": bookingFixture,
		"/activity-gallery/42":         `[{"url": "https://cdn.example.com/1.jpg"}]`,
	})
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/activities/42", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Status bool `json:"status"`
		Data   struct {
			Item struct {
				Title string `json:"title"`
			} `json:"item"`
			Booking struct {
				Dates []struct {
					ID string `json:"id"`
				} `json:"dates"`
			} `json:"booking"`
		} `json:"data"`
	}
	decodeData(t, env, &res)
	assert.True(t, res.Status)
	assert.Equal(t, "Harbour Cruise", res.Data.Item.Title)
	require.Len(t, res.Data.Booking.Dates, 1)
	assert.Equal(t, "d1", res.Data.Booking.Dates[0].ID)
}

func TestCatalogHandler_DetailMissing(t *testing.T) {
	router := newTestRouter(testDeps{loader: catalog.NewLoader(newSampleFetcher(nil))})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/event/7", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Status bool `json:"status"`
	}
	decodeData(t, env, &res)
	assert.False(t, res.Status)
}

func TestCatalogHandler_Categories(t *testing.T) {
	fetcher := newSampleFetcher(map[string]string{
		"/event-categories": `[{"id": 1, "name": "Music"}]`,
	})
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/events/categories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Status bool `json:"status"`
		Data   []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	decodeData(t, env, &res)
	assert.True(t, res.Status)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Music", res.Data[0].Name)
}

func TestCatalogHandler_Prices(t *testing.T) {
	fetcher := storefrontFetcher()
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/activity/42/prices?date=2026-10-20", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-10-20", fetcher.queries["/activity-ticket-prices/42"].Get("date"))

	var res struct {
		Status bool `json:"status"`
		Data   []struct {
			ID    string  `json:"id"`
			Price float64 `json:"price"`
		} `json:"data"`
	}
	decodeData(t, env, &res)
	require.Len(t, res.Data, 2)
	assert.Equal(t, 500.0, res.Data[0].Price)
}

func TestCatalogHandler_PricesTransportError(t *testing.T) {
	fetcher := storefrontFetcher()
	fetcher.errs["/activity-ticket-prices/42"] = errors.New("connection refused")
	router := newTestRouter(testDeps{loader: catalog.NewLoader(fetcher)})

	w, env := doRequest(t, router, http.MethodGet, "/api/v1/catalog/activity/42/prices", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, response.ErrCodeUpstreamError, env.Error.Code)
}
