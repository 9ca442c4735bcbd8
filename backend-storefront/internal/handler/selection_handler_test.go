package handler

import (
	"net/http"
	"testing"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/dto"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type selectionBody struct {
	DateID  string `json:"date_id"`
	Date    string `json:"date"`
	Tickets []struct {
		ID           string `json:"id"`
		Quantity     int    `json:"quantity"`
		CanIncrement bool   `json:"can_increment"`
	} `json:"tickets"`
	TotalQuantity int     `json:"total_quantity"`
	TotalPrice    float64 `json:"total_price"`
	IsComplete    bool    `json:"is_complete"`
	Snapshot      string  `json:"snapshot"`
}

const selectionPath = "/api/v1/selections/activity/42"

func TestSelectionHandler_Flow(t *testing.T) {
	router := newTestRouter(testDeps{})
	hdr := session("sess-1")

	w, env := doRequest(t, router, http.MethodGet, selectionPath, nil, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	var sel selectionBody
	decodeData(t, env, &sel)
	assert.Empty(t, sel.DateID)
	assert.False(t, sel.IsComplete)

	w, env = doRequest(t, router, http.MethodPut, selectionPath+"/date", dto.SelectDateRequest{DateID: "d1"}, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, env, &sel)
	assert.Equal(t, "2026-10-20", sel.Date)
	require.Len(t, sel.Tickets, 2)

	w, _ = doRequest(t, router, http.MethodPost, selectionPath+"/quantity", dto.AdjustQuantityRequest{TicketTypeID: "adult", Delta: 2}, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = doRequest(t, router, http.MethodPost, selectionPath+"/quantity", dto.AdjustQuantityRequest{TicketTypeID: "child", Delta: 1}, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	sel = selectionBody{}
	decodeData(t, env, &sel)
	assert.Equal(t, 3, sel.TotalQuantity)
	assert.Equal(t, 1350.0, sel.TotalPrice)
	assert.True(t, sel.IsComplete)
	assert.False(t, sel.Tickets[1].CanIncrement, "child has a single slot left")

	snap, err := selection.DecodeSnapshot(sel.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalQuantity)

	// another session sees its own empty selection
	w, env = doRequest(t, router, http.MethodGet, selectionPath, nil, session("sess-2"))
	require.Equal(t, http.StatusOK, w.Code)
	sel = selectionBody{}
	decodeData(t, env, &sel)
	assert.Zero(t, sel.TotalQuantity)
}

func TestSelectionHandler_LimitExceeded(t *testing.T) {
	router := newTestRouter(testDeps{})
	hdr := session("sess-1")

	w, _ := doRequest(t, router, http.MethodPut, selectionPath+"/date", dto.SelectDateRequest{DateID: "d1"}, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := doRequest(t, router, http.MethodPost, selectionPath+"/quantity", dto.AdjustQuantityRequest{TicketTypeID: "child", Delta: 2}, hdr)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrCodeLimitExceeded, env.Error.Code)

	_, env = doRequest(t, router, http.MethodGet, selectionPath, nil, hdr)
	var sel selectionBody
	decodeData(t, env, &sel)
	assert.Zero(t, sel.TotalQuantity)
}

func TestSelectionHandler_Clear(t *testing.T) {
	router := newTestRouter(testDeps{})
	hdr := session("sess-1")

	doRequest(t, router, http.MethodPut, selectionPath+"/date", dto.SelectDateRequest{DateID: "d1"}, hdr)
	doRequest(t, router, http.MethodPost, selectionPath+"/quantity", dto.AdjustQuantityRequest{TicketTypeID: "adult", Delta: 1}, hdr)

	w, env := doRequest(t, router, http.MethodDelete, selectionPath, nil, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	_, env = doRequest(t, router, http.MethodGet, selectionPath, nil, hdr)
	var sel selectionBody
	decodeData(t, env, &sel)
	assert.Zero(t, sel.TotalQuantity)
	assert.Empty(t, sel.DateID)
}

func TestSelectionHandler_Errors(t *testing.T) {
	hdr := session("sess-1")

	tests := []struct {
		name    string
		fetcher func() *sampleFetcher
		method  string
		path    string
		body    interface{}
		headers map[string]string
		status  int
		code    string
	}{
		{
			name: "missing session", method: http.MethodGet, path: selectionPath,
			status: http.StatusBadRequest, code: response.ErrCodeBadRequest,
		},
		{
			name: "unknown entity", method: http.MethodGet, path: "/api/v1/selections/cruise/42", headers: hdr,
			status: http.StatusBadRequest, code: response.ErrCodeBadRequest,
		},
		{
			name: "unknown date", method: http.MethodPut, path: selectionPath + "/date", headers: hdr,
			body:   dto.SelectDateRequest{DateID: "d9"},
			status: http.StatusBadRequest, code: response.ErrCodeBadRequest,
		},
		{
			name: "show before date", method: http.MethodPut, path: selectionPath + "/show", headers: hdr,
			body:   dto.SelectShowRequest{ShowID: "s1"},
			status: http.StatusBadRequest, code: response.ErrCodeBadRequest,
		},
		{
			name: "zero delta", method: http.MethodPost, path: selectionPath + "/quantity", headers: hdr,
			body:   map[string]interface{}{"ticket_type_id": "adult", "delta": 0},
			status: http.StatusBadRequest, code: response.ErrCodeBadRequest,
		},
		{
			name: "item not bookable", method: http.MethodGet, path: "/api/v1/selections/activity/77", headers: hdr,
			status: http.StatusNotFound, code: response.ErrCodeNotFound,
		},
		{
			name: "backend outage", method: http.MethodGet, path: selectionPath, headers: hdr,
			fetcher: func() *sampleFetcher {
				f := storefrontFetcher()
				f.errs["/activity-booking-details/42"] = &apiclient.APIError{StatusCode: http.StatusBadGateway}
				return f
			},
			status: http.StatusBadGateway, code: response.ErrCodeUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := storefrontFetcher()
			if tt.fetcher != nil {
				fetcher = tt.fetcher()
			}
			svc := selection.NewService(selection.NewMemoryStore(), catalog.NewLoader(fetcher), nil)
			router := newTestRouter(testDeps{selections: svc})

			w, env := doRequest(t, router, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}
