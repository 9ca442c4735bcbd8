package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/apiclient"
	"github.com/prohmpiriya/storefront/pkg/middleware"
	"github.com/stretchr/testify/require"
)

const testUserHeader = "X-Test-User"

func init() {
	gin.SetMode(gin.TestMode)
}

// sampleFetcher serves canned backend data per path
type sampleFetcher struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	queries   map[string]url.Values
}

func newSampleFetcher(responses map[string]string) *sampleFetcher {
	return &sampleFetcher{responses: responses, errs: map[string]error{}, queries: map[string]url.Values{}}
}

func (f *sampleFetcher) Get(_ context.Context, path string, query url.Values, out interface{}, _ ...apiclient.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[path] = query
	if err, ok := f.errs[path]; ok {
		return err
	}
	data, ok := f.responses[path]
	if !ok {
		return &apiclient.APIError{StatusCode: http.StatusNotFound, Path: path, Message: "Not found"}
	}
	return json.Unmarshal([]byte(data), out)
}

// bookingFixture is an activity with one date and two ticket types
const bookingFixture = `{
	"entity_id": "42",
	"title": "Harbour Cruise",
	"dates": [{"id": "d1", "date": "2026-10-20"}],
	"ticket_types": [
		{"id": "adult", "name": "Adult", "price": 500, "maximum_allowed_bookings_per_user": 4},
		{"id": "child", "name": "Child", "price": 350, "available_slots": 1}
	]
}`

const pricesFixture = `[
	{"id": "adult", "name": "Adult", "price": 500, "maximum_allowed_bookings_per_user": 4},
	{"id": "child", "name": "Child", "price": 350, "available_slots": 1}
]`

func storefrontFetcher() *sampleFetcher {
	return newSampleFetcher(map[string]string{
		"/activity-booking-details/42": bookingFixture,
		"/activity-ticket-prices/42":   pricesFixture,
	})
}

// testAuth stands in for the JWT middleware
func testAuth(c *gin.Context) {
	userID := c.GetHeader(testUserHeader)
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Set(middleware.ContextKeyUserID, userID)
	c.Next()
}

type testDeps struct {
	loader     CatalogLoader
	selections SelectionService
	checkout   CheckoutService
}

func newTestRouter(deps testDeps) *gin.Engine {
	if deps.loader == nil {
		deps.loader = catalog.NewLoader(storefrontFetcher())
	}
	if deps.selections == nil {
		deps.selections = selection.NewService(selection.NewMemoryStore(), catalog.NewLoader(storefrontFetcher()), nil)
	}
	if deps.checkout == nil {
		deps.checkout = &fakeCheckout{}
	}

	h := &Handlers{
		Health:    NewHealthHandler("storefront", nil),
		Catalog:   NewCatalogHandler(deps.loader, nil),
		Selection: NewSelectionHandler(deps.selections, nil),
		Checkout:  NewCheckoutHandler(deps.checkout, deps.selections, nil),
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	h.Register(router, testAuth)
	return router
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta struct {
		Page    int   `json:"page"`
		PerPage int   `json:"per_page"`
		Total   int64 `json:"total"`
	} `json:"meta"`
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func session(id string) map[string]string {
	return map[string]string{middleware.HeaderSessionID: id}
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}
