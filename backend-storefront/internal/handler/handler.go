package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/response"
)

// CatalogLoader is what the catalog endpoints read through
type CatalogLoader interface {
	List(ctx context.Context, entity domain.Entity, f catalog.Filters) (catalog.Result[catalog.ListPage], error)
	Categories(ctx context.Context, entity domain.Entity) (catalog.Result[[]domain.Category], error)
	DetailPage(ctx context.Context, entity domain.Entity, id domain.ID) (catalog.Result[catalog.DetailPage], error)
	TicketPrices(ctx context.Context, entity domain.Entity, id domain.ID, date string) (catalog.Result[[]domain.TicketType], error)
}

// SelectionService is what the selection endpoints mutate through
type SelectionService interface {
	Get(ctx context.Context, sessionID string, entity domain.Entity, id domain.ID) (*selection.Selection, error)
	SelectDate(ctx context.Context, sessionID string, entity domain.Entity, id, dateID domain.ID) (*selection.Selection, error)
	SelectShow(ctx context.Context, sessionID string, entity domain.Entity, id, showID domain.ID) (*selection.Selection, error)
	AdjustQuantity(ctx context.Context, sessionID string, entity domain.Entity, id, ticketTypeID domain.ID, delta int) (*selection.Selection, error)
	Clear(ctx context.Context, sessionID string, entity domain.Entity, id domain.ID) error
}

// CheckoutService runs checkout attempts
type CheckoutService interface {
	Begin(ctx context.Context, req checkout.Request) (*checkout.Attempt, *checkout.GatewayRequest, error)
	Resume(ctx context.Context, attemptID string, outcome checkout.GatewayOutcome) (*checkout.Attempt, error)
	Get(ctx context.Context, attemptID string) (*checkout.Attempt, error)
}

var (
	_ CatalogLoader    = (*catalog.Loader)(nil)
	_ SelectionService = (*selection.Service)(nil)
	_ CheckoutService  = (*checkout.Orchestrator)(nil)
)

// entityParam parses :entity and writes a 400 when it is not a known entity
func entityParam(c *gin.Context) (domain.Entity, bool) {
	entity, err := domain.ParseEntity(c.Param("entity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Unknown entity: "+c.Param("entity")))
		return "", false
	}
	return entity, true
}

// idParam reads :id and writes a 400 when it is empty
func idParam(c *gin.Context) (domain.ID, bool) {
	id := domain.ID(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("ID is required"))
		return "", false
	}
	return id, true
}
