package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/response"
	"github.com/prohmpiriya/storefront/pkg/telemetry"
	"go.uber.org/zap"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// CatalogHandler serves listing and detail reads. Expected failures come back
// as a 200 with status false inside data; outages are a 502.
type CatalogHandler struct {
	loader CatalogLoader
	logger *logger.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(loader CatalogLoader, log *logger.Logger) *CatalogHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogHandler{loader: loader, logger: log}
}

// List handles GET /catalog/:entity
func (h *CatalogHandler) List(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	var filters catalog.Filters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid filters"))
		return
	}
	if filters.Page <= 0 {
		filters.Page = defaultPage
	}
	if filters.PerPage <= 0 || filters.PerPage > maxPerPage {
		filters.PerPage = defaultPerPage
	}

	result, err := h.loader.List(c.Request.Context(), entity, filters)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
			return
		}
		h.upstream(c, "catalog list failed", err)
		return
	}

	page := result.Data
	if page.Page <= 0 {
		page.Page = filters.Page
	}
	if page.PerPage <= 0 {
		page.PerPage = filters.PerPage
	}
	c.JSON(http.StatusOK, response.Paginated(result, page.Page, page.PerPage, page.Total))
}

// Categories handles GET /catalog/:entity/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}

	result, err := h.loader.Categories(c.Request.Context(), entity)
	if err != nil {
		h.upstream(c, "catalog categories failed", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// Detail handles GET /catalog/:entity/:id - details, booking details and gallery in one read
func (h *CatalogHandler) Detail(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	result, err := h.loader.DetailPage(c.Request.Context(), entity, id)
	if err != nil {
		h.upstream(c, "catalog detail failed", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// Prices handles GET /catalog/:entity/:id/prices?date=
func (h *CatalogHandler) Prices(c *gin.Context) {
	entity, ok := entityParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	result, err := h.loader.TicketPrices(c.Request.Context(), entity, id, c.Query("date"))
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
			return
		}
		h.upstream(c, "ticket prices failed", err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

func (h *CatalogHandler) upstream(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()
	telemetry.SetSpanError(ctx, err)
	h.logger.WithContext(ctx).Warn(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusBadGateway, response.UpstreamError("Catalog is unavailable, please try again"))
}
