package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/catalog"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/dto"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/middleware"
	"github.com/prohmpiriya/storefront/pkg/response"
	"go.uber.org/zap"
)

// SelectionHandler handles the per-session date, show and quantity picker
type SelectionHandler struct {
	selections SelectionService
	logger     *logger.Logger
}

// NewSelectionHandler creates a new SelectionHandler
func NewSelectionHandler(selections SelectionService, log *logger.Logger) *SelectionHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SelectionHandler{selections: selections, logger: log}
}

type selectionTarget struct {
	sessionID string
	entity    domain.Entity
	id        domain.ID
}

func (h *SelectionHandler) target(c *gin.Context) (selectionTarget, bool) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, response.BadRequest(dto.SessionHeader+" header is required"))
		return selectionTarget{}, false
	}
	entity, ok := entityParam(c)
	if !ok {
		return selectionTarget{}, false
	}
	id, ok := idParam(c)
	if !ok {
		return selectionTarget{}, false
	}
	return selectionTarget{sessionID: sessionID, entity: entity, id: id}, true
}

// Get handles GET /selections/:entity/:id
func (h *SelectionHandler) Get(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	sel, err := h.selections.Get(c.Request.Context(), t.sessionID, t.entity, t.id)
	h.respond(c, sel, err)
}

// SelectDate handles PUT /selections/:entity/:id/date
func (h *SelectionHandler) SelectDate(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.SelectDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	sel, err := h.selections.SelectDate(c.Request.Context(), t.sessionID, t.entity, t.id, req.DateID)
	h.respond(c, sel, err)
}

// SelectShow handles PUT /selections/:entity/:id/show
func (h *SelectionHandler) SelectShow(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.SelectShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	sel, err := h.selections.SelectShow(c.Request.Context(), t.sessionID, t.entity, t.id, req.ShowID)
	h.respond(c, sel, err)
}

// AdjustQuantity handles POST /selections/:entity/:id/quantity
func (h *SelectionHandler) AdjustQuantity(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	var req dto.AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	sel, err := h.selections.AdjustQuantity(c.Request.Context(), t.sessionID, t.entity, t.id, req.TicketTypeID, req.Delta)
	h.respond(c, sel, err)
}

// Clear handles DELETE /selections/:entity/:id
func (h *SelectionHandler) Clear(c *gin.Context) {
	t, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.selections.Clear(c.Request.Context(), t.sessionID, t.entity, t.id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"cleared": true}))
}

func (h *SelectionHandler) respond(c *gin.Context, sel *selection.Selection, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp, err := dto.ToSelectionResponse(sel)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(resp))
}

func (h *SelectionHandler) writeError(c *gin.Context, err error) {
	status, body := selectionErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Warn("selection request failed", zap.Error(err))
	}
	c.JSON(status, body)
}

// selectionErrorResponse maps selection and catalog errors to HTTP
func selectionErrorResponse(err error) (int, *response.Response) {
	switch {
	case errors.Is(err, selection.ErrLimitExceeded):
		return http.StatusConflict, response.LimitExceeded("")
	case errors.Is(err, selection.ErrUnknownTicketType),
		errors.Is(err, selection.ErrUnknownDate),
		errors.Is(err, selection.ErrUnknownShow),
		errors.Is(err, selection.ErrStaleKey),
		errors.Is(err, selection.ErrNoDate),
		errors.Is(err, catalog.ErrInvalidFilter):
		return http.StatusBadRequest, response.BadRequest(err.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusNotFound, response.NotFound("This item is not available for booking")
	default:
		return http.StatusBadGateway, response.UpstreamError("Could not load booking details, please try again")
	}
}
