package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/domain"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/dto"
	"github.com/prohmpiriya/storefront/backend-storefront/internal/selection"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/middleware"
	"github.com/prohmpiriya/storefront/pkg/response"
	"go.uber.org/zap"
)

// CheckoutHandler handles the checkout form submit and the payment widget's result
type CheckoutHandler struct {
	checkout   CheckoutService
	selections SelectionService
	logger     *logger.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(svc CheckoutService, selections SelectionService, log *logger.Logger) *CheckoutHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &CheckoutHandler{checkout: svc, selections: selections, logger: log}
}

// Submit handles POST /checkout - creates the booking and payment order and
// returns what the payment widget needs
func (h *CheckoutHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		sessionID = userID
	}

	snap, ok := h.snapshot(c, sessionID, req)
	if !ok {
		return
	}

	attempt, gw, err := h.checkout.Begin(c.Request.Context(), checkout.Request{
		SessionID:   sessionID,
		UserID:      userID,
		Selection:   snap,
		Contact:     req.Contact,
		GuideCharge: req.GuideCharge,
	})
	if err != nil {
		h.writeError(c, attempt, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(&dto.CheckoutResponse{
		AttemptID: attempt.ID,
		State:     attempt.State,
		BookingID: attempt.BookingID,
		Gateway:   gw,
	}))
}

// snapshot resolves what is being bought: the encoded selection when one is
// posted, otherwise the session's stored selection
func (h *CheckoutHandler) snapshot(c *gin.Context, sessionID string, req dto.CheckoutRequest) (selection.Snapshot, bool) {
	if req.Snapshot != "" {
		snap, err := selection.DecodeSnapshot(req.Snapshot)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.BadRequest("Invalid selection"))
			return selection.Snapshot{}, false
		}
		return snap, true
	}

	entity, err := domain.ParseEntity(req.Entity)
	if err != nil || req.EntityID == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("snapshot or entity and entity_id are required"))
		return selection.Snapshot{}, false
	}

	sel, err := h.selections.Get(c.Request.Context(), sessionID, entity, req.EntityID)
	if err != nil {
		status, body := selectionErrorResponse(err)
		c.JSON(status, body)
		return selection.Snapshot{}, false
	}
	if !sel.IsComplete() {
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeSelectionIncomplete,
			"Select a date and at least one ticket before checking out"))
		return selection.Snapshot{}, false
	}
	return sel.Snapshot(), true
}

// GatewayResult handles POST /checkout/:id/gateway-result - verifies a payment
// or compensates a cancelled one
func (h *CheckoutHandler) GatewayResult(c *gin.Context) {
	if _, ok := h.ownedAttempt(c); !ok {
		return
	}

	var req dto.GatewayResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	attempt, err := h.checkout.Resume(c.Request.Context(), c.Param("id"), req.Outcome())
	if err != nil {
		h.writeError(c, attempt, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.ToAttemptResponse(attempt)))
}

// Get handles GET /checkout/:id
func (h *CheckoutHandler) Get(c *gin.Context) {
	attempt, ok := h.ownedAttempt(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(dto.ToAttemptResponse(attempt)))
}

// ownedAttempt loads :id and checks it belongs to the caller. Another user's
// attempt is reported as not found.
func (h *CheckoutHandler) ownedAttempt(c *gin.Context) (*checkout.Attempt, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User ID not found in token"))
		return nil, false
	}

	attempt, err := h.checkout.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, nil, err)
		return nil, false
	}
	if attempt.UserID != userID {
		c.JSON(http.StatusNotFound, response.Error(response.ErrCodeAttemptNotFound, "Checkout not found"))
		return nil, false
	}
	return attempt, true
}

func (h *CheckoutHandler) writeError(c *gin.Context, attempt *checkout.Attempt, err error) {
	resp := checkoutErrorResponse(attempt, err)
	if resp.Error.Code == response.ErrCodeInternalError {
		h.logger.WithContext(c.Request.Context()).Error("checkout request failed", zap.Error(err))
	}
	c.JSON(response.GetHTTPStatus(resp.Error.Code), resp)
}

// checkoutErrorResponse maps orchestrator errors to an error envelope. The
// HTTP status follows from the error code.
func checkoutErrorResponse(attempt *checkout.Attempt, err error) *response.Response {
	var (
		verr    *checkout.ValidationError
		failure *checkout.Failure
	)
	switch {
	case errors.As(err, &verr):
		return response.ValidationFailed(verr.Fields)
	case errors.Is(err, checkout.ErrSubmitInFlight):
		return response.SubmitInFlight("")
	case errors.As(err, &failure):
		if failure.Reason == checkout.ReasonAuthenticationExpired {
			return response.TokenExpired(failure.Message)
		}
		details := map[string]string{
			"reason":        string(failure.Reason),
			"resubmittable": strconv.FormatBool(failure.Resubmittable),
			"compensated":   strconv.FormatBool(failure.Compensated),
		}
		if attempt != nil {
			details["attempt_id"] = attempt.ID
		}
		return response.CheckoutFailed(failure.Message, details)
	case errors.Is(err, checkout.ErrAttemptNotFound):
		return response.Error(response.ErrCodeAttemptNotFound, "Checkout not found")
	case errors.Is(err, checkout.ErrInvalidStateTransition):
		return response.Error(response.ErrCodeInvalidTransition, "This checkout has already been completed")
	default:
		return response.InternalError("Failed to process checkout")
	}
}
