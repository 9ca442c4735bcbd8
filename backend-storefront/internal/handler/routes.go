package handler

import "github.com/gin-gonic/gin"

// Handlers groups the storefront's HTTP handlers for route registration
type Handlers struct {
	Health    *HealthHandler
	Catalog   *CatalogHandler
	Selection *SelectionHandler
	Checkout  *CheckoutHandler

	// RateLimit guards /api/v1 when set
	RateLimit gin.HandlerFunc
}

// Register mounts every route on r. Checkout routes run behind auth.
func (h *Handlers) Register(r gin.IRouter, auth gin.HandlerFunc) {
	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}

	v1 := r.Group("/api/v1")
	if h.RateLimit != nil {
		v1.Use(h.RateLimit)
	}

	catalogRoutes := v1.Group("/catalog/:entity")
	{
		catalogRoutes.GET("", h.Catalog.List)
		catalogRoutes.GET("/categories", h.Catalog.Categories)
		catalogRoutes.GET("/:id", h.Catalog.Detail)
		catalogRoutes.GET("/:id/prices", h.Catalog.Prices)
	}

	selections := v1.Group("/selections/:entity/:id")
	{
		selections.GET("", h.Selection.Get)
		selections.DELETE("", h.Selection.Clear)
		selections.PUT("/date", h.Selection.SelectDate)
		selections.PUT("/show", h.Selection.SelectShow)
		selections.POST("/quantity", h.Selection.AdjustQuantity)
	}

	checkoutRoutes := v1.Group("/checkout", auth)
	{
		checkoutRoutes.POST("", h.Checkout.Submit)
		checkoutRoutes.GET("/:id", h.Checkout.Get)
		checkoutRoutes.POST("/:id/gateway-result", h.Checkout.GatewayResult)
	}
}
