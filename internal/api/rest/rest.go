package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/ticketbay/tb-projector/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Storefront views (public read access)
		v1.GET("/items", handler.ListItems)
		v1.GET("/items/snapshot", handler.ItemsSnapshot)
		v1.GET("/items/issued", handler.ListIssuedItems)
		v1.GET("/issuers", handler.ListIssuers)
		v1.GET("/offers/received", handler.ReceivedOffers)
		v1.GET("/offers/sent", handler.SentOffers)
		v1.GET("/purchases", handler.ListPurchases)
		v1.GET("/roles/:role", handler.HasRole)
		v1.GET("/market", handler.MarketStatus)

		// Trading mutations (open; the signer is the gate)
		v1.POST("/items", handler.CreateItem)
		v1.POST("/items/:id/purchase", handler.PurchaseItem)
		v1.POST("/items/:id/offers", handler.MakeOffer)
		v1.POST("/offers/:id/accept", handler.AcceptOffer)
		v1.POST("/offers/:id/cancel", handler.CancelOffer)

		// Issuer management (requires authentication)
		v1.POST("/issuers", middleware.Auth(authCfg), handler.AddIssuer)
		v1.DELETE("/issuers/:address", middleware.Auth(authCfg), handler.RemoveIssuer)

		// Marketplace administration (requires authentication)
		v1.PUT("/admin/fee", middleware.Auth(authCfg), handler.SetFee)
		v1.PUT("/admin/paused", middleware.Auth(authCfg), handler.SetPaused)
	}
}
