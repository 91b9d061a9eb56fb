package rest

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/logger"
	"github.com/ticketbay/tb-projector/internal/projector"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// ListItems retrieves the active (unsold) listings
	// GET /api/v1/items?caller=<address>
	ListItems(c *gin.Context)

	// ItemsSnapshot retrieves the last published active-listings view
	// without a fresh ledger scan
	// GET /api/v1/items/snapshot?caller=<address>
	ItemsSnapshot(c *gin.Context)

	// ListIssuedItems retrieves every item the caller issued
	// GET /api/v1/items/issued?caller=<address>
	ListIssuedItems(c *gin.Context)

	// ListIssuers retrieves the active issuer roster
	// GET /api/v1/issuers
	ListIssuers(c *gin.Context)

	// ReceivedOffers retrieves the active offers on the caller's held items
	// GET /api/v1/offers/received?caller=<address>
	ReceivedOffers(c *gin.Context)

	// SentOffers retrieves the offers the caller authored
	// GET /api/v1/offers/sent?caller=<address>
	SentOffers(c *gin.Context)

	// ListPurchases retrieves the items the caller bought
	// GET /api/v1/purchases?caller=<address>
	ListPurchases(c *gin.Context)

	// HasRole reports whether an address carries a marketplace role
	// GET /api/v1/roles/:role?address=<address>
	HasRole(c *gin.Context)

	// MarketStatus retrieves marketplace-level state
	// GET /api/v1/market
	MarketStatus(c *gin.Context)

	// CreateItem mints and lists a new item from a multipart form
	// POST /api/v1/items
	CreateItem(c *gin.Context)

	// PurchaseItem buys an item at its current total price
	// POST /api/v1/items/:id/purchase
	PurchaseItem(c *gin.Context)

	// MakeOffer places an offer on an item
	// POST /api/v1/items/:id/offers
	MakeOffer(c *gin.Context)

	// AcceptOffer accepts an offer on a held item
	// POST /api/v1/offers/:id/accept
	AcceptOffer(c *gin.Context)

	// CancelOffer withdraws an offer the caller authored
	// POST /api/v1/offers/:id/cancel
	CancelOffer(c *gin.Context)

	// AddIssuer grants the issuer role (requires authentication)
	// POST /api/v1/issuers
	AddIssuer(c *gin.Context)

	// RemoveIssuer deactivates an issuer (requires authentication)
	// DELETE /api/v1/issuers/:address
	RemoveIssuer(c *gin.Context)

	// SetFee updates the marketplace fee (requires authentication)
	// PUT /api/v1/admin/fee
	SetFee(c *gin.Context)

	// SetPaused toggles the marketplace pause switch (requires authentication)
	// PUT /api/v1/admin/paused
	SetPaused(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	chain     domain.Chain
	projector *projector.Projector
	mutator   *projector.Mutator
}

// NewHandler creates a new REST API handler
func NewHandler(chain domain.Chain, proj *projector.Projector, mut *projector.Mutator) Handler {
	return &handler{
		chain:     chain,
		projector: proj,
		mutator:   mut,
	}
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"chain":  h.chain,
	})
}

func (h *handler) ListItems(c *gin.Context) {
	caller, ok := optionalCaller(c)
	if !ok {
		return
	}

	view, err := h.projector.ListActiveItems(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ItemsSnapshot(c *gin.Context) {
	caller, ok := optionalCaller(c)
	if !ok {
		return
	}

	view, ok := h.projector.ActiveItemsSnapshot(caller)
	if !ok {
		respondWithError(c, http.StatusNotFound, errCodeNotFound,
			"No listings snapshot published yet")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ListIssuedItems(c *gin.Context) {
	caller, ok := requiredCaller(c)
	if !ok {
		return
	}

	view, err := h.projector.ListIssuedItems(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ListIssuers(c *gin.Context) {
	view, err := h.projector.ListActiveIssuers(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ReceivedOffers(c *gin.Context) {
	caller, ok := requiredCaller(c)
	if !ok {
		return
	}

	view, err := h.projector.ReceivedOffers(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) SentOffers(c *gin.Context) {
	caller, ok := requiredCaller(c)
	if !ok {
		return
	}

	view, err := h.projector.SentOffers(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) ListPurchases(c *gin.Context) {
	caller, ok := requiredCaller(c)
	if !ok {
		return
	}

	view, err := h.projector.ListPurchases(c.Request.Context(), caller)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) HasRole(c *gin.Context) {
	role := domain.Role(c.Param("role"))
	if role != domain.RoleAdmin && role != domain.RoleIssuer {
		respondBadRequest(c, "Unknown role", string(role))
		return
	}

	address := c.Query("address")
	if !domain.IsValidAddress(address) {
		respondValidationError(c, "address must be a hex address")
		return
	}

	has, err := h.projector.HasRole(c.Request.Context(), role, address)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "address": address, "granted": has})
}

func (h *handler) MarketStatus(c *gin.Context) {
	status, err := h.projector.Status(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handler) CreateItem(c *gin.Context) {
	price, ok := parseAmount(c, c.PostForm("price"))
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondValidationError(c, "image file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "Failed to read image", err.Error())
		return
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(c, "Failed to read image", err.Error())
		return
	}

	result, err := h.mutator.CreateItem(c.Request.Context(), projector.CreateItemRequest{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		ItemType:    domain.ItemType(c.PostForm("item_type")),
		Filename:    fileHeader.Filename,
		Image:       image,
		Price:       price,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *handler) PurchaseItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.mutator.Purchase(c.Request.Context(), itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemAlreadySold) {
			// Reconcile the stale listing out of the published snapshot
			go func() {
				if _, err := h.projector.ListActiveItems(context.Background(), ""); err != nil {
					logger.Warn("post-sale listings refresh failed", zap.Error(err))
				}
			}()
		}
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) MakeOffer(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	amount, ok := parseAmount(c, body.Amount)
	if !ok {
		return
	}

	result, err := h.mutator.MakeOffer(c.Request.Context(), itemID, amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) AcceptOffer(c *gin.Context) {
	offerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.mutator.AcceptOffer(c.Request.Context(), offerID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) CancelOffer(c *gin.Context) {
	offerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.mutator.CancelOffer(c.Request.Context(), offerID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) AddIssuer(c *gin.Context) {
	var body struct {
		Address     string `json:"address" binding:"required"`
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.mutator.AddIssuer(c.Request.Context(), body.Address, body.Name, body.Description)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *handler) RemoveIssuer(c *gin.Context) {
	address := c.Param("address")

	result, err := h.mutator.RemoveIssuer(c.Request.Context(), address)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) SetFee(c *gin.Context) {
	var body struct {
		FeePercent *uint64 `json:"fee_percent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.mutator.SetFeePercent(c.Request.Context(), *body.FeePercent)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) SetPaused(c *gin.Context) {
	var body struct {
		Paused *bool `json:"paused" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.mutator.SetPaused(c.Request.Context(), *body.Paused)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// optionalCaller reads the caller query parameter, validating it when present
func optionalCaller(c *gin.Context) (string, bool) {
	caller := c.Query("caller")
	if caller != "" && !domain.IsValidAddress(caller) {
		respondValidationError(c, "caller must be a hex address")
		return "", false
	}
	return caller, true
}

// requiredCaller reads the caller query parameter, rejecting its absence
func requiredCaller(c *gin.Context) (string, bool) {
	caller := c.Query("caller")
	if !domain.IsValidAddress(caller) {
		respondValidationError(c, "caller must be a hex address")
		return "", false
	}
	return caller, true
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondValidationError(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseAmount parses a decimal wei amount
func parseAmount(c *gin.Context, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		respondValidationError(c, "amount must be a positive decimal wei value")
		return nil, false
	}
	return amount, true
}
