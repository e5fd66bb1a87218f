package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type UpsertCartLineRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gte=1,max=10000"`
}

func cartResponse(cart *model.Cart) gin.H {
	return gin.H{
		"cart":     cart,
		"count":    len(cart.Items),
		"subtotal": cart.Subtotal(),
	}
}

// GetCart returns the caller's cart, creating it on first use
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}

	cart, err := ctrl.cartService.GetOrCreate(owner)
	if err != nil {
		respondError(c, err, "cart")
		return
	}
	c.JSON(http.StatusOK, cartResponse(cart))
}

// UpsertLine sets the quantity of one variant in the cart
// PUT /api/v1/cart/items
func (ctrl *CartController) UpsertLine(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	var req UpsertCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cart, err := ctrl.cartService.UpsertLine(owner, req.VariantID, req.Quantity)
	if err != nil {
		respondError(c, err, "cart")
		return
	}

	log.Debug("Cart line upserted", map[string]interface{}{
		"owner":      owner.Key(),
		"variant_id": req.VariantID,
		"quantity":   req.Quantity,
	})
	c.JSON(http.StatusOK, cartResponse(cart))
}

// RemoveLine drops a variant from the cart
// DELETE /api/v1/cart/items/:variant_id
func (ctrl *CartController) RemoveLine(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	variantID, ok := parseIDParam(c, "variant_id")
	if !ok {
		return
	}

	cart, err := ctrl.cartService.RemoveLine(owner, variantID)
	if err != nil {
		respondError(c, err, "cart")
		return
	}
	c.JSON(http.StatusOK, cartResponse(cart))
}

// ClearCart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	if err := ctrl.cartService.Clear(owner); err != nil {
		respondError(c, err, "cart")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
