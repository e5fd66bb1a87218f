package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/middleware"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderController struct {
	checkoutService service.CheckoutService
	orderService    service.OrderService
	exportService   service.ExportService
}

func NewOrderController(
	checkoutService service.CheckoutService,
	orderService service.OrderService,
	exportService service.ExportService,
) *OrderController {
	return &OrderController{
		checkoutService: checkoutService,
		orderService:    orderService,
		exportService:   exportService,
	}
}

type OrderLineRequest struct {
	VariantID uint `json:"variant_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gte=1,max=10000"`
}

type GuestContactRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"max=30"`
}

type PaymentRequest struct {
	Method     string `json:"method" binding:"required,oneof=CREDIT PAYPAL GOOGLEPAY APPLEPAY COD"`
	CardHolder string `json:"card_holder" binding:"required_if=Method CREDIT,max=100"`
	CardLast4  string `json:"card_last4" binding:"required_if=Method CREDIT"`
	CardExpiry string `json:"card_expiry" binding:"required_if=Method CREDIT"`
}

// PlaceOrderRequest: items override the cart when present; the address comes
// from address_id, then the inline address, then the user's default.
type PlaceOrderRequest struct {
	Items     []OrderLineRequest   `json:"items" binding:"omitempty,dive"`
	AddressID *uint                `json:"address_id"`
	Address   *AddressRequest      `json:"address"`
	Guest     *GuestContactRequest `json:"guest"`
	Payment   PaymentRequest       `json:"payment"`
	Notes     string               `json:"notes" binding:"max=1000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
}

type ForceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
	Reason string `json:"reason" binding:"required,max=500"`
}

type UpdateTrackingRequest struct {
	Carrier        string `json:"carrier" binding:"max=50"`
	TrackingNumber string `json:"tracking_number" binding:"required,max=100"`
}

// PlaceOrder converts the caller's cart (or explicit items) into an order
// POST /api/v1/orders
func (ctrl *OrderController) PlaceOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	owner, ok := cartOwner(c)
	if !ok {
		return
	}
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	input := service.PlaceOrderInput{
		UserID:       owner.UserID,
		GuestSession: owner.GuestSession,
		AddressID:    req.AddressID,
		Payment: service.PaymentInput{
			Method:     model.PaymentMethod(req.Payment.Method),
			CardHolder: req.Payment.CardHolder,
			CardLast4:  req.Payment.CardLast4,
			CardExpiry: req.Payment.CardExpiry,
		},
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, service.OrderLine{VariantID: item.VariantID, Quantity: item.Quantity})
	}
	if req.Address != nil {
		address := req.Address.toInput()
		input.Address = &address
	}
	if req.Guest != nil {
		input.Guest = &service.GuestContact{Name: req.Guest.Name, Email: req.Guest.Email, Phone: req.Guest.Phone}
	}

	order, err := ctrl.checkoutService.PlaceOrder(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	log.Info("Order placed", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"is_guest":     order.IsGuest,
		"total":        order.Total.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListMyOrders
// GET /api/v1/orders
func (ctrl *OrderController) ListMyOrders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	orders, err := ctrl.orderService.ListUserOrders(userID)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetMyOrder
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetMyOrder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetUserOrder(userID, orderID)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// LookupGuestOrder lets a guest read an order by number and contact email
// GET /api/v1/orders/lookup/:number?email=
func (ctrl *OrderController) LookupGuestOrder(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		respondError(c, fmt.Errorf("%w: email is required", service.ErrValidation), "order")
		return
	}

	order, err := ctrl.orderService.GetGuestOrder(c.Param("number"), email)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD", service.ErrValidation, name)
}

func orderFilterFromQuery(c *gin.Context) (repository.OrderFilter, error) {
	filter := repository.OrderFilter{
		Status: model.OrderStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListOrders is the admin view across all customers
// GET /api/v1/admin/orders?status=&from=&to=&limit=&offset=
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	orders, total, err := ctrl.orderService.ListOrders(filter)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
		"total":  total,
	})
}

// UpdateStatus moves an order along its lifecycle
// PUT /api/v1/admin/orders/:id/status
func (ctrl *OrderController) UpdateStatus(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.GetUserID(c)

	order, err := ctrl.orderService.UpdateStatus(orderID, model.OrderStatus(req.Status), actorID)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ForceStatus overrides the lifecycle. Audited with the given reason.
// POST /api/v1/admin/orders/:id/force-status
func (ctrl *OrderController) ForceStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ForceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	actorID, _ := middleware.GetUserID(c)

	order, err := ctrl.orderService.ForceStatus(orderID, model.OrderStatus(req.Status), actorID, req.Reason)
	if err != nil {
		respondError(c, err, "order")
		return
	}

	log.Warn("Order status forced", map[string]interface{}{
		"order_id": orderID,
		"status":   req.Status,
		"actor_id": actorID,
		"reason":   req.Reason,
	})
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateTracking
// PUT /api/v1/admin/orders/:id/tracking
func (ctrl *OrderController) UpdateTracking(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := ctrl.orderService.UpdateTracking(orderID, req.Carrier, req.TrackingNumber)
	if err != nil {
		respondError(c, err, "order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ExportOrders streams an xlsx, or returns a presigned link when exports are archived
// GET /api/v1/admin/orders/export?status=&from=&to=
func (ctrl *OrderController) ExportOrders(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		respondError(c, err, "order export")
		return
	}

	result, err := ctrl.exportService.ExportOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "order export")
		return
	}

	if result.DownloadURL != "" {
		c.JSON(http.StatusOK, gin.H{"export": result})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
