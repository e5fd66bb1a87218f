package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	apperrors "github.com/ikkim/shopcore-backend/internal/errors"
	"github.com/ikkim/shopcore-backend/internal/middleware"
)

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
}

// Order matters: specific sentinels before the generic ones they may wrap.
var serviceErrors = []errorMapping{
	{service.ErrProductNotFound, http.StatusNotFound, apperrors.ProductNotFound, false},
	{service.ErrVariantNotFound, http.StatusNotFound, apperrors.VariantNotFound, false},
	{service.ErrColorNotFound, http.StatusNotFound, apperrors.ColorNotFound, false},
	{service.ErrCartLineNotFound, http.StatusNotFound, apperrors.CartLineNotFound, false},
	{service.ErrAddressNotFound, http.StatusNotFound, apperrors.AddressNotFound, false},
	{service.ErrOrderNotFound, http.StatusNotFound, apperrors.OrderNotFound, false},
	{service.ErrUserNotFound, http.StatusNotFound, apperrors.ResourceNotFound, false},
	{service.ErrInvalidQuantity, http.StatusBadRequest, apperrors.ValidationInvalidQuantity, false},
	{service.ErrInvalidStatus, http.StatusBadRequest, apperrors.ValidationInvalidStatus, false},
	{service.ErrValidation, http.StatusBadRequest, apperrors.ValidationInvalidInput, false},
	{service.ErrEmptyCart, http.StatusBadRequest, apperrors.CartEmpty, false},
	{service.ErrCartOwnerRequired, http.StatusUnauthorized, apperrors.AuthGuestSessionNeeded, false},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, false},
	{service.ErrUnauthorizedAccess, http.StatusForbidden, apperrors.AuthzOwnerOnly, false},
	{service.ErrInsufficientStock, http.StatusConflict, apperrors.StockInsufficient, false},
	{service.ErrInvalidTransition, http.StatusConflict, apperrors.OrderInvalidTransition, false},
	{service.ErrEmailAlreadyExists, http.StatusConflict, apperrors.AuthEmailAlreadyExists, false},
	{service.ErrColorExists, http.StatusConflict, apperrors.ResourceAlreadyExists, false},
	{service.ErrCheckoutInProgress, http.StatusConflict, apperrors.OrderInProgress, true},
	{service.ErrConflict, http.StatusConflict, apperrors.ResourceConflict, true},
	{service.ErrAddressResolutionFailed, http.StatusUnprocessableEntity, apperrors.AddressResolutionFailed, false},
}

// respondError maps a service error onto the HTTP taxonomy. Anything unknown
// goes through ParseError, which never leaks driver detail.
func respondError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	for _, m := range serviceErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		log.Warn("Request rejected", map[string]interface{}{
			"code":  m.code,
			"error": err.Error(),
		})
		resp := apperrors.ErrorResponse{
			Error:     m.code,
			Message:   err.Error(),
			Retryable: m.retryable,
		}
		var stockErr *service.InsufficientStockError
		if errors.As(err, &stockErr) {
			resp.Details = map[string]interface{}{
				"variant_id": stockErr.VariantID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			}
		}
		c.JSON(m.status, resp)
		return
	}

	log.Error("Request failed", err, map[string]interface{}{
		"context": context,
	})
	apperrors.ParseAndRespond(c, err, context)
}

func respondBindError(c *gin.Context, err error) {
	middleware.GetLoggerFromContext(c).Warn("Invalid request data", map[string]interface{}{
		"error": err.Error(),
	})
	c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{
		Error:   apperrors.ValidationInvalidInput,
		Message: "Invalid request data",
		Details: map[string]interface{}{"reason": err.Error()},
	})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func requireUserID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return 0, false
	}
	return userID, true
}

// cartOwner identifies the caller as a user, or failing that as a guest session.
func cartOwner(c *gin.Context) (service.CartOwner, bool) {
	if userID, ok := middleware.GetUserID(c); ok {
		return service.CartOwner{UserID: userID}, true
	}
	if session, ok := middleware.GetGuestSession(c); ok {
		return service.CartOwner{GuestSession: session}, true
	}
	apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthGuestSessionNeeded,
		"Sign in or start a guest session first")
	return service.CartOwner{}, false
}
