package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/middleware"
)

type AddressController struct {
	addressService service.AddressService
}

func NewAddressController(addressService service.AddressService) *AddressController {
	return &AddressController{
		addressService: addressService,
	}
}

type AddressRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,len=2"`
	Phone      string `json:"phone" binding:"max=30"`
	IsDefault  bool   `json:"is_default"`
}

func (r AddressRequest) toInput() service.AddressInput {
	return service.AddressInput{
		Name:       r.Name,
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		Phone:      r.Phone,
		IsDefault:  r.IsDefault,
	}
}

type UpdateAddressRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=100"`
	Street     *string `json:"street"`
	City       *string `json:"city" binding:"omitempty,max=100"`
	State      *string `json:"state" binding:"omitempty,max=100"`
	PostalCode *string `json:"postal_code" binding:"omitempty,max=20"`
	Country    *string `json:"country" binding:"omitempty,len=2"`
	Phone      *string `json:"phone" binding:"omitempty,max=30"`
	IsDefault  *bool   `json:"is_default"`
}

// ListAddresses returns the address book, default first
// GET /api/v1/addresses
func (ctrl *AddressController) ListAddresses(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	addresses, err := ctrl.addressService.List(userID)
	if err != nil {
		respondError(c, err, "address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"addresses": addresses,
		"count":     len(addresses),
	})
}

// AddAddress
// POST /api/v1/addresses
func (ctrl *AddressController) AddAddress(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	address, err := ctrl.addressService.Add(userID, req.toInput())
	if err != nil {
		respondError(c, err, "address")
		return
	}

	log.Info("Address added", map[string]interface{}{
		"user_id":    userID,
		"address_id": address.ID,
		"is_default": address.IsDefault,
	})
	c.JSON(http.StatusCreated, gin.H{"address": address})
}

// UpdateAddress applies a partial update
// PUT /api/v1/addresses/:id
func (ctrl *AddressController) UpdateAddress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	address, err := ctrl.addressService.Update(userID, addressID, service.AddressPatch{
		Name:       req.Name,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		respondError(c, err, "address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}

// DeleteAddress removes an address and reports which one became the default
// DELETE /api/v1/addresses/:id
func (ctrl *AddressController) DeleteAddress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	promoted, err := ctrl.addressService.Remove(userID, addressID)
	if err != nil {
		respondError(c, err, "address")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":             "Address deleted",
		"promoted_address_id": promoted,
	})
}

// SetDefaultAddress
// PUT /api/v1/addresses/:id/default
func (ctrl *AddressController) SetDefaultAddress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	address, err := ctrl.addressService.SetDefault(userID, addressID)
	if err != nil {
		respondError(c, err, "address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}
