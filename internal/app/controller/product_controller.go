package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

type ProductController struct {
	productService   service.ProductService
	inventoryService service.InventoryService
}

func NewProductController(productService service.ProductService, inventoryService service.InventoryService) *ProductController {
	return &ProductController{
		productService:   productService,
		inventoryService: inventoryService,
	}
}

type VariantRequest struct {
	ColorID  uint   `json:"color_id" binding:"required"`
	Size     string `json:"size" binding:"required,max=20"`
	Quantity int    `json:"quantity" binding:"gte=0"`
}

type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	Images      []string         `json:"images" binding:"dive,url"`
	Variants    []VariantRequest `json:"variants" binding:"dive"`
}

type ReplaceVariantsRequest struct {
	Variants []VariantRequest `json:"variants" binding:"required,dive"`
}

type CreateColorRequest struct {
	Name string `json:"name" binding:"required,max=50"`
	Hex  string `json:"hex" binding:"omitempty,hexcolor"`
}

type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Reason   string `json:"reason" binding:"omitempty,oneof=restock adjustment"`
}

func toVariantInputs(reqs []VariantRequest) []service.VariantInput {
	inputs := make([]service.VariantInput, 0, len(reqs))
	for _, v := range reqs {
		inputs = append(inputs, service.VariantInput{ColorID: v.ColorID, Size: v.Size, Quantity: v.Quantity})
	}
	return inputs
}

// ListProducts returns products
// GET /api/v1/products?search=&limit=&offset=
func (ctrl *ProductController) ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	products, total, err := ctrl.productService.ListProducts(service.ProductListOptions{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err, "products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
		"total":    total,
	})
}

// GetProduct returns one product with its variants
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProductByID(id)
	if err != nil {
		respondError(c, err, "product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

type variantQuery struct {
	ColorID uint   `form:"color_id" binding:"required"`
	Size    string `form:"size" binding:"required"`
}

// GetVariant resolves (product, color, size) to a variant and its stock
// GET /api/v1/products/:id/variant?color_id=&size=
func (ctrl *ProductController) GetVariant(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var q variantQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	variant, err := ctrl.inventoryService.GetVariant(id, q.ColorID, q.Size)
	if err != nil {
		respondError(c, err, "variant")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"variant":  variant,
		"in_stock": variant.Quantity > 0,
	})
}

// ListColors
// GET /api/v1/colors
func (ctrl *ProductController) ListColors(c *gin.Context) {
	colors, err := ctrl.productService.ListColors()
	if err != nil {
		respondError(c, err, "colors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"colors": colors})
}

// CreateColor
// POST /api/v1/admin/colors
func (ctrl *ProductController) CreateColor(c *gin.Context) {
	var req CreateColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	color, err := ctrl.productService.CreateColor(req.Name, req.Hex)
	if err != nil {
		respondError(c, err, "color")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"color": color})
}

// CreateProduct
// POST /api/v1/admin/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := ctrl.productService.CreateProduct(service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		Images:      req.Images,
		Variants:    toVariantInputs(req.Variants),
	})
	if err != nil {
		respondError(c, err, "product")
		return
	}

	log.Info("Product created", map[string]interface{}{
		"product_id": product.ID,
	})
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// ReplaceVariants swaps a product's variant set
// PUT /api/v1/admin/products/:id/variants
func (ctrl *ProductController) ReplaceVariants(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReplaceVariantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	variants, err := ctrl.productService.ReplaceVariants(id, toVariantInputs(req.Variants))
	if err != nil {
		respondError(c, err, "variant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"variants": variants})
}

// Restock adds stock to a variant
// POST /api/v1/admin/variants/:id/restock
func (ctrl *ProductController) Restock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	variant, err := ctrl.inventoryService.Restock(id, req.Quantity, model.StockMovementReason(req.Reason), nil)
	if err != nil {
		respondError(c, err, "variant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"variant": variant})
}

// ListMovements returns the stock ledger of a variant, newest first
// GET /api/v1/admin/variants/:id/movements?limit=
func (ctrl *ProductController) ListMovements(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	if _, err := ctrl.inventoryService.GetVariantByID(id); err != nil {
		respondError(c, err, "variant")
		return
	}
	movements, err := ctrl.inventoryService.ListMovements(id, limit)
	if err != nil {
		respondError(c, err, "variant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}
