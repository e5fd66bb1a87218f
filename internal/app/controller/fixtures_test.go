package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/app/service"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/ikkim/shopcore-backend/internal/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testUserHeader  = "X-Test-User"
	testRoleHeader  = "X-Test-Role"
	testGuestHeader = "X-Test-Guest"
)

type controllerEnv struct {
	db     *gorm.DB
	router *gin.Engine

	addresses service.AddressService
	carts     service.CartService
	orders    service.OrderService
}

// setupControllerTest wires every controller behind a stub identity layer
// that trusts the X-Test-* headers.
func setupControllerTest(t *testing.T) *controllerEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	userRepo := repository.NewUserRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	inventoryRepo := repository.NewInventoryRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	addressRepo := repository.NewAddressRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)

	authService := service.NewAuthService(userRepo, "test-secret", time.Minute, time.Hour, time.Hour)
	productService := service.NewProductService(productRepo)
	inventoryService := service.NewInventoryService(testDB, inventoryRepo)
	cartService := service.NewCartService(cartRepo, inventoryRepo, time.Hour)
	addressService := service.NewAddressService(testDB, addressRepo, userRepo)
	checkoutService := service.NewCheckoutService(testDB, orderRepo, cartRepo, inventoryRepo, addressRepo, userRepo, nil)
	orderService := service.NewOrderService(testDB, orderRepo, inventoryRepo, nil)
	exportService := service.NewExportService(orderRepo, nil, "exports")

	authCtrl := NewAuthController(authService)
	productCtrl := NewProductController(productService, inventoryService)
	cartCtrl := NewCartController(cartService)
	addressCtrl := NewAddressController(addressService)
	orderCtrl := NewOrderController(checkoutService, orderService, exportService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if raw := c.GetHeader(testUserHeader); raw != "" {
			id, _ := strconv.ParseUint(raw, 10, 32)
			c.Set(middleware.UserIDKey, uint(id))
			role := model.RoleUser
			if c.GetHeader(testRoleHeader) != "" {
				role = model.UserRole(c.GetHeader(testRoleHeader))
			}
			c.Set(middleware.UserRoleKey, role)
		}
		if session := c.GetHeader(testGuestHeader); session != "" {
			c.Set(middleware.GuestSessionKey, session)
		}
		c.Next()
	})

	router.POST("/auth/register", authCtrl.Register)
	router.POST("/auth/login", authCtrl.Login)
	router.GET("/auth/me", authCtrl.GetMe)
	router.POST("/auth/guest", authCtrl.StartGuestSession)

	router.GET("/colors", productCtrl.ListColors)
	router.GET("/products", productCtrl.ListProducts)
	router.GET("/products/:id", productCtrl.GetProduct)
	router.GET("/products/:id/variant", productCtrl.GetVariant)
	router.POST("/admin/colors", productCtrl.CreateColor)
	router.POST("/admin/products", productCtrl.CreateProduct)
	router.PUT("/admin/products/:id/variants", productCtrl.ReplaceVariants)
	router.POST("/admin/variants/:id/restock", productCtrl.Restock)
	router.GET("/admin/variants/:id/movements", productCtrl.ListMovements)

	router.GET("/cart", cartCtrl.GetCart)
	router.PUT("/cart/items", cartCtrl.UpsertLine)
	router.DELETE("/cart/items/:variant_id", cartCtrl.RemoveLine)
	router.DELETE("/cart", cartCtrl.ClearCart)

	router.GET("/addresses", addressCtrl.ListAddresses)
	router.POST("/addresses", addressCtrl.AddAddress)
	router.PUT("/addresses/:id", addressCtrl.UpdateAddress)
	router.DELETE("/addresses/:id", addressCtrl.DeleteAddress)
	router.PUT("/addresses/:id/default", addressCtrl.SetDefaultAddress)

	router.POST("/orders", orderCtrl.PlaceOrder)
	router.GET("/orders", orderCtrl.ListMyOrders)
	router.GET("/orders/lookup/:number", orderCtrl.LookupGuestOrder)
	router.GET("/orders/:id", orderCtrl.GetMyOrder)
	router.GET("/admin/orders", orderCtrl.ListOrders)
	router.GET("/admin/orders/export", orderCtrl.ExportOrders)
	router.PUT("/admin/orders/:id/status", orderCtrl.UpdateStatus)
	router.POST("/admin/orders/:id/force-status", orderCtrl.ForceStatus)
	router.PUT("/admin/orders/:id/tracking", orderCtrl.UpdateTracking)

	return &controllerEnv{
		db:        testDB,
		router:    router,
		addresses: addressService,
		carts:     cartService,
		orders:    orderService,
	}
}

type identity func(r *http.Request)

func asUser(user *model.User) identity {
	return func(r *http.Request) {
		r.Header.Set(testUserHeader, strconv.FormatUint(uint64(user.ID), 10))
		r.Header.Set(testRoleHeader, string(user.Role))
	}
}

func asGuest(session string) identity {
	return func(r *http.Request) {
		r.Header.Set(testGuestHeader, session)
	}
}

func (env *controllerEnv) do(t *testing.T, method, path string, body interface{}, opts ...identity) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (env *controllerEnv) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	user := &model.User{Email: email, PasswordHash: "hash", Name: "Test User", Role: role}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

// createVariant creates a product at price with one Black/M variant.
func (env *controllerEnv) createVariant(t *testing.T, price int64, quantity int) *model.Variant {
	var color model.Color
	require.NoError(t, env.db.Where(model.Color{Name: "Black"}).FirstOrCreate(&color).Error)

	product := &model.Product{Name: fmt.Sprintf("Product %d", price), Price: decimal.NewFromInt(price)}
	require.NoError(t, env.db.Create(product).Error)

	variant := &model.Variant{ProductID: product.ID, ColorID: color.ID, Size: "M", Quantity: quantity}
	require.NoError(t, env.db.Create(variant).Error)
	return variant
}

func (env *controllerEnv) stock(t *testing.T, variantID uint) int {
	var variant model.Variant
	require.NoError(t, env.db.First(&variant, variantID).Error)
	return variant.Quantity
}

func addressBody(name string, isDefault bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"street":      "1 Main St",
		"city":        "Austin",
		"state":       "TX",
		"postal_code": "78701",
		"country":     "US",
		"is_default":  isDefault,
	}
}

func codPayment() map[string]interface{} {
	return map[string]interface{}{"method": "COD"}
}

func idOf(v interface{}) uint {
	return uint(v.(float64))
}
