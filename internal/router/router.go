package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/shopcore-backend/config"
	"github.com/ikkim/shopcore-backend/internal/app/controller"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/middleware"
)

type Router struct {
	authController    *controller.AuthController
	productController *controller.ProductController
	cartController    *controller.CartController
	addressController *controller.AddressController
	orderController   *controller.OrderController
	wsController      *controller.WSController
	authMiddleware    *middleware.AuthMiddleware
	config            *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	productController *controller.ProductController,
	cartController *controller.CartController,
	addressController *controller.AddressController,
	orderController *controller.OrderController,
	wsController *controller.WSController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:    authController,
		productController: productController,
		cartController:    cartController,
		addressController: addressController,
		orderController:   orderController,
		wsController:      wsController,
		authMiddleware:    authMiddleware,
		config:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "shopcore API is running",
		})
	})

	// Signed-in users and guest sessions share the cart and checkout routes.
	shopper := []gin.HandlerFunc{
		r.authMiddleware.OptionalAuthenticate(),
		r.authMiddleware.GuestSession(),
		r.authMiddleware.RequireShopper(),
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/guest", r.authController.StartGuestSession)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.GetMe)
		}

		v1.GET("/colors", r.productController.ListColors)

		products := v1.Group("/products")
		{
			products.GET("", r.productController.ListProducts)
			products.GET("/:id", r.productController.GetProduct)
			products.GET("/:id/variant", r.productController.GetVariant)
		}

		cart := v1.Group("/cart")
		cart.Use(shopper...)
		{
			cart.GET("", r.cartController.GetCart)
			cart.PUT("/items", r.cartController.UpsertLine)
			cart.DELETE("/items/:variant_id", r.cartController.RemoveLine)
			cart.DELETE("", r.cartController.ClearCart)
		}

		addresses := v1.Group("/addresses")
		addresses.Use(r.authMiddleware.Authenticate())
		{
			addresses.GET("", r.addressController.ListAddresses)
			addresses.POST("", r.addressController.AddAddress)
			addresses.PUT("/:id", r.addressController.UpdateAddress)
			addresses.DELETE("/:id", r.addressController.DeleteAddress)
			addresses.PUT("/:id/default", r.addressController.SetDefaultAddress)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", append(shopper, r.orderController.PlaceOrder)...)
			orders.GET("/lookup/:number", r.orderController.LookupGuestOrder)
			orders.GET("", r.authMiddleware.Authenticate(), r.orderController.ListMyOrders)
			orders.GET("/:id", r.authMiddleware.Authenticate(), r.orderController.GetMyOrder)
		}

		admin := v1.Group("/admin")
		admin.Use(
			r.authMiddleware.Authenticate(),
			r.authMiddleware.RequireRole(model.RoleAdmin),
		)
		{
			admin.GET("/orders", r.orderController.ListOrders)
			admin.GET("/orders/export", r.orderController.ExportOrders)
			admin.PUT("/orders/:id/status", r.orderController.UpdateStatus)
			admin.POST("/orders/:id/force-status", r.orderController.ForceStatus)
			admin.PUT("/orders/:id/tracking", r.orderController.UpdateTracking)

			admin.POST("/colors", r.productController.CreateColor)
			admin.POST("/products", r.productController.CreateProduct)
			admin.PUT("/products/:id/variants", r.productController.ReplaceVariants)
			admin.POST("/variants/:id/restock", r.productController.Restock)
			admin.GET("/variants/:id/movements", r.productController.ListMovements)
		}
	}

	// Browsers cannot set headers on the upgrade request, so the token may
	// also arrive as ?token=.
	router.GET("/ws/orders", r.authMiddleware.Authenticate(), r.wsController.OrderFeed)

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.RequestIDHeader,
			middleware.GuestSessionHeader,
			controller.IdempotencyKeyHeader,
		},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = allowedOrigins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}
