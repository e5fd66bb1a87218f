package db

import (
	"errors"

	"github.com/ikkim/shopcore-backend/config"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/ikkim/shopcore-backend/pkg/util"
	"gorm.io/gorm"
)

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Color{},
		&model.Product{},
		&model.Variant{},
		&model.StockMovement{},
		&model.Cart{},
		&model.CartItem{},
		&model.Address{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusChange{},
	}
}

// Migrate runs database migrations
func Migrate(conn *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

var defaultColors = []model.Color{
	{Name: "Black", Hex: "#000000"},
	{Name: "White", Hex: "#FFFFFF"},
	{Name: "Navy", Hex: "#1F2A44"},
	{Name: "Red", Hex: "#C0392B"},
}

// Seed inserts the base color palette and, when configured, an admin account.
func Seed(conn *gorm.DB, admin config.AdminConfig) error {
	var count int64
	if err := conn.Model(&model.Color{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		colors := append([]model.Color(nil), defaultColors...)
		if err := conn.Create(&colors).Error; err != nil {
			logger.Error("Failed to seed colors", err)
			return err
		}
		logger.Info("Seeded default colors", map[string]interface{}{
			"count": len(colors),
		})
	} else {
		logger.Info("Colors already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
	}

	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	var existing model.User
	err := conn.Where("email = ?", admin.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := util.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	user := &model.User{
		Email:        admin.Email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         model.RoleAdmin,
	}
	if err := conn.Create(user).Error; err != nil {
		logger.Error("Failed to seed admin user", err)
		return err
	}

	logger.Info("Seeded admin user", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}
