package repository

import (
	"fmt"
	"testing"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepoTest(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createTestColor(t *testing.T, testDB *gorm.DB, name string) *model.Color {
	color := &model.Color{Name: name, Hex: "#000000"}
	require.NoError(t, testDB.Create(color).Error)
	return color
}

// createTestVariant creates a product priced at price with one variant of size M.
func createTestVariant(t *testing.T, testDB *gorm.DB, color *model.Color, price int64, quantity int) *model.Variant {
	product := &model.Product{
		Name:  fmt.Sprintf("Product %d", price),
		Price: decimal.NewFromInt(price),
	}
	require.NoError(t, testDB.Create(product).Error)

	variant := &model.Variant{
		ProductID: product.ID,
		ColorID:   color.ID,
		Size:      "M",
		Quantity:  quantity,
	}
	require.NoError(t, testDB.Create(variant).Error)
	return variant
}
