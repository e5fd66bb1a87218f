package repository

import (
	"testing"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInventoryRepository_FindVariant(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewInventoryRepository(testDB)
	color := createTestColor(t, testDB, "Black")
	variant := createTestVariant(t, testDB, color, 20, 5)

	found, err := repo.FindVariant(variant.ProductID, color.ID, "M")
	require.NoError(t, err)
	assert.Equal(t, variant.ID, found.ID)
	require.NotNil(t, found.Color)
	assert.Equal(t, "Black", found.Color.Name)

	_, err = repo.FindVariant(variant.ProductID, color.ID, "XL")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestInventoryRepository_DecrementStock(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewInventoryRepository(testDB)
	color := createTestColor(t, testDB, "Black")
	variant := createTestVariant(t, testDB, color, 20, 3)

	ok, err := repo.DecrementStock(variant.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementStock(variant.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "only one unit left")

	current, err := repo.FindVariantByID(variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Quantity)

	ok, err = repo.DecrementStock(variant.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	current, err = repo.FindVariantByID(variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Quantity)
}

func TestInventoryRepository_IncrementStockAndMovements(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewInventoryRepository(testDB)
	color := createTestColor(t, testDB, "Black")
	variant := createTestVariant(t, testDB, color, 20, 0)

	require.NoError(t, repo.IncrementStock(variant.ID, 4))
	require.NoError(t, repo.CreateMovement(&model.StockMovement{
		VariantID:     variant.ID,
		Delta:         4,
		QuantityAfter: 4,
		Reason:        model.MovementRestock,
	}))

	assert.ErrorIs(t, repo.IncrementStock(9999, 1), gorm.ErrRecordNotFound)

	movements, err := repo.ListMovements(variant.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 4, movements[0].Delta)
	assert.Equal(t, model.MovementRestock, movements[0].Reason)
}

func TestInventoryRepository_LockVariants(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewInventoryRepository(testDB)
	color := createTestColor(t, testDB, "Black")
	a := createTestVariant(t, testDB, color, 20, 1)
	b := createTestVariant(t, testDB, color, 15, 2)

	err := testDB.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).LockVariants([]uint{b.ID, a.ID, b.ID})
		if err != nil {
			return err
		}
		assert.Len(t, locked, 2)
		require.NotNil(t, locked[a.ID].Product)
		assert.Equal(t, a.ProductID, locked[a.ID].Product.ID)
		return nil
	})
	require.NoError(t, err)

	err = testDB.Transaction(func(tx *gorm.DB) error {
		_, err := repo.WithTx(tx).LockVariants([]uint{a.ID, 9999})
		return err
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
