package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_GetOrCreateIsIdempotent(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "cart@example.com")
	owner := CartOwner{UserID: user.ID}

	first, err := env.carts.GetOrCreate(owner)
	require.NoError(t, err)
	second, err := env.carts.GetOrCreate(owner)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Nil(t, first.ExpiresAt)
	require.NotNil(t, first.UserID)

	_, err = env.carts.GetOrCreate(CartOwner{})
	assert.ErrorIs(t, err, ErrCartOwnerRequired)
}

func TestCartService_UpsertLineSetsQuantity(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "upsert@example.com")
	variant := env.createVariant(t, 20, 10)
	owner := CartOwner{UserID: user.ID}

	cart, err := env.carts.UpsertLine(owner, variant.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	// same call twice leaves the same state
	cart, err = env.carts.UpsertLine(owner, variant.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = env.carts.UpsertLine(owner, variant.ID, 5)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity, "quantity is replaced, not added")
	assert.True(t, decimal.NewFromInt(20).Equal(cart.Items[0].UnitPrice))
}

func TestCartService_UpsertLineRefreshesPriceSnapshot(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "price@example.com")
	variant := env.createVariant(t, 20, 10)
	owner := CartOwner{UserID: user.ID}

	_, err := env.carts.UpsertLine(owner, variant.ID, 1)
	require.NoError(t, err)

	require.NoError(t, env.db.Exec("UPDATE products SET sale_price = ? WHERE id = ?", "12.50", variant.ProductID).Error)

	cart, err := env.carts.UpsertLine(owner, variant.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(cart.Items[0].UnitPrice))
}

func TestCartService_UpsertLineValidation(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "invalid@example.com")
	variant := env.createVariant(t, 20, 10)
	owner := CartOwner{UserID: user.ID}

	_, err := env.carts.UpsertLine(owner, variant.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.carts.UpsertLine(owner, variant.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.carts.UpsertLine(owner, 9999, 1)
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func TestCartService_RemoveLine(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "remove@example.com")
	a := env.createVariant(t, 20, 10)
	b := env.createVariant(t, 15, 10)
	owner := CartOwner{UserID: user.ID}

	_, err := env.carts.RemoveLine(owner, a.ID)
	assert.ErrorIs(t, err, ErrCartLineNotFound, "no cart yet")

	_, err = env.carts.UpsertLine(owner, a.ID, 1)
	require.NoError(t, err)
	_, err = env.carts.UpsertLine(owner, b.ID, 1)
	require.NoError(t, err)

	cart, err := env.carts.RemoveLine(owner, a.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b.ID, cart.Items[0].VariantID)

	_, err = env.carts.RemoveLine(owner, a.ID)
	assert.ErrorIs(t, err, ErrCartLineNotFound)

	require.NoError(t, env.carts.Clear(owner))
	cart, err = env.carts.GetOrCreate(owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_GuestCartExpiry(t *testing.T) {
	env := setupServiceTest(t)
	variant := env.createVariant(t, 20, 10)
	svc := env.carts.(*cartService)
	owner := CartOwner{GuestSession: "session-1"}

	start := time.Now()
	svc.now = func() time.Time { return start }

	cart, err := svc.UpsertLine(owner, variant.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, cart.ExpiresAt)
	assert.WithinDuration(t, start.Add(testGuestTTL), *cart.ExpiresAt, time.Second)
	assert.Nil(t, cart.UserID)

	svc.now = func() time.Time { return start.Add(testGuestTTL + time.Minute) }

	expired, err := svc.GetOrCreate(owner)
	require.NoError(t, err)
	assert.Empty(t, expired.Items, "expired guest cart reads as empty")
	assert.Equal(t, cart.ID, expired.ID)

	svc.now = func() time.Time { return start.Add(3 * testGuestTTL) }
	purged, err := svc.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestCartService_GuestAndUserCartsAreSeparate(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "separate@example.com")
	variant := env.createVariant(t, 20, 10)

	_, err := env.carts.UpsertLine(CartOwner{GuestSession: "abc"}, variant.ID, 1)
	require.NoError(t, err)

	cart, err := env.carts.GetOrCreate(CartOwner{UserID: user.ID})
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}
