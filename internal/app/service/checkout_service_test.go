package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutService_PlaceOrderFromCart(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "buyer@example.com")
	shirt := env.createVariant(t, 20, 5)
	hat := env.createVariant(t, 15, 1)
	env.addAddress(t, user.ID, "Home", true)
	owner := CartOwner{UserID: user.ID}

	_, err := env.carts.UpsertLine(owner, shirt.ID, 2)
	require.NoError(t, err)
	_, err = env.carts.UpsertLine(owner, hat.ID, 1)
	require.NoError(t, err)

	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:  user.ID,
		Payment: codPayment(),
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(55).Equal(order.Total), "total was %s", order.Total)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.False(t, order.IsGuest)
	require.NotNil(t, order.UserID)
	assert.Equal(t, user.ID, *order.UserID)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "Home", order.ShippingAddress.Name)
	assert.NotEmpty(t, order.OrderNumber)

	assert.Equal(t, 3, env.stock(t, shirt.ID))
	assert.Equal(t, 0, env.stock(t, hat.ID))

	cart, err := env.carts.GetOrCreate(owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.Equal(t, []events.Type{events.OrderCreated}, env.publisher.types())
}

func TestCheckoutService_TotalIsFrozen(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "frozen@example.com")
	variant := env.createVariant(t, 20, 5)
	env.addAddress(t, user.ID, "Home", true)

	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:  user.ID,
		Lines:   []OrderLine{{VariantID: variant.ID, Quantity: 1}, {VariantID: variant.ID, Quantity: 1}},
		Payment: codPayment(),
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1, "explicit lines are merged per variant")
	assert.Equal(t, 2, order.Items[0].Quantity)

	require.NoError(t, env.db.Exec("UPDATE products SET price = ? WHERE id = ?", "99.00", variant.ProductID).Error)

	reloaded, err := env.orders.GetUserOrder(user.ID, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(reloaded.Total))
}

func TestCheckoutService_EmptyCart(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "empty@example.com")
	env.addAddress(t, user.ID, "Home", true)

	_, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{UserID: user.ID, Payment: codPayment()})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = env.carts.GetOrCreate(CartOwner{UserID: user.ID})
	require.NoError(t, err)
	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{UserID: user.ID, Payment: codPayment()})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutService_InsufficientStockIsAtomic(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "atomic@example.com")
	plenty := env.createVariant(t, 20, 10)
	scarce := env.createVariant(t, 15, 1)
	env.addAddress(t, user.ID, "Home", true)
	owner := CartOwner{UserID: user.ID}

	_, err := env.carts.UpsertLine(owner, plenty.ID, 3)
	require.NoError(t, err)
	_, err = env.carts.UpsertLine(owner, scarce.ID, 2)
	require.NoError(t, err)

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{UserID: user.ID, Payment: codPayment()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, scarce.ID, stockErr.VariantID)

	assert.Equal(t, 10, env.stock(t, plenty.ID))
	assert.Equal(t, 1, env.stock(t, scarce.ID))

	var orders int64
	env.db.Model(&model.Order{}).Count(&orders)
	assert.Zero(t, orders)

	var movements int64
	env.db.Model(&model.StockMovement{}).Count(&movements)
	assert.Zero(t, movements)

	cart, err := env.carts.GetOrCreate(owner)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2, "cart is untouched")
	assert.Empty(t, env.publisher.types())
}

func TestCheckoutService_ConcurrentLastUnit(t *testing.T) {
	env := setupServiceTest(t)
	variant := env.createVariant(t, 20, 1)

	const buyers = 2
	users := make([]*model.User, buyers)
	for i := range users {
		users[i] = env.createUser(t, fmt.Sprintf("racer%d@example.com", i))
		env.addAddress(t, users[i].ID, "Home", true)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	start := make(chan struct{})
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
				UserID:  users[i].ID,
				Lines:   []OrderLine{{VariantID: variant.ID, Quantity: 1}},
				Payment: codPayment(),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, env.stock(t, variant.ID))
}

func TestCheckoutService_AddressResolution(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "resolve@example.com")
	other := env.createUser(t, "stranger@example.com")
	variant := env.createVariant(t, 20, 10)
	lines := []OrderLine{{VariantID: variant.ID, Quantity: 1}}

	_, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: lines, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrAddressResolutionFailed, "no default address")

	foreign := env.addAddress(t, other.ID, "Theirs", true)
	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: lines, AddressID: &foreign.ID, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrAddressResolutionFailed, "address owned by someone else")
	assert.Equal(t, 10, env.stock(t, variant.ID))

	inline := testAddressInput("Inline", false)
	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: lines, Address: &inline, Payment: codPayment(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Inline", order.ShippingAddress.Name)
	require.NotNil(t, order.ShippingAddressID)

	saved, err := env.addresses.List(user.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].IsDefault, "first saved address becomes default")

	second, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: lines, AddressID: &saved[0].ID, Payment: codPayment(),
	})
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, *second.ShippingAddressID)
}

func TestCheckoutService_ShippingSnapshotSurvivesAddressEdit(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "snapshot@example.com")
	variant := env.createVariant(t, 20, 10)
	home := env.addAddress(t, user.ID, "Home", true)

	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: []OrderLine{{VariantID: variant.ID, Quantity: 1}}, Payment: codPayment(),
	})
	require.NoError(t, err)

	city := "Houston"
	_, err = env.addresses.Update(user.ID, home.ID, AddressPatch{City: &city})
	require.NoError(t, err)

	reloaded, err := env.orders.GetUserOrder(user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Austin", reloaded.ShippingAddress.City)
}

func TestCheckoutService_GuestCheckout(t *testing.T) {
	env := setupServiceTest(t)
	variant := env.createVariant(t, 20, 10)
	owner := CartOwner{GuestSession: "guest-session"}

	_, err := env.carts.UpsertLine(owner, variant.ID, 2)
	require.NoError(t, err)

	inline := testAddressInput("Guest Home", false)
	contact := &GuestContact{Name: "Guest Buyer", Email: "Guest@Example.com"}

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		GuestSession: owner.GuestSession, Guest: contact, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrAddressResolutionFailed, "guests must send an address")

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		GuestSession: owner.GuestSession, Address: &inline, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrValidation, "guest contact is required")

	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		GuestSession: owner.GuestSession, Guest: contact, Address: &inline, Payment: codPayment(),
	})
	require.NoError(t, err)
	assert.True(t, order.IsGuest)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "guest@example.com", order.GuestEmail)
	assert.True(t, decimal.NewFromInt(40).Equal(order.Total))
	assert.Equal(t, 8, env.stock(t, variant.ID))

	var address model.Address
	require.NoError(t, env.db.First(&address, *order.ShippingAddressID).Error)
	assert.Nil(t, address.UserID, "guest addresses have no owner")

	found, err := env.orders.GetGuestOrder(order.OrderNumber, "GUEST@example.com")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func TestCheckoutService_PaymentValidation(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "card@example.com")
	variant := env.createVariant(t, 20, 10)
	env.addAddress(t, user.ID, "Home", true)
	lines := []OrderLine{{VariantID: variant.ID, Quantity: 1}}

	cases := []PaymentInput{
		{Method: "BITCOIN"},
		{Method: model.PaymentCredit, CardLast4: "4242", CardExpiry: "12/29"},
		{Method: model.PaymentCredit, CardHolder: "A B", CardLast4: "42", CardExpiry: "12/29"},
		{Method: model.PaymentCredit, CardHolder: "A B", CardLast4: "4242", CardExpiry: "13/29"},
	}
	for _, payment := range cases {
		_, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
			UserID: user.ID, Lines: lines, Payment: payment,
		})
		assert.ErrorIs(t, err, ErrValidation, "%+v", payment)
	}

	order, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID,
		Lines:  lines,
		Payment: PaymentInput{
			Method: model.PaymentCredit, CardHolder: "A B", CardLast4: "4242", CardExpiry: "12/29",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "4242", order.CardLast4)
	assert.Equal(t, model.PaymentCredit, order.PaymentMethod)
}

func TestCheckoutService_InvalidLines(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "lines@example.com")
	env.addAddress(t, user.ID, "Home", true)

	_, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: []OrderLine{{VariantID: 9999, Quantity: 1}}, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: user.ID, Lines: []OrderLine{{VariantID: 1, Quantity: 0}}, Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{Payment: codPayment()})
	assert.ErrorIs(t, err, ErrCartOwnerRequired)
}

func TestCheckoutService_OversizedLinesAreRejected(t *testing.T) {
	env := setupServiceTest(t)
	user := env.createUser(t, "huge@example.com")
	variant := env.createVariant(t, 10, 5)
	env.addAddress(t, user.ID, "Home", true)

	half := math.MaxInt/2 + 1
	_, err := env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:  user.ID,
		Lines:   []OrderLine{{VariantID: variant.ID, Quantity: half}, {VariantID: variant.ID, Quantity: half}},
		Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:  user.ID,
		Lines:   []OrderLine{{VariantID: variant.ID, Quantity: 6000}, {VariantID: variant.ID, Quantity: 6000}},
		Payment: codPayment(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 5, env.stock(t, variant.ID))
	var movements int64
	env.db.Model(&model.StockMovement{}).Count(&movements)
	assert.Zero(t, movements)

	_, err = env.carts.UpsertLine(CartOwner{UserID: user.ID}, variant.ID, 10001)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]uint
	pending map[string]bool
	fail    bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{entries: map[string]uint{}, pending: map[string]bool{}}
}

func (m *memoryIdempotencyStore) Reserve(_ context.Context, key string, _ time.Duration) (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, false, errors.New("store down")
	}
	if id, ok := m.entries[key]; ok {
		return id, false, nil
	}
	if m.pending[key] {
		return 0, false, nil
	}
	m.pending[key] = true
	return 0, true, nil
}

func (m *memoryIdempotencyStore) Complete(_ context.Context, key string, orderID uint, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.entries[key] = orderID
	return nil
}

func (m *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	return nil
}

func TestCheckoutService_IdempotencyKey(t *testing.T) {
	env := setupServiceTest(t)
	store := newMemoryIdempotencyStore()
	checkout := NewCheckoutService(env.db, env.orderRepo, env.cartRepo, env.inventoryRepo,
		env.addressRepo, env.userRepo, env.publisher, WithIdempotencyStore(store, time.Hour))

	user := env.createUser(t, "idem@example.com")
	variant := env.createVariant(t, 20, 10)
	env.addAddress(t, user.ID, "Home", true)
	input := PlaceOrderInput{
		UserID:         user.ID,
		Lines:          []OrderLine{{VariantID: variant.ID, Quantity: 1}},
		Payment:        codPayment(),
		IdempotencyKey: "key-1",
	}

	first, err := checkout.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
	second, err := checkout.PlaceOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 9, env.stock(t, variant.ID), "replay does not take stock twice")

	store.pending[CartOwner{UserID: user.ID}.Key()+":key-2"] = true
	input.IdempotencyKey = "key-2"
	_, err = checkout.PlaceOrder(context.Background(), input)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	store.fail = true
	input.IdempotencyKey = "key-3"
	_, err = checkout.PlaceOrder(context.Background(), input)
	require.NoError(t, err, "an unavailable store does not block checkout")
	assert.Equal(t, 8, env.stock(t, variant.ID))
}

func TestCheckoutService_FailedCheckoutReleasesKey(t *testing.T) {
	env := setupServiceTest(t)
	store := newMemoryIdempotencyStore()
	checkout := NewCheckoutService(env.db, env.orderRepo, env.cartRepo, env.inventoryRepo,
		env.addressRepo, env.userRepo, env.publisher, WithIdempotencyStore(store, time.Hour))

	user := env.createUser(t, "release@example.com")
	variant := env.createVariant(t, 20, 1)
	env.addAddress(t, user.ID, "Home", true)
	input := PlaceOrderInput{
		UserID:         user.ID,
		Lines:          []OrderLine{{VariantID: variant.ID, Quantity: 2}},
		Payment:        codPayment(),
		IdempotencyKey: "retry-me",
	}

	_, err := checkout.PlaceOrder(context.Background(), input)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, store.pending)

	input.Lines[0].Quantity = 1
	_, err = checkout.PlaceOrder(context.Background(), input)
	require.NoError(t, err)
}
