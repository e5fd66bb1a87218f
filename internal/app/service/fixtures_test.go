package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/db"
	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testGuestTTL = 72 * time.Hour

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type testEnv struct {
	db        *gorm.DB
	publisher *recordingPublisher

	userRepo      repository.UserRepository
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	cartRepo      repository.CartRepository
	addressRepo   repository.AddressRepository
	orderRepo     repository.OrderRepository

	inventory InventoryService
	products  ProductService
	carts     CartService
	addresses AddressService
	checkout  CheckoutService
	orders    OrderService
}

func setupServiceTest(t *testing.T) *testEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	env := &testEnv{
		db:            testDB,
		publisher:     &recordingPublisher{},
		userRepo:      repository.NewUserRepository(testDB),
		productRepo:   repository.NewProductRepository(testDB),
		inventoryRepo: repository.NewInventoryRepository(testDB),
		cartRepo:      repository.NewCartRepository(testDB),
		addressRepo:   repository.NewAddressRepository(testDB),
		orderRepo:     repository.NewOrderRepository(testDB),
	}
	env.inventory = NewInventoryService(testDB, env.inventoryRepo)
	env.products = NewProductService(env.productRepo)
	env.carts = NewCartService(env.cartRepo, env.inventoryRepo, testGuestTTL)
	env.addresses = NewAddressService(testDB, env.addressRepo, env.userRepo)
	env.checkout = NewCheckoutService(testDB, env.orderRepo, env.cartRepo, env.inventoryRepo,
		env.addressRepo, env.userRepo, env.publisher)
	env.orders = NewOrderService(testDB, env.orderRepo, env.inventoryRepo, env.publisher)
	return env
}

func (env *testEnv) createUser(t *testing.T, email string) *model.User {
	user := &model.User{Email: email, PasswordHash: "hash", Name: "Test User", Role: model.RoleUser}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *testEnv) createColor(t *testing.T, name string) *model.Color {
	color := &model.Color{Name: name, Hex: "#111111"}
	require.NoError(t, env.db.Create(color).Error)
	return color
}

// createVariant creates a product at price with a single size M variant.
func (env *testEnv) createVariant(t *testing.T, price int64, quantity int) *model.Variant {
	var color model.Color
	require.NoError(t, env.db.Where(model.Color{Name: "Black"}).FirstOrCreate(&color).Error)

	product := &model.Product{Name: fmt.Sprintf("Product %d", price), Price: decimal.NewFromInt(price)}
	require.NoError(t, env.db.Create(product).Error)

	variant := &model.Variant{ProductID: product.ID, ColorID: color.ID, Size: "M", Quantity: quantity}
	require.NoError(t, env.db.Create(variant).Error)
	return variant
}

func (env *testEnv) stock(t *testing.T, variantID uint) int {
	variant, err := env.inventoryRepo.FindVariantByID(variantID)
	require.NoError(t, err)
	return variant.Quantity
}

func (env *testEnv) addAddress(t *testing.T, userID uint, name string, isDefault bool) *model.Address {
	address, err := env.addresses.Add(userID, testAddressInput(name, isDefault))
	require.NoError(t, err)
	return address
}

func testAddressInput(name string, isDefault bool) AddressInput {
	return AddressInput{
		Name:       name,
		Street:     "1 Main St",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		Country:    "us",
		IsDefault:  isDefault,
	}
}

func codPayment() PaymentInput {
	return PaymentInput{Method: model.PaymentCOD}
}
