package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrAddressResolutionFailed = errors.New("shipping address could not be resolved")
	ErrCheckoutInProgress      = errors.New("checkout with this idempotency key is still in progress")
)

var (
	cardLast4Pattern  = regexp.MustCompile(`^[0-9]{4}$`)
	cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
)

// IdempotencyStore remembers which order a client supplied key produced.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (uint, bool, error)
	Complete(ctx context.Context, key string, orderID uint, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type OrderLine struct {
	VariantID uint
	Quantity  int
}

type GuestContact struct {
	Name  string
	Email string
	Phone string
}

// PaymentInput is stored on the order as given; nothing is charged.
type PaymentInput struct {
	Method     model.PaymentMethod
	CardHolder string
	CardLast4  string
	CardExpiry string
}

// PlaceOrderInput describes one checkout. Lines override the owner's cart when
// present. The address comes from AddressID, then Address, then the user's default.
type PlaceOrderInput struct {
	UserID         uint
	GuestSession   string
	Lines          []OrderLine
	AddressID      *uint
	Address        *AddressInput
	Guest          *GuestContact
	Payment        PaymentInput
	Notes          string
	IdempotencyKey string
}

func (in PlaceOrderInput) owner() CartOwner {
	return CartOwner{UserID: in.UserID, GuestSession: in.GuestSession}
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error)
}

type CheckoutOption func(*checkoutService)

// WithIdempotencyStore enables Idempotency-Key handling.
func WithIdempotencyStore(store IdempotencyStore, ttl time.Duration) CheckoutOption {
	return func(s *checkoutService) {
		s.idempotency = store
		s.idempotencyTTL = ttl
	}
}

type checkoutService struct {
	db             *gorm.DB
	orderRepo      repository.OrderRepository
	cartRepo       repository.CartRepository
	inventoryRepo  repository.InventoryRepository
	addressRepo    repository.AddressRepository
	userRepo       repository.UserRepository
	publisher      events.Publisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	now            func() time.Time
}

func NewCheckoutService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	inventoryRepo repository.InventoryRepository,
	addressRepo repository.AddressRepository,
	userRepo repository.UserRepository,
	publisher events.Publisher,
	opts ...CheckoutOption,
) CheckoutService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &checkoutService{
		db:            db,
		orderRepo:     orderRepo,
		cartRepo:      cartRepo,
		inventoryRepo: inventoryRepo,
		addressRepo:   addressRepo,
		userRepo:      userRepo,
		publisher:     publisher,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pricedLine is a checkout line with the unit price it will be charged at.
type pricedLine struct {
	VariantID uint
	Quantity  int
	UnitPrice decimal.Decimal
	fromCart  bool
}

func (s *checkoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*model.Order, error) {
	owner := input.owner()
	if !owner.valid() {
		return nil, ErrCartOwnerRequired
	}
	if err := validatePayment(input.Payment); err != nil {
		return nil, err
	}
	if owner.IsGuest() {
		if err := validateGuestContact(input.Guest); err != nil {
			return nil, err
		}
	}

	reservedKey := ""
	if input.IdempotencyKey != "" && s.idempotency != nil {
		key := owner.Key() + ":" + input.IdempotencyKey
		orderID, reserved, err := s.idempotency.Reserve(ctx, key, s.idempotencyTTL)
		switch {
		case err != nil:
			logger.Warn("Idempotency store unavailable, placing order without it", map[string]interface{}{
				"error": err.Error(),
			})
		case reserved:
			reservedKey = key
		case orderID != 0:
			logger.Info("Replaying order for idempotency key", map[string]interface{}{
				"order_id": orderID,
			})
			return s.orderRepo.FindByID(orderID)
		default:
			return nil, ErrCheckoutInProgress
		}
	}

	order, err := s.placeOrder(ctx, owner, input)

	if reservedKey != "" {
		bg := context.WithoutCancel(ctx)
		var storeErr error
		if err != nil {
			storeErr = s.idempotency.Release(bg, reservedKey)
		} else {
			storeErr = s.idempotency.Complete(bg, reservedKey, order.ID, s.idempotencyTTL)
		}
		if storeErr != nil {
			logger.Error("Failed to settle idempotency key", storeErr)
		}
	}
	if err != nil {
		return nil, err
	}

	created, err := s.orderRepo.FindByID(order.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(events.NewOrderCreated(created))

	logger.Info("Order placed", map[string]interface{}{
		"order_id":     created.ID,
		"order_number": created.OrderNumber,
		"is_guest":     created.IsGuest,
		"total":        created.Total.String(),
		"item_count":   len(created.Items),
	})
	return created, nil
}

func (s *checkoutService) placeOrder(ctx context.Context, owner CartOwner, input PlaceOrderInput) (*model.Order, error) {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inventoryRepo := s.inventoryRepo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)

		lines, cart, err := s.resolveLines(cartRepo, owner, input.Lines)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		ids := make([]uint, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.VariantID)
		}
		locked, err := inventoryRepo.LockVariants(ids)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVariantNotFound
			}
			return err
		}

		// every line is checked before anything is written
		total := decimal.Zero
		for i := range lines {
			variant := locked[lines[i].VariantID]
			if variant.Quantity < lines[i].Quantity {
				logger.Warn("Checkout rejected: insufficient stock", map[string]interface{}{
					"variant_id": variant.ID,
					"requested":  lines[i].Quantity,
					"available":  variant.Quantity,
				})
				return &InsufficientStockError{
					VariantID: variant.ID,
					Requested: lines[i].Quantity,
					Available: variant.Quantity,
				}
			}
			if !lines[i].fromCart {
				lines[i].UnitPrice = variant.Product.EffectivePrice()
			}
			total = total.Add(lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity))))
		}

		shipping, addressID, err := s.resolveAddress(tx, owner, input)
		if err != nil {
			return err
		}

		order = &model.Order{
			OrderNumber:       uuid.NewString(),
			Status:            model.OrderStatusPending,
			Total:             total.Round(2),
			IsGuest:           owner.IsGuest(),
			PaymentMethod:     input.Payment.Method,
			CardHolder:        strings.TrimSpace(input.Payment.CardHolder),
			CardLast4:         input.Payment.CardLast4,
			CardExpiry:        input.Payment.CardExpiry,
			ShippingAddressID: addressID,
			ShippingAddress:   shipping,
			Notes:             strings.TrimSpace(input.Notes),
		}
		if owner.IsGuest() {
			order.GuestName = strings.TrimSpace(input.Guest.Name)
			order.GuestEmail = strings.ToLower(strings.TrimSpace(input.Guest.Email))
			order.GuestPhone = strings.TrimSpace(input.Guest.Phone)
		} else {
			userID := owner.UserID
			order.UserID = &userID
		}
		for _, line := range lines {
			order.Items = append(order.Items, model.OrderItem{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}

		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.Create(order); err != nil {
			return err
		}
		if err := orderRepo.CreateStatusChange(&model.OrderStatusChange{
			OrderID:    order.ID,
			FromStatus: "",
			ToStatus:   model.OrderStatusPending,
			ChangedBy:  order.UserID,
		}); err != nil {
			return err
		}

		for _, line := range lines {
			if _, err := decrementLocked(inventoryRepo, locked[line.VariantID], line.Quantity, &order.ID); err != nil {
				return err
			}
		}

		if cart != nil {
			if err := cartRepo.ClearItems(cart.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return order, nil
}

// resolveLines returns the explicit lines merged per variant, or the owner's
// cart lines. The cart is returned only when it is the source.
// maxLineQuantity caps a single order line, merged duplicates included.
const maxLineQuantity = 10000

func (s *checkoutService) resolveLines(cartRepo repository.CartRepository, owner CartOwner, explicit []OrderLine) ([]pricedLine, *model.Cart, error) {
	if len(explicit) > 0 {
		index := make(map[uint]int, len(explicit))
		var lines []pricedLine
		for _, in := range explicit {
			if in.Quantity < 1 {
				return nil, nil, ErrInvalidQuantity
			}
			if in.Quantity > maxLineQuantity {
				return nil, nil, validationError("quantity for variant %d exceeds %d", in.VariantID, maxLineQuantity)
			}
			if i, ok := index[in.VariantID]; ok {
				if lines[i].Quantity > maxLineQuantity-in.Quantity {
					return nil, nil, validationError("quantity for variant %d exceeds %d", in.VariantID, maxLineQuantity)
				}
				lines[i].Quantity += in.Quantity
				continue
			}
			index[in.VariantID] = len(lines)
			lines = append(lines, pricedLine{VariantID: in.VariantID, Quantity: in.Quantity})
		}
		return lines, nil, nil
	}

	cart, err := cartRepo.FindByOwnerKey(owner.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if cart.Expired(s.now()) {
		return nil, nil, nil
	}

	lines := make([]pricedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, pricedLine{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			fromCart:  true,
		})
	}
	return lines, cart, nil
}

func (s *checkoutService) resolveAddress(tx *gorm.DB, owner CartOwner, input PlaceOrderInput) (model.ShippingAddress, *uint, error) {
	addressRepo := s.addressRepo.WithTx(tx)

	if owner.IsGuest() {
		if input.AddressID != nil || input.Address == nil {
			return model.ShippingAddress{}, nil, ErrAddressResolutionFailed
		}
		address, err := buildAddress(*input.Address)
		if err != nil {
			return model.ShippingAddress{}, nil, err
		}
		if err := addressRepo.Create(address); err != nil {
			return model.ShippingAddress{}, nil, err
		}
		return address.Snapshot(), &address.ID, nil
	}

	if input.AddressID != nil {
		address, err := findOwnedAddress(addressRepo, owner.UserID, *input.AddressID)
		if err != nil {
			if errors.Is(err, ErrAddressNotFound) || errors.Is(err, ErrUnauthorizedAccess) {
				return model.ShippingAddress{}, nil, ErrAddressResolutionFailed
			}
			return model.ShippingAddress{}, nil, err
		}
		return address.Snapshot(), &address.ID, nil
	}

	if input.Address != nil {
		if _, err := s.userRepo.WithTx(tx).LockByID(owner.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ShippingAddress{}, nil, ErrAddressResolutionFailed
			}
			return model.ShippingAddress{}, nil, err
		}
		address, err := addAddressLocked(addressRepo, owner.UserID, *input.Address)
		if err != nil {
			return model.ShippingAddress{}, nil, err
		}
		return address.Snapshot(), &address.ID, nil
	}

	address, err := addressRepo.FindDefault(owner.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ShippingAddress{}, nil, ErrAddressResolutionFailed
		}
		return model.ShippingAddress{}, nil, err
	}
	return address.Snapshot(), &address.ID, nil
}

func validatePayment(p PaymentInput) error {
	if !p.Method.Valid() {
		return validationError("unsupported payment method %q", p.Method)
	}
	if p.Method != model.PaymentCredit {
		return nil
	}
	if strings.TrimSpace(p.CardHolder) == "" {
		return validationError("card holder is required for credit payments")
	}
	if !cardLast4Pattern.MatchString(p.CardLast4) {
		return validationError("card_last4 must be four digits")
	}
	if !cardExpiryPattern.MatchString(p.CardExpiry) {
		return validationError("card_expiry must be MM/YY")
	}
	return nil
}

func validateGuestContact(c *GuestContact) error {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return validationError("guest name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return validationError("guest email is invalid")
	}
	return nil
}
