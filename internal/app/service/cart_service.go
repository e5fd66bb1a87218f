package service

import (
	"errors"
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrCartOwnerRequired = errors.New("cart owner required")
)

// CartOwner identifies a cart: a signed-in user, or a guest session id when UserID is zero.
type CartOwner struct {
	UserID       uint
	GuestSession string
}

func (o CartOwner) Key() string {
	if o.UserID != 0 {
		return model.UserCartKey(o.UserID)
	}
	return model.GuestCartKey(o.GuestSession)
}

func (o CartOwner) IsGuest() bool {
	return o.UserID == 0
}

func (o CartOwner) valid() bool {
	return o.UserID != 0 || o.GuestSession != ""
}

type CartService interface {
	GetOrCreate(owner CartOwner) (*model.Cart, error)
	UpsertLine(owner CartOwner, variantID uint, quantity int) (*model.Cart, error)
	RemoveLine(owner CartOwner, variantID uint) (*model.Cart, error)
	Clear(owner CartOwner) error
	PurgeExpired() (int64, error)
}

type cartService struct {
	cartRepo      repository.CartRepository
	inventoryRepo repository.InventoryRepository
	guestTTL      time.Duration
	now           func() time.Time
}

func NewCartService(
	cartRepo repository.CartRepository,
	inventoryRepo repository.InventoryRepository,
	guestTTL time.Duration,
) CartService {
	return &cartService{
		cartRepo:      cartRepo,
		inventoryRepo: inventoryRepo,
		guestTTL:      guestTTL,
		now:           time.Now,
	}
}

func (s *cartService) guestExpiry() *time.Time {
	expiresAt := s.now().Add(s.guestTTL)
	return &expiresAt
}

// GetOrCreate returns the owner's cart, creating it on first use. An expired
// guest cart comes back empty with a fresh expiry.
func (s *cartService) GetOrCreate(owner CartOwner) (*model.Cart, error) {
	if !owner.valid() {
		return nil, ErrCartOwnerRequired
	}
	key := owner.Key()

	cart, err := s.cartRepo.FindByOwnerKey(key)
	if err == nil {
		if cart.Expired(s.now()) {
			return s.resetExpired(cart)
		}
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to fetch cart", err, map[string]interface{}{
			"owner_key": key,
		})
		return nil, err
	}

	cart = &model.Cart{OwnerKey: key}
	if owner.IsGuest() {
		cart.ExpiresAt = s.guestExpiry()
	} else {
		userID := owner.UserID
		cart.UserID = &userID
	}

	if err := s.cartRepo.Create(cart); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// created by a concurrent request
			return s.cartRepo.FindByOwnerKey(key)
		}
		return nil, err
	}

	logger.Info("Cart created", map[string]interface{}{
		"cart_id":  cart.ID,
		"is_guest": owner.IsGuest(),
	})
	cart.Items = []model.CartItem{}
	return cart, nil
}

func (s *cartService) resetExpired(cart *model.Cart) (*model.Cart, error) {
	logger.Info("Resetting expired guest cart", map[string]interface{}{
		"cart_id": cart.ID,
	})
	if err := s.cartRepo.ClearItems(cart.ID); err != nil {
		return nil, err
	}
	cart.ExpiresAt = s.guestExpiry()
	if err := s.cartRepo.SetExpiry(cart.ID, cart.ExpiresAt); err != nil {
		return nil, err
	}
	cart.Items = []model.CartItem{}
	return cart, nil
}

// UpsertLine sets the line's quantity (it does not add to it) and refreshes the
// unit price snapshot.
func (s *cartService) UpsertLine(owner CartOwner, variantID uint, quantity int) (*model.Cart, error) {
	if quantity < 1 || quantity > maxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.inventoryRepo.FindVariantWithProduct(variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot upsert cart line: variant not found", map[string]interface{}{
				"variant_id": variantID,
			})
			return nil, ErrVariantNotFound
		}
		return nil, err
	}

	cart, err := s.GetOrCreate(owner)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItem(cart.ID, variantID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		item = &model.CartItem{CartID: cart.ID, VariantID: variantID}
	}
	item.Quantity = quantity
	item.UnitPrice = variant.Product.EffectivePrice()

	if err := s.cartRepo.SaveItem(item); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// another request inserted the same line first; overwrite it
		existing, findErr := s.cartRepo.FindItem(cart.ID, variantID)
		if findErr != nil {
			return nil, findErr
		}
		existing.Quantity = quantity
		existing.UnitPrice = item.UnitPrice
		if err := s.cartRepo.SaveItem(existing); err != nil {
			return nil, err
		}
	}

	if owner.IsGuest() {
		if err := s.cartRepo.SetExpiry(cart.ID, s.guestExpiry()); err != nil {
			return nil, err
		}
	}

	logger.Info("Cart line upserted", map[string]interface{}{
		"cart_id":    cart.ID,
		"variant_id": variantID,
		"quantity":   quantity,
	})
	return s.cartRepo.FindByOwnerKey(cart.OwnerKey)
}

func (s *cartService) RemoveLine(owner CartOwner, variantID uint) (*model.Cart, error) {
	if !owner.valid() {
		return nil, ErrCartOwnerRequired
	}

	cart, err := s.cartRepo.FindByOwnerKey(owner.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartLineNotFound
		}
		return nil, err
	}
	if cart.Expired(s.now()) {
		return nil, ErrCartLineNotFound
	}

	removed, err := s.cartRepo.DeleteItem(cart.ID, variantID)
	if err != nil {
		return nil, err
	}
	if !removed {
		logger.Warn("Cart line not found", map[string]interface{}{
			"cart_id":    cart.ID,
			"variant_id": variantID,
		})
		return nil, ErrCartLineNotFound
	}

	if owner.IsGuest() {
		if err := s.cartRepo.SetExpiry(cart.ID, s.guestExpiry()); err != nil {
			return nil, err
		}
	}
	return s.cartRepo.FindByOwnerKey(cart.OwnerKey)
}

func (s *cartService) Clear(owner CartOwner) error {
	if !owner.valid() {
		return ErrCartOwnerRequired
	}

	cart, err := s.cartRepo.FindByOwnerKey(owner.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.cartRepo.ClearItems(cart.ID)
}

func (s *cartService) PurgeExpired() (int64, error) {
	deleted, err := s.cartRepo.DeleteExpired(s.now())
	if err != nil {
		logger.Error("Failed to purge expired guest carts", err)
		return 0, err
	}
	if deleted > 0 {
		logger.Info("Expired guest carts purged", map[string]interface{}{
			"count": deleted,
		})
	}
	return deleted, nil
}
