package errors

// Error code constants
// Format: CATEGORY_SPECIFIC_DETAIL
// Clients map user-facing copy from these codes.

const (
	// ==================== Authentication (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthGuestSessionNeeded = "AUTH_GUEST_SESSION_REQUIRED"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"
	AuthzOwnerOnly    = "AUTHZ_OWNER_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput    = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID       = "VALIDATION_INVALID_ID"
	ValidationInvalidQuantity = "VALIDATION_INVALID_QUANTITY"
	ValidationInvalidPayment  = "VALIDATION_INVALID_PAYMENT"
	ValidationInvalidStatus   = "VALIDATION_INVALID_STATUS"
	ValidationRequired        = "VALIDATION_REQUIRED"

	// ==================== Resources (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Catalog / inventory ====================
	ProductNotFound   = "PRODUCT_NOT_FOUND"
	VariantNotFound   = "VARIANT_NOT_FOUND"
	ColorNotFound     = "COLOR_NOT_FOUND"
	StockInsufficient = "STOCK_INSUFFICIENT"

	// ==================== Cart (CART_) ====================
	CartEmpty        = "CART_EMPTY"
	CartLineNotFound = "CART_LINE_NOT_FOUND"

	// ==================== Address (ADDRESS_) ====================
	AddressNotFound         = "ADDRESS_NOT_FOUND"
	AddressResolutionFailed = "ADDRESS_RESOLUTION_FAILED"
	AddressDefaultConflict  = "ADDRESS_DEFAULT_CONFLICT"

	// ==================== Order (ORDER_) ====================
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidTransition = "ORDER_INVALID_TRANSITION"
	OrderInProgress        = "ORDER_CHECKOUT_IN_PROGRESS"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
