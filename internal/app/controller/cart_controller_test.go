package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartController_UpsertAndRemove(t *testing.T) {
	env := setupControllerTest(t)
	user := env.createUser(t, "cart@example.com", model.RoleUser)
	variant := env.createVariant(t, 20, 5)

	w := env.do(t, http.MethodPut, "/cart/items", map[string]interface{}{"variant_id": variant.ID, "quantity": 2}, asUser(user))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "40", decode(t, w)["subtotal"])

	// same request twice leaves the cart unchanged
	w = env.do(t, http.MethodPut, "/cart/items", map[string]interface{}{"variant_id": variant.ID, "quantity": 2}, asUser(user))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "40", body["subtotal"])
	assert.Equal(t, float64(1), body["count"])

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/cart/items/%d", variant.ID), nil, asUser(user))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/cart/items/%d", variant.ID), nil, asUser(user))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CART_LINE_NOT_FOUND", decode(t, w)["error"])
}

func TestCartController_Validation(t *testing.T) {
	env := setupControllerTest(t)
	user := env.createUser(t, "cart@example.com", model.RoleUser)
	variant := env.createVariant(t, 20, 5)

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{"zero quantity", map[string]interface{}{"variant_id": variant.ID, "quantity": 0}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT"},
		{"negative quantity", map[string]interface{}{"variant_id": variant.ID, "quantity": -1}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT"},
		{"missing variant", map[string]interface{}{"quantity": 1}, http.StatusBadRequest, "VALIDATION_INVALID_INPUT"},
		{"unknown variant", map[string]interface{}{"variant_id": 9999, "quantity": 1}, http.StatusNotFound, "VARIANT_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/cart/items", tt.body, asUser(user))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w)["error"])
		})
	}

	w := env.do(t, http.MethodDelete, "/cart/items/abc", nil, asUser(user))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_GuestAndAnonymous(t *testing.T) {
	env := setupControllerTest(t)
	variant := env.createVariant(t, 15, 5)

	w := env.do(t, http.MethodGet, "/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_GUEST_SESSION_REQUIRED", decode(t, w)["error"])

	w = env.do(t, http.MethodPut, "/cart/items", map[string]interface{}{"variant_id": variant.ID, "quantity": 3}, asGuest("session-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "45", decode(t, w)["subtotal"])

	w = env.do(t, http.MethodGet, "/cart", nil, asGuest("session-2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	w = env.do(t, http.MethodDelete, "/cart", nil, asGuest("session-1"))
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/cart", nil, asGuest("session-1"))
	assert.Equal(t, float64(0), decode(t, w)["count"])
}
