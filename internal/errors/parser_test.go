package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		context   string
		status    int
		code      string
		retryable bool
	}{
		{"record not found", gorm.ErrRecordNotFound, "order", http.StatusNotFound, ResourceNotFound, false},
		{"wrapped not found", fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), "order", http.StatusNotFound, ResourceNotFound, false},
		{"duplicate email", gorm.ErrDuplicatedKey, "user", http.StatusConflict, AuthEmailAlreadyExists, false},
		{"duplicate default address", gorm.ErrDuplicatedKey, "address", http.StatusConflict, AddressDefaultConflict, true},
		{"raw unique violation", stderrors.New("ERROR: duplicate key value violates unique constraint"), "cart", http.StatusConflict, ResourceConflict, true},
		{"deadlock", stderrors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), "order", http.StatusConflict, ResourceConflict, true},
		{"foreign key", gorm.ErrForeignKeyViolated, "variant", http.StatusBadRequest, ValidationInvalidInput, false},
		{"connection", stderrors.New("dial tcp: connection refused"), "", http.StatusServiceUnavailable, InternalExternalAPI, true},
		{"unknown", stderrors.New("something odd"), "order", http.StatusInternalServerError, InternalServerError, false},
		{"nil", nil, "", http.StatusInternalServerError, InternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, tt.context)
			assert.Equal(t, tt.status, info.Status)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.retryable, info.Retryable)
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestParseError_NotFoundMessage(t *testing.T) {
	assert.Equal(t, "Order not found", ParseError(gorm.ErrRecordNotFound, "order").Message)
	assert.Equal(t, "Resource not found", ParseError(gorm.ErrRecordNotFound, "").Message)
}

func TestConflictResponseIsRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Conflict(c, ResourceConflict, "retry please")

	assert.Equal(t, http.StatusConflict, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Retryable)
	assert.Equal(t, ResourceConflict, body.Error)
}

func TestParseAndRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ParseAndRespond(c, gorm.ErrRecordNotFound, "address")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Address not found", body.Message)
	assert.False(t, body.Retryable)
}
