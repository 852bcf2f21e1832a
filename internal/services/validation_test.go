package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_Inputs(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("store name", func(t *testing.T) {
		assert.True(t, vh.ValidStoreName("Corner"))
		assert.True(t, vh.ValidStoreName("Дом"))
		assert.False(t, vh.ValidStoreName("ab"))
		assert.False(t, vh.ValidStoreName(""))
	})

	t.Run("phone", func(t *testing.T) {
		assert.True(t, vh.ValidPhone("998901234567"))
		assert.True(t, vh.ValidPhone("901234567"))
		assert.False(t, vh.ValidPhone(""))
		assert.False(t, vh.ValidPhone("12345"))
		assert.False(t, vh.ValidPhone("90-123"))
	})

	t.Run("customer name", func(t *testing.T) {
		assert.True(t, vh.ValidCustomerName("Ali"))
		assert.False(t, vh.ValidCustomerName(""))
	})

	t.Run("field errors", func(t *testing.T) {
		err := vh.ValidateStruct(&StoreNameInput{Name: "x"})
		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Name", validationErrors[0].Field())
		assert.Equal(t, "min", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&PhoneInput{Phone: "abc"})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Phone")
	})

	t.Run("decode error", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("unexpected EOF"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "unexpected EOF", response.Details["request"])
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}
