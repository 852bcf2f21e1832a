package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// StoreNameInput is a tenant name typed during registration or rename.
type StoreNameInput struct {
	Name string `validate:"required,min=3,max=64"`
}

// PhoneInput is a canonical digits-only phone.
type PhoneInput struct {
	Phone string `validate:"required,numeric,min=7,max=15"`
}

// CustomerNameInput is a ledger customer's display name.
type CustomerNameInput struct {
	Name string `validate:"required,max=128"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

func (vh *ValidationHelper) ValidStoreName(name string) bool {
	return vh.ValidateStruct(StoreNameInput{Name: name}) == nil
}

func (vh *ValidationHelper) ValidPhone(phone string) bool {
	return vh.ValidateStruct(PhoneInput{Phone: phone}) == nil
}

func (vh *ValidationHelper) ValidCustomerName(name string) bool {
	return vh.ValidateStruct(CustomerNameInput{Name: name}) == nil
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	} else if validationErr != nil {
		errorResp.Details = map[string]string{"request": validationErr.Error()}
	}

	json.NewEncoder(w).Encode(errorResp)
}
