package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"reseller-hub/internal/model"
	"reseller-hub/internal/service"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

var errBadRequest = errors.New("invalid request body")

// decodeJSON reads and validates a JSON body into dst
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return validate.Struct(dst)
}

// sendSuccessResponse sends success response
func sendSuccessResponse(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// sendErrorResponse sends error response
func sendErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "error",
		Message: message,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// sendServiceError maps a service error onto an error response
func sendServiceError(w http.ResponseWriter, err error) {
	code, status := mapError(err)
	sendErrorResponse(w, code, err.Error(), status)
}

// mapError maps error to error code and HTTP status
func mapError(err error) (string, int) {
	var validationErrs validator.ValidationErrors
	var authErr *service.AuthError
	var createErr *service.ChargeCreationError
	var statusErr *service.StatusCheckError
	var persistErr *service.PersistenceError

	switch {
	case errors.As(err, &validationErrs), errors.Is(err, errBadRequest):
		return "ERR_INVALID_PARAMETER", http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidConfig):
		return "ERR_INVALID_CONFIG", http.StatusBadRequest
	case errors.Is(err, service.ErrShipmentNotFound), errors.Is(err, service.ErrSaleNotFound):
		return "ERR_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return "ERR_INVALID_TRANSITION", http.StatusConflict
	case errors.Is(err, service.ErrShipmentBusy):
		return "ERR_SHIPMENT_BUSY", http.StatusConflict
	case errors.Is(err, service.ErrConnectionRequired):
		return "ERR_CONNECTION_REQUIRED", http.StatusConflict
	case errors.Is(err, service.ErrInvalidSignature):
		return "ERR_INVALID_SIGNATURE", http.StatusUnauthorized
	case errors.Is(err, service.ErrNotifierDisconnected):
		return "ERR_NOTIFIER_DISCONNECTED", http.StatusServiceUnavailable
	case errors.Is(err, service.ErrMissingCredentials):
		return "ERR_MISSING_CREDENTIALS", http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrTimeout):
		return "ERR_PROVIDER_TIMEOUT", http.StatusGatewayTimeout
	case errors.As(err, &authErr):
		return "ERR_PROVIDER_AUTH", http.StatusBadGateway
	case errors.As(err, &createErr):
		return "ERR_CHARGE_CREATION", http.StatusBadGateway
	case errors.As(err, &statusErr):
		return "ERR_STATUS_CHECK", http.StatusBadGateway
	case errors.As(err, &persistErr):
		return "ERR_PERSISTENCE", http.StatusInternalServerError
	default:
		return "ERR_INTERNAL_SERVER", http.StatusInternalServerError
	}
}

// queryInt reads an integer query parameter, returning def when absent or malformed
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
