package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"restohub-be/internal/logger"
	"restohub-be/internal/order"
	"restohub-be/internal/utils"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// jsonResponse writes data as JSON with the given status code.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, code int, msg string) {
	utils.WriteJSONError(w, msg, code)
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch order.KindOf(err) {
	case order.KindValidation:
		return http.StatusBadRequest
	case order.KindNotFound:
		return http.StatusNotFound
	case order.KindAuthorization:
		return http.StatusForbidden
	case order.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// serviceError writes err with its mapped status. Storage details stay in
// the log.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		jsonError(w, code, "internal server error")
		return
	}

	msg := err.Error()
	var e *order.Error
	if errors.As(err, &e) {
		msg = e.Err.Error()
	}
	jsonError(w, code, msg)
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on '%s' validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}
