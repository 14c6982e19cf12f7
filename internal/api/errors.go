package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/apperr"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrInvalidDuration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrLockerUnavailable),
		errors.Is(err, apperr.ErrNoAvailableLocker),
		errors.Is(err, apperr.ErrAlreadyCheckedOut),
		errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError aborts the request with the JSON error body for err.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error(), "code": apperr.Code(err)}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["error"] = apperr.ErrValidation.Error()
		body["fields"] = ve.Fields
	}

	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		body["error"] = "internal server error"
	}
	c.AbortWithStatusJSON(status, body)
}
