package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/domains/book/model"
	"grimoire-backend/internal/shared"
	"grimoire-backend/internal/shared/response"
)

var bookErrorMap = map[error]struct {
	Status  int
	Code    string
	Message string
}{
	model.ErrBookNotFound:  {Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Book not found"},
	model.ErrNotOwner:      {Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Not authorized to modify this book"},
	model.ErrAlreadyRated:  {Status: http.StatusConflict, Code: "CONFLICT", Message: "User has already rated this book"},
	model.ErrInvalidGrade:  {Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Rating must be an integer between 1 and 5"},
	model.ErrImageRequired: {Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "Image file is required"},
	model.ErrRaterMismatch: {Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "userId does not match the authenticated user"},
}

// handleBookError writes the response for err and reports whether it did.
func handleBookError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var vErr *shared.ValidationError
	if errors.As(err, &vErr) {
		response.ValidationFailed(c, vErr.Message, vErr.Fields)
		return true
	}

	for target, mapped := range bookErrorMap {
		if errors.Is(err, target) {
			response.ErrorResponse(c, mapped.Status, mapped.Code, mapped.Message)
			return true
		}
	}

	log.Error().
		Err(err).
		Str("request_id", c.GetString(shared.ContextKeyRequestID)).
		Str("path", c.Request.URL.Path).
		Msg("Unhandled book error")
	response.InternalServerError(c, "Internal server error")
	return true
}
