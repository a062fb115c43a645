package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"grimoire-backend/internal/domains/user"
	"grimoire-backend/internal/shared"
	"grimoire-backend/internal/shared/response"
)

type UserHandler struct {
	service user.Service
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{service: service}
}

// Signup - POST /api/auth/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req user.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid JSON body")
		return
	}

	if _, err := h.service.Signup(c.Request.Context(), req); err != nil {
		h.handleError(c, err)
		return
	}

	response.Message(c, http.StatusCreated, "User created")
}

// Login - POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid JSON body")
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

func (h *UserHandler) handleError(c *gin.Context, err error) {
	var vErr *shared.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.ValidationFailed(c, vErr.Message, vErr.Fields)
	case errors.Is(err, user.ErrEmailAlreadyExists):
		response.Conflict(c, "Email already registered")
	case errors.Is(err, user.ErrInvalidCredentials):
		response.Unauthorized(c, "Invalid email or password")
	default:
		log.Error().
			Err(err).
			Str("request_id", c.GetString(shared.ContextKeyRequestID)).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled user error")
		response.InternalServerError(c, "Internal server error")
	}
}
