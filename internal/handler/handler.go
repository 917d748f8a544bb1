package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"identity_service/internal/auth"
	"identity_service/internal/models"
	"identity_service/internal/rules"
	"identity_service/internal/service"
	"identity_service/internal/storage"
)

const claimsKey = "claims"

// Shared by unknown-email and wrong-password so responses do not reveal
// which accounts exist.
const invalidCredentialsMessage = "invalid email or password"

type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "empty authorization header")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		claims, err := parser.ParseToken(parts[1])
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		c.Set(claimsKey, claims)

		c.Next()
	}
}

type Handler struct {
	serviceLayer service.Service
	tokens       TokenParser
	log          *slog.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	Expiration  time.Time `json:"expiration"`
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func newTokenResponse(token models.AccessToken) tokenResponse {
	return tokenResponse{
		AccessToken: token.Token,
		Expiration:  token.Expiration.UTC(),
	}
}

func NewHandler(srvc service.Service, tokens TokenParser, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		tokens:       tokens,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		auth.Use(AuthMiddleware(h.tokens))
		auth.GET("/me", h.Me)
	}

	return router
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	const op = "handler.Register"

	log := h.log.With(slog.String("op", op))

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to bind register request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request")

		return
	}

	token, err := h.serviceLayer.Register(c.Request.Context(), service.RegisterCommand{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.serviceError(c, log, "failed to register user", err)

		return
	}

	log.Info("user registered")

	c.JSON(http.StatusCreated, newTokenResponse(token))
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("failed to bind login request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request")

		return
	}

	token, err := h.serviceLayer.Login(c.Request.Context(), models.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.serviceError(c, log, "failed to login", err)

		return
	}

	c.JSON(http.StatusOK, newTokenResponse(token))
}

// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	value, ok := c.Get(claimsKey)
	claims, _ := value.(*auth.Claims)
	if !ok || claims == nil {
		h.log.Error("token claims missing from context", slog.String("op", op))

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	resp := profileResponse{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) serviceError(c *gin.Context, log *slog.Logger, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		log.Warn(msg, slog.Any("error", err))
		newErrorResponse(c, http.StatusBadRequest, "email, password, first and last name are required")
	case errors.Is(err, rules.ErrDuplicateUser):
		log.Warn(msg, slog.Any("error", err))
		newErrorResponse(c, http.StatusConflict, "user already exists")
	case errors.Is(err, rules.ErrUserNotFound), errors.Is(err, rules.ErrInvalidCredentials):
		log.Warn(msg, slog.Any("error", err))
		newErrorResponse(c, http.StatusUnauthorized, invalidCredentialsMessage)
	case errors.Is(err, context.Canceled):
		log.Info(msg, slog.Any("error", err))
		newErrorResponse(c, 499, "request canceled")
	case errors.Is(err, storage.ErrUnavailable):
		log.Error(msg, slog.Any("error", err))
		newErrorResponse(c, http.StatusServiceUnavailable, "service unavailable")
	default:
		log.Error(msg, slog.Any("error", err))
		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}
