package users

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandlers provides HTTP handlers for user operations
type UserHandlers struct {
	userService UserService
	logger      *zap.Logger
}

// NewUserHandlers creates new user handlers
func NewUserHandlers(userService UserService, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the user routes
func (h *UserHandlers) RegisterRoutes(router gin.IRouter) {
	router.POST("/users", h.CreateUser)
	router.GET("/users", h.ListUsers)
}

// CreateUser handles POST /users
func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to create user", zap.Error(err))
		h.respondStoreError(c, err, "Failed to create user")
		return
	}

	h.logger.Debug("User created", zap.String("user_id", user.ID), zap.String("name", user.NameOrEmpty()))
	c.JSON(http.StatusOK, user)
}

// ListUsers handles GET /users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	list, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		h.respondStoreError(c, err, "Failed to list users")
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *UserHandlers) respondStoreError(c *gin.Context, err error, message string) {
	if IsStoreUnavailable(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// MaxBodySize caps request bodies at limit bytes
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
