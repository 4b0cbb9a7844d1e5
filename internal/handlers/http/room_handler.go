package http

import (
	"context"
	"net/http"
	"time"

	"parlor/internal/core/domain"
	"parlor/internal/core/ports"
	"parlor/internal/core/services"
	"parlor/internal/infrastructure/middleware"
	"parlor/pkg/cache"
	apperrors "parlor/pkg/errors"
	"parlor/pkg/validation"

	"github.com/gin-gonic/gin"
)

// RoomHandler serves the REST surface: token issuance and room
// discovery. Everything realtime goes over the signaling websocket.
type RoomHandler struct {
	directory   ports.RoomDirectory
	authService services.AuthService
	requireAuth bool

	// Room listings are polled by lobby UIs; a short cache keeps that
	// load off the repository.
	listCache *cache.Cache[[]domain.RoomInfo]
}

func NewRoomHandler(directory ports.RoomDirectory, authService services.AuthService, requireAuth bool) *RoomHandler {
	return &RoomHandler{
		directory:   directory,
		authService: authService,
		requireAuth: requireAuth,
		listCache:   cache.New[[]domain.RoomInfo](2 * time.Second),
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	api.POST("/token", h.IssueToken)
	api.GET("/rooms", h.ListRooms)

	// Room details expose member names, so they are token-gated when the
	// deployment requires auth.
	detail := api.Group("")
	if h.requireAuth {
		detail.Use(middleware.RoomAuthMiddleware(h.authService))
	} else {
		detail.Use(middleware.OptionalRoomAuthMiddleware(h.authService))
	}
	detail.GET("/rooms/:room", h.GetRoom)
}

// IssueToken hands out a room token for the given room and display
// name. The room does not have to exist yet; hosts request their token
// before opening it.
func (h *RoomHandler) IssueToken(c *gin.Context) {
	var req struct {
		Room        string `json:"room" binding:"required"`
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateRoomName(req.Room); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	token, err := h.authService.GenerateRoomToken(req.Room, req.DisplayName)
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.listCache.GetOrSet(c.Request.Context(), "rooms", func(ctx context.Context) ([]domain.RoomInfo, error) {
		return h.directory.ListRooms(ctx)
	})
	if err != nil {
		c.Error(apperrors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.directory.GetRoom(c.Request.Context(), c.Param("room"))
	if err != nil {
		c.Error(apperrors.FromDomain(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}
