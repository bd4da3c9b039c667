package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/middleware"
	"github.com/vendora/storefront-api/internal/service"
)

type FavoriteHandler struct {
	favoriteService *service.FavoriteService
}

func NewFavoriteHandler(favoriteService *service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService}
}

func (h *FavoriteHandler) List(c *gin.Context) {
	refs, err := h.favoriteService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, refs)
}

func (h *FavoriteHandler) Toggle(c *gin.Context) {
	var req dto.ToggleFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, fav, err := h.favoriteService.Toggle(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductIDRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "productId is required"})
		case errors.Is(err, service.ErrProductIDInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "productId must be a number"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	if added {
		c.JSON(http.StatusOK, gin.H{"msg": "Added to favorites", "favorite": fav})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Removed from favorites"})
}

func (h *FavoriteHandler) Clear(c *gin.Context) {
	if err := h.favoriteService.Clear(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Favorites cleared"})
}
