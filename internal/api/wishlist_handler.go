package api

import (
	"net/http"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
)

func sessionUser(c *gin.Context) *models.User {
	claims := claimsFrom(c)
	if claims == nil {
		return nil
	}
	return &models.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
}

func (h *Handler) listWishlist(c *gin.Context) {
	items, err := h.svc.Wishlist.List(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// wishlistStatus reports membership; signed-out visitors never have anything saved
func (h *Handler) wishlistStatus(c *gin.Context) {
	productID, err := pathID(c, "productId")
	if err != nil {
		h.writeError(c, err)
		return
	}

	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusOK, gin.H{"productId": productID, "inWishlist": false})
		return
	}

	in, err := h.svc.Wishlist.Contains(c.Request.Context(), claims.UserID, productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"productId": productID, "inWishlist": in})
}

type toggleRequest struct {
	ProductID int64 `json:"productId"`
}

// toggleWishlist answers signed-out callers with a sign-in prompt whatever the body
func (h *Handler) toggleWishlist(c *gin.Context) {
	user := sessionUser(c)
	var req toggleRequest
	if user != nil {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}
	}

	res, err := h.svc.Wishlist.Toggle(c.Request.Context(), user, req.ProductID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
