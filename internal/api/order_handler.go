package api

import (
	"net/http"
	"strconv"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	resp, err := h.svc.Orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	if countOnly, _ := strconv.ParseBool(c.Query("countOnly")); countOnly {
		counts, err := h.svc.Orders.CountByStatus(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"counts": counts})
		return
	}

	page, err := queryInt(c, "page")
	if err != nil {
		h.writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.writeError(c, err)
		return
	}

	list, err := h.svc.Orders.ListOrders(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.svc.Orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if req.Status == "" {
		h.writeError(c, apperr.MissingFields("status"))
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// shippingRates answers one rate, one zone's options, or the whole table
func (h *Handler) shippingRates(c *gin.Context) {
	zone, modality := c.Query("zone"), c.Query("modality")

	switch {
	case zone != "" && modality != "":
		rate, err := h.svc.Shipping.Lookup(zone, modality)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rate)
	case zone != "":
		opts, err := h.svc.Shipping.Options(zone)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, opts)
	default:
		c.JSON(http.StatusOK, h.svc.Shipping.All())
	}
}
