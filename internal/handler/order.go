package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vendora/storefront-api/internal/dto"
	"github.com/vendora/storefront-api/internal/middleware"
	"github.com/vendora/storefront-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderService.Assemble(
		c.Request.Context(),
		middleware.GetUserID(c),
		req,
		c.GetHeader("Idempotency-Key"),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAddressID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address ID"})
		case errors.Is(err, service.ErrOrderAddress):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Address not found or not owned by user"})
		case errors.Is(err, service.ErrItemsRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Items array is required"})
		case errors.Is(err, service.ErrInvalidItem),
			errors.Is(err, service.ErrTotalMismatch),
			errors.Is(err, service.ErrBadIdempotencyKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orderService.ListByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderService.UpdateStatus(
		c.Request.Context(), orderID, middleware.GetUserID(c), middleware.GetIsVendor(c), req.Status,
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
		case errors.Is(err, service.ErrOrderAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to cancel this order"})
		case errors.Is(err, service.ErrOperatorRequired):
			c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
		case errors.Is(err, service.ErrInvalidStatus),
			errors.Is(err, service.ErrInvalidTransition),
			errors.Is(err, service.ErrOrderAlreadyCancelled),
			errors.Is(err, service.ErrOrderNotCancellable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, service.ErrOrderAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to cancel this order"})
		case errors.Is(err, service.ErrOrderAlreadyCancelled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Order is already cancelled"})
		case errors.Is(err, service.ErrOrderNotCancellable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only pending orders can be cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.CancelOrderResponse{Msg: "Order cancelled successfully", Order: order})
}

func (h *OrderHandler) Delete(c *gin.Context) {
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
		return
	}

	if err := h.orderService.Delete(c.Request.Context(), orderID, middleware.GetUserID(c)); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found or not authorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Order deleted"})
}
