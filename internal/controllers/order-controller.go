package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/awesomepizza/gin-order-queue/internal/services"
	"github.com/awesomepizza/gin-order-queue/internal/store"
	"github.com/gin-gonic/gin"
)

// CreateOrderRequest is the payload a customer submits from the menu.
type CreateOrderRequest struct {
	CustomerName string             `json:"customerName" binding:"required,max=255"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest is a single line of a new order. Quantity defaults to 1
// when omitted.
type OrderItemRequest struct {
	PizzaName string `json:"pizzaName" binding:"required,max=100"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=100"`
}

// OrderStatusResponse is the lightweight tracking view customers poll.
type OrderStatusResponse struct {
	Code   string             `json:"code"`
	Status models.OrderStatus `json:"status"`
}

// OrderController handles HTTP requests for the order queue
type OrderController interface {
	// SubmitOrder accepts a new customer order
	SubmitOrder(c *gin.Context)
	// GetOrder retrieves an order by its tracking code
	GetOrder(c *gin.Context)
	// GetOrderStatus retrieves just the status of an order
	GetOrderStatus(c *gin.Context)
	// GetQueue lists the pending orders in preparation order
	GetQueue(c *gin.Context)
	// DequeueNext pulls the oldest pending order into preparation
	DequeueNext(c *gin.Context)
	// CompleteOrder marks the active order as completed
	CompleteOrder(c *gin.Context)
}

type orderController struct {
	service services.OrderQueueService
}

// NewOrderController creates a new instance of OrderController
func NewOrderController(service services.OrderQueueService) OrderController {
	return &orderController{service: service}
}

// SubmitOrder godoc
// @Summary Submit a new order
// @Description Queue a new order and return its tracking code
// @Tags orders
// @Accept json
// @Produce json
// @Param order body CreateOrderRequest true "Order payload"
// @Success 201 {object} models.Order
// @Failure 400 {object} models.APIError
// @Failure 503 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders [post]
func (c *orderController) SubmitOrder(ctx *gin.Context) {
	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		}))
		return
	}

	if duplicate, found := duplicatePizzaName(req.Items); found {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Duplicate pizza in order", map[string]interface{}{
			"pizzaName": duplicate,
		}))
		return
	}

	order := &models.Order{CustomerName: strings.TrimSpace(req.CustomerName)}
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		order.Items = append(order.Items, models.OrderItem{
			PizzaName: strings.TrimSpace(item.PizzaName),
			Quantity:  quantity,
		})
	}

	created, err := c.service.SubmitOrder(ctx.Request.Context(), order)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, created)
}

// GetOrder godoc
// @Summary Get order by tracking code
// @Description Get an order with its items by tracking code
// @Tags orders
// @Produce json
// @Param code path string true "Order tracking code"
// @Success 200 {object} models.Order
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{code} [get]
func (c *orderController) GetOrder(ctx *gin.Context) {
	order, err := c.service.GetOrder(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// GetOrderStatus godoc
// @Summary Get order status
// @Description Get the current status of an order by tracking code
// @Tags orders
// @Produce json
// @Param code path string true "Order tracking code"
// @Success 200 {object} OrderStatusResponse
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{code}/status [get]
func (c *orderController) GetOrderStatus(ctx *gin.Context) {
	code := ctx.Param("code")
	status, err := c.service.GetStatus(ctx.Request.Context(), code)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, OrderStatusResponse{Code: code, Status: status})
}

// GetQueue godoc
// @Summary List the pending queue
// @Description List pending orders in the order they will be prepared
// @Tags orders
// @Produce json
// @Param limit query int false "Maximum number of orders to return"
// @Success 200 {array} models.Order
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/queue [get]
func (c *orderController) GetQueue(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid limit parameter"))
			return
		}
		limit = parsed
	}

	queue, err := c.service.ListPending(ctx.Request.Context(), limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, queue)
}

// DequeueNext godoc
// @Summary Start preparing the next order
// @Description Move the oldest pending order to IN_PROGRESS
// @Tags orders
// @Produce json
// @Success 200 {object} models.Order
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Failure 503 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/next [put]
func (c *orderController) DequeueNext(ctx *gin.Context) {
	order, err := c.service.DequeueNext(ctx.Request.Context())
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// CompleteOrder godoc
// @Summary Complete an order
// @Description Mark an IN_PROGRESS order as COMPLETED
// @Tags orders
// @Produce json
// @Param code path string true "Order tracking code"
// @Success 200 {object} models.Order
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Failure 503 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{code}/complete [put]
func (c *orderController) CompleteOrder(ctx *gin.Context) {
	order, err := c.service.CompleteOrder(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// duplicatePizzaName reports the first pizza listed twice, comparing names
// case-insensitively and ignoring surrounding whitespace.
func duplicatePizzaName(items []OrderItemRequest) (string, bool) {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.PizzaName))
		if seen[key] {
			return item.PizzaName, true
		}
		seen[key] = true
	}
	return "", false
}

// writeServiceError maps service and store errors onto HTTP responses. Each
// queue outcome keeps its own code so clients can distinguish an empty queue
// from a busy preparation line from a transient lock failure.
func writeServiceError(ctx *gin.Context, err error) {
	var notFound *store.OrderNotFoundError
	var transition *models.InvalidTransitionError

	switch {
	case errors.As(err, &notFound):
		ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrOrderNotFound, "Order not found", map[string]interface{}{
			"code": notFound.Code,
		}))
	case errors.Is(err, store.ErrQueueEmpty):
		ctx.JSON(http.StatusNotFound, models.NewAPIError(models.ErrOrderQueueEmpty, "No pending orders in the queue"))
	case errors.Is(err, services.ErrOrderAlreadyActive):
		ctx.JSON(http.StatusConflict, models.NewAPIError(models.ErrOrderAlreadyActive, "Another order is already in progress"))
	case errors.As(err, &transition):
		ctx.JSON(http.StatusConflict, models.NewAPIError(models.ErrOrderInvalidState, "Order is not in a state that allows this operation", map[string]interface{}{
			"from": transition.From,
			"to":   transition.To,
		}))
	case errors.Is(err, store.ErrLockTimeout):
		ctx.JSON(http.StatusServiceUnavailable, models.NewAPIError(models.ErrOrderLockTimeout, "Timed out waiting for the order queue, retry shortly"))
	case errors.Is(err, store.ErrStoreUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, models.NewAPIError(models.ErrUnavailable, "Order store is unavailable"))
	default:
		ctx.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Unexpected error"))
	}
}
