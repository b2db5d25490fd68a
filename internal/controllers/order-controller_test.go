package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/awesomepizza/gin-order-queue/internal/services"
	"github.com/awesomepizza/gin-order-queue/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrderRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	memStore := store.NewMemoryOrderStore(time.Second)
	service := services.NewOrderQueueService(memStore, nil)
	controller := NewOrderController(service)

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/orders", controller.SubmitOrder)
	v1.GET("/orders/:code", controller.GetOrder)
	v1.GET("/orders/:code/status", controller.GetOrderStatus)
	v1.GET("/orders/queue", controller.GetQueue)
	v1.PUT("/orders/next", controller.DequeueNext)
	v1.PUT("/orders/:code/complete", controller.CompleteOrder)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func submitTestOrder(t *testing.T, router *gin.Engine, customer string) models.Order {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", gin.H{
		"customerName": customer,
		"items":        []gin.H{{"pizzaName": "Margherita", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	return order
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestSubmitOrderReturnsTrackingCode(t *testing.T) {
	router := setupOrderRouter(t)

	order := submitTestOrder(t, router, "Mario Rossi")
	assert.NotEmpty(t, order.Code)
	assert.Equal(t, models.StatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestSubmitOrderDefaultsQuantity(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", gin.H{
		"customerName": "Mario Rossi",
		"items":        []gin.H{{"pizzaName": "Margherita"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity)
}

func TestSubmitOrderValidation(t *testing.T) {
	router := setupOrderRouter(t)

	testCases := []struct {
		name string
		body gin.H
	}{
		{
			name: "missing customer name",
			body: gin.H{"items": []gin.H{{"pizzaName": "Margherita"}}},
		},
		{
			name: "empty items",
			body: gin.H{"customerName": "Mario", "items": []gin.H{}},
		},
		{
			name: "missing pizza name",
			body: gin.H{"customerName": "Mario", "items": []gin.H{{"quantity": 2}}},
		},
		{
			name: "quantity above limit",
			body: gin.H{"customerName": "Mario", "items": []gin.H{{"pizzaName": "Margherita", "quantity": 101}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, models.ErrValidationFailed, decodeAPIError(t, rec).Code)
		})
	}
}

func TestSubmitOrderRejectsDuplicatePizza(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orders", gin.H{
		"customerName": "Mario Rossi",
		"items": []gin.H{
			{"pizzaName": "Margherita", "quantity": 1},
			{"pizzaName": "  margherita ", "quantity": 2},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Duplicate")
}

func TestGetOrderNotFound(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/PZ-404", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrOrderNotFound, decodeAPIError(t, rec).Code)
}

func TestGetOrderStatusEndpoint(t *testing.T) {
	router := setupOrderRouter(t)
	order := submitTestOrder(t, router, "Mario Rossi")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/"+order.Code+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status OrderStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, order.Code, status.Code)
	assert.Equal(t, models.StatusPending, status.Status)
}

func TestGetQueueRespectsLimit(t *testing.T) {
	router := setupOrderRouter(t)
	submitTestOrder(t, router, "Mario")
	submitTestOrder(t, router, "Luigi")
	submitTestOrder(t, router, "Peach")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/queue?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 2)
	assert.Equal(t, "Mario", queue[0].CustomerName)
	assert.Equal(t, "Luigi", queue[1].CustomerName)
}

func TestGetQueueInvalidLimit(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orders/queue?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrBadRequest, decodeAPIError(t, rec).Code)
}

func TestDequeueNextEmptyQueueReturns404(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrOrderQueueEmpty, decodeAPIError(t, rec).Code)
}

func TestDequeueNextEmptyQueueWhileActiveReturns404(t *testing.T) {
	router := setupOrderRouter(t)
	submitTestOrder(t, router, "Mario")

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The queue is drained; that answer wins over the active preparation.
	rec = doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrOrderQueueEmpty, decodeAPIError(t, rec).Code)
}

func TestDequeueNextConflictWhileActive(t *testing.T) {
	router := setupOrderRouter(t)
	submitTestOrder(t, router, "Mario")
	submitTestOrder(t, router, "Luigi")

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.ErrOrderAlreadyActive, decodeAPIError(t, rec).Code)
}

func TestCompleteOrderLifecycleOverHTTP(t *testing.T) {
	router := setupOrderRouter(t)
	order := submitTestOrder(t, router, "Mario Rossi")

	// Completing before preparation started is rejected.
	rec := doJSON(t, router, http.MethodPut, "/api/v1/orders/"+order.Code+"/complete", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.ErrOrderInvalidState, decodeAPIError(t, rec).Code)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/orders/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/orders/"+order.Code+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var completed models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, models.StatusCompleted, completed.Status)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/orders/"+order.Code+"/complete", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCompleteOrderUnknownCodeReturns404(t *testing.T) {
	router := setupOrderRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orders/PZ-404/complete", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrOrderNotFound, decodeAPIError(t, rec).Code)
}
