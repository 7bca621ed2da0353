package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sales_service/internal/notify"
	"sales_service/internal/sales"
)

// eventLog collects every event published during a test.
type eventLog struct {
	mu     sync.Mutex
	events []sales.Event
}

func (l *eventLog) Handle(_ context.Context, e sales.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) kinds() []sales.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sales.Kind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind())
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func initRoutesTests(t *testing.T) (*gin.Engine, *eventLog) {
	t.Helper()

	// 1. Configurar Gin
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// 2. Armar el servicio con almacenamiento en memoria
	logger := zaptest.NewLogger(t)
	dispatcher := sales.NewDispatcher(logger)
	log := &eventLog{}
	notify.Subscribe(dispatcher, log)

	reg := prometheus.NewRegistry()
	metrics, err := notify.NewMetricsHandler(reg)
	require.NoError(t, err)
	notify.Subscribe(dispatcher, metrics)

	service := sales.NewService(sales.NewLocalStorage(), dispatcher, sales.NewValidator(false), logger)

	// 3. Inicializar las rutas
	InitRoutes(router, service, logger)
	InitMetrics(router, "/metrics", reg)

	return router, log
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func item(quantity int, price float64) map[string]interface{} {
	return map[string]interface{}{
		"product_id":   "p-1",
		"title":        "Beer",
		"description":  "Pilsen 350ml",
		"category":     "drinks",
		"image":        "https://img.example/beer.png",
		"rating_rate":  4.5,
		"rating_count": 120,
		"quantity":     quantity,
		"unit_price":   price,
	}
}

// TestSalesHappyPath_FullFlow exercises POST -> GET -> PUT -> GET list -> DELETE.
func TestSalesHappyPath_FullFlow(t *testing.T) {
	router, log := initRoutesTests(t)

	var created saleResponse

	//1: POST /sales
	t.Run("POST_CreateSale", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", map[string]interface{}{
			"sale_date":     "2025-08-29T12:00:00Z",
			"customer_id":   "c-1",
			"customer_name": "Maria",
			"branch":        "Centro",
			"items":         []interface{}{item(9, 10), item(10, 10)},
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Regexp(t, `^S-[0-9A-F]{8}$`, created.SaleNumber)
		require.Len(t, created.Items, 2)
		assert.Equal(t, "81", created.Items[0].Total.String())
		assert.Equal(t, "0.2", created.Items[1].Discount.String())
		assert.Equal(t, "161", created.TotalAmount.String())
		assert.Equal(t, []sales.Kind{sales.KindSaleCreated}, log.kinds())
	})

	if created.ID == "" {
		t.Fatal("sale was not created in POST_CreateSale step")
	}

	//2: GET /sales/:id
	t.Run("GET_Sale", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/sales/"+created.ID, nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got saleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "161", got.TotalAmount.String())
	})

	//3: PUT /sales/:id cancelling the sale and its first item
	t.Run("PUT_CancelSale", func(t *testing.T) {
		log.reset()
		first := item(9, 10)
		first["id"] = created.Items[0].ID
		first["cancelled"] = true
		second := item(10, 10)
		second["id"] = created.Items[1].ID

		w := doJSON(t, router, http.MethodPut, "/sales/"+created.ID, map[string]interface{}{
			"sale_number":   created.SaleNumber,
			"sale_date":     "2025-08-29T12:00:00Z",
			"customer_id":   "c-1",
			"customer_name": "Maria",
			"branch":        "Centro",
			"cancelled":     true,
			"items":         []interface{}{first, second},
		})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got saleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.True(t, got.Cancelled)
		assert.True(t, got.Items[0].Cancelled)
		assert.Equal(t, "161", got.TotalAmount.String(), "cancelled items still count towards the total")
		assert.Equal(t, []sales.Kind{
			sales.KindSaleModified,
			sales.KindSaleCancelled,
			sales.KindItemCancelled,
		}, log.kinds())
	})

	//4: GET /sales
	t.Run("GET_ListSales", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/sales?branch=Cen&page=1&page_size=5&order_by=totalAmount%20desc", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var page pagedResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.EqualValues(t, 1, page.TotalItems)
		assert.Equal(t, 1, page.CurrentPage)
		assert.Equal(t, 1, page.TotalPages)
		require.Len(t, page.Data, 1)
		assert.Equal(t, created.ID, page.Data[0].ID)
	})

	//5: GET /metrics
	t.Run("GET_Metrics", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/metrics", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `sales_domain_events_total{kind="sale.cancelled"} 1`)
	})

	//6: DELETE /sales/:id
	t.Run("DELETE_Sale", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/sales/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, router, http.MethodGet, "/sales/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSalesErrors(t *testing.T) {
	router, log := initRoutesTests(t)

	t.Run("POST_InvalidPayload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sales", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid request payload"}`, w.Body.String())
	})

	t.Run("POST_ValidationDetails", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/sales", map[string]interface{}{
			"sale_date":   "2025-08-29T12:00:00Z",
			"customer_id": "c-1",
			"items":       []interface{}{item(21, 0)},
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body struct {
			Error   string                 `json:"error"`
			Details []sales.FieldViolation `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "validation failed", body.Error)

		fields := make([]string, 0, len(body.Details))
		for _, d := range body.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"branch", "items[0].quantity", "items[0].unit_price"}, fields)
		assert.Empty(t, log.kinds(), "no event is published for a rejected sale")
	})

	t.Run("PUT_NotFound", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPut, "/sales/missing", map[string]interface{}{
			"sale_date":   "2025-08-29T12:00:00Z",
			"customer_id": "c-1",
			"branch":      "Centro",
			"items":       []interface{}{item(1, 10)},
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"sale not found"}`, w.Body.String())
	})

	t.Run("DELETE_NotFound", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, "/sales/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET_ListInvalidOrder", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/sales?order_by=price", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "order_by")
	})

	t.Run("GET_ListPageSizeTooLarge", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/sales?page_size=500", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "page_size")
	})
}

func TestPing(t *testing.T) {
	router, _ := initRoutesTests(t)

	w := doJSON(t, router, http.MethodGet, "/ping", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}
