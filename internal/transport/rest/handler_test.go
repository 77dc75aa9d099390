package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	inverrors "github.com/avilov/inventory_service/internal/errors"
	"github.com/avilov/inventory_service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProductService is a mock implementation of the ProductService interface.
type mockProductService struct {
	product  *service.ProductDto
	products []service.ProductDto
	error    error
}

func (m *mockProductService) Create(_ context.Context, _ service.ProductCreateDto) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockProductService) FindByID(_ context.Context, _ int64) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockProductService) FindAll(_ context.Context) ([]service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.products, nil
}

func (m *mockProductService) Update(_ context.Context, _ int64, _ service.ProductUpdateDto) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockProductService) DeleteByID(_ context.Context, _ int64) error {
	return m.error
}

func (m *mockProductService) IncreaseStock(_ context.Context, _, _ int64) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockProductService) DecreaseStock(_ context.Context, _, _ int64) (*service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.product, nil
}

func (m *mockProductService) FindLowStock(_ context.Context) ([]service.ProductDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.products, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

type validationErrorResponse struct {
	ValidationErrors map[string]string `json:"validation_errors"`
}

// newTestRouter builds a chi router with all inventory routes registered
// against the given mock service.
func newTestRouter(svc service.ProductService) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := chi.NewRouter()
	NewHandler(svc, logger).RegisterRoutes(mux)
	return mux
}

// doRequest executes an HTTP request against the router and returns the recorder.
func doRequest(t *testing.T, mux *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch payload := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(payload)
	default:
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeProduct(t *testing.T, rr *httptest.ResponseRecorder) service.ProductDto {
	t.Helper()
	var dto service.ProductDto
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&dto))
	return dto
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func Test_Handler_Create(t *testing.T) {
	t.Run("Success - 201 with created product", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			product: &service.ProductDto{ID: 1, Name: "Widget", StockQuantity: 5, LowStockThreshold: 10},
		})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", map[string]any{
			"name": "Widget", "stock_quantity": 5,
		})

		assert.Equal(t, http.StatusCreated, rr.Code)
		created := decodeProduct(t, rr)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "Widget", created.Name)
	})

	t.Run("Error - malformed JSON returns 400", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", "{not json")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request body", decodeError(t, rr).Error)
	})

	t.Run("Error - negative stock quantity returns validation errors", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", map[string]any{
			"name": "Widget", "stock_quantity": -5,
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp validationErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Contains(t, resp.ValidationErrors, "StockQuantity")
	})

	t.Run("Error - missing name returns validation errors", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", map[string]any{
			"stock_quantity": 5,
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp validationErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Contains(t, resp.ValidationErrors, "Name")
	})

	t.Run("Error - service rejection returns 400 with reason", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			error: &inverrors.InvalidArgumentError{Reason: "product name is required and must be a non-empty string"},
		})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", map[string]any{"name": "   "})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "product name is required and must be a non-empty string", decodeError(t, rr).Error)
	})

	t.Run("Error - unexpected failure returns 500", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: errors.New("db down")})

		rr := doRequest(t, mux, http.MethodPost, "/api/v1/products", map[string]any{"name": "Widget"})

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func Test_Handler_FindAll(t *testing.T) {
	t.Run("Success - 200 with list", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			products: []service.ProductDto{{ID: 1, Name: "Toy"}, {ID: 2, Name: "Widget"}},
		})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var list []service.ProductDto
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
		assert.Len(t, list, 2)
	})

	t.Run("Error - service failure returns 500", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: errors.New("db down")})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func Test_Handler_FindLowStock(t *testing.T) {
	mux := newTestRouter(&mockProductService{
		products: []service.ProductDto{
			{ID: 2, Name: "Bolt", StockQuantity: 1, LowStockThreshold: 5},
			{ID: 1, Name: "Nut", StockQuantity: 3, LowStockThreshold: 5},
		},
	})

	rr := doRequest(t, mux, http.MethodGet, "/api/v1/products/low-stock", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []service.ProductDto
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].StockQuantity)
}

func Test_Handler_FindByID(t *testing.T) {
	t.Run("Success - 200 with product", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			product: &service.ProductDto{ID: 7, Name: "Toy"},
		})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products/7", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(7), decodeProduct(t, rr).ID)
	})

	t.Run("Error - unknown product returns 404", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: inverrors.ErrProductNotFound})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products/9999", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Product with ID 9999 not found", decodeError(t, rr).Error)
	})

	t.Run("Error - non-numeric ID returns 400", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products/abc", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid ID: abc", decodeError(t, rr).Error)
	})

	t.Run("Error - non-positive ID returns 400", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodGet, "/api/v1/products/-1", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_Handler_Update(t *testing.T) {
	t.Run("Success - 200 with updated product", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			product: &service.ProductDto{ID: 1, Name: "Gadget"},
		})

		rr := doRequest(t, mux, http.MethodPut, "/api/v1/products/1", map[string]any{"name": "Gadget"})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Gadget", decodeProduct(t, rr).Name)
	})

	t.Run("Error - unknown product returns 404", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: inverrors.ErrProductNotFound})

		rr := doRequest(t, mux, http.MethodPut, "/api/v1/products/1", map[string]any{"name": "Gadget"})

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Error - empty payload rejected by service returns 400", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			error: &inverrors.InvalidArgumentError{Reason: "at least one field (name or description) must be provided"},
		})

		rr := doRequest(t, mux, http.MethodPut, "/api/v1/products/1", map[string]any{})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "at least one field (name or description) must be provided", decodeError(t, rr).Error)
	})
}

func Test_Handler_DeleteByID(t *testing.T) {
	t.Run("Success - 204 with empty body", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodDelete, "/api/v1/products/1", nil)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.Bytes())
	})

	t.Run("Error - unknown product returns 404", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: inverrors.ErrProductNotFound})

		rr := doRequest(t, mux, http.MethodDelete, "/api/v1/products/1", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_Handler_AdjustStock(t *testing.T) {
	t.Run("Success - increase returns 200 with updated stock", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			product: &service.ProductDto{ID: 1, Name: "Widget", StockQuantity: 15},
		})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/increase", map[string]any{"amount": 10})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(15), decodeProduct(t, rr).StockQuantity)
	})

	t.Run("Success - decrease returns 200 with updated stock", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			product: &service.ProductDto{ID: 1, Name: "Widget", StockQuantity: 3},
		})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/decrease", map[string]any{"amount": 7})

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(3), decodeProduct(t, rr).StockQuantity)
	})

	t.Run("Error - insufficient stock returns 400 with details", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{
			error: &inverrors.InsufficientStockError{Available: 3, Requested: 7},
		})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/decrease", map[string]any{"amount": 7})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Insufficient stock. Available: 3, Requested: 7", decodeError(t, rr).Error)
	})

	t.Run("Error - unknown product returns 404", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: inverrors.ErrProductNotFound})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/increase", map[string]any{"amount": 10})

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Error - zero amount returns validation errors", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/decrease", map[string]any{"amount": 0})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp validationErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Contains(t, resp.ValidationErrors, "Amount")
	})

	t.Run("Error - negative amount returns validation errors", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/increase", map[string]any{"amount": -5})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp validationErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Contains(t, resp.ValidationErrors, "Amount")
	})

	t.Run("Error - unexpected failure returns 500", func(t *testing.T) {
		mux := newTestRouter(&mockProductService{error: errors.New("db down")})

		rr := doRequest(t, mux, http.MethodPatch, "/api/v1/products/1/stock/decrease", map[string]any{"amount": 1})

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func Test_Handler_HealthCheck(t *testing.T) {
	mux := newTestRouter(&mockProductService{})

	rr := doRequest(t, mux, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
}
