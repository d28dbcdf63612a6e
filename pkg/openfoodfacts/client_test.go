package openfoodfacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nutellaJSON = `{
  "status": 1,
  "code": "3017620422003",
  "product": {
    "product_name": "Nutella",
    "brands": "Ferrero, Nutella",
    "ingredients_text": "Sugar, palm oil, hazelnuts 13%, skimmed milk powder 8.7%",
    "allergens_tags": ["en:milk", "en:nuts"],
    "traces_tags": ["en:gluten"],
    "ingredients_analysis_tags": ["en:palm-oil"]
  }
}`

func TestProduct_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v0/product/3017620422003.json", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(nutellaJSON))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithUserAgent("test-agent"), WithRateLimit(0, 0))
	got, err := client.Product(context.Background(), "3017620422003")

	require.NoError(t, err)
	assert.Equal(t, "3017620422003", got.Code)
	assert.Equal(t, "Nutella", got.ProductName)
	assert.Equal(t, "Ferrero", got.PrimaryBrand())
	assert.Equal(t, []string{"en:milk", "en:nuts"}, got.AllergensTags)
	assert.Equal(t, []string{"en:gluten"}, got.TracesTags)
}

func TestProduct_StatusZeroIsNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":0,"status_verbose":"product not found","code":"000"}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Product(context.Background(), "000")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProduct_HTTP404IsNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Product(context.Background(), "111")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProduct_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`maintenance`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Product(context.Background(), "222")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "503")
}

func TestProduct_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Product(context.Background(), "333")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestProduct_EmptyBarcode(t *testing.T) {
	t.Parallel()

	_, err := NewClient().Product(context.Background(), "  ")
	assert.Error(t, err)
}

func TestProduct_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nutellaJSON))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Product(ctx, "3017620422003")
	assert.Error(t, err)
}
