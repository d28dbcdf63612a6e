// Package openfoodfacts provides a client for the OpenFoodFacts product API.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when OpenFoodFacts has no product for a barcode.
var ErrNotFound = eris.New("openfoodfacts: product not found")

// Client defines the OpenFoodFacts operations.
type Client interface {
	// Product fetches a product by barcode.
	Product(ctx context.Context, barcode string) (*Product, error)
}

// Product is the subset of the OpenFoodFacts product document we use.
type Product struct {
	Code                    string   `json:"code"`
	ProductName             string   `json:"product_name"`
	Brands                  string   `json:"brands"`
	IngredientsText         string   `json:"ingredients_text"`
	AllergensTags           []string `json:"allergens_tags"`
	TracesTags              []string `json:"traces_tags"`
	IngredientsAnalysisTags []string `json:"ingredients_analysis_tags"`
	CategoriesTags          []string `json:"categories_tags"`
}

// PrimaryBrand returns the first brand of a comma-separated list.
func (p *Product) PrimaryBrand() string {
	first, _, _ := strings.Cut(p.Brands, ",")
	return strings.TrimSpace(first)
}

type productResponse struct {
	Status        int      `json:"status"`
	StatusVerbose string   `json:"status_verbose"`
	Code          string   `json:"code"`
	Product       *Product `json:"product"`
}

// APIError is a non-2xx response from OpenFoodFacts.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openfoodfacts: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent sets the User-Agent header. OpenFoodFacts asks callers to
// identify their application.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithRateLimit limits requests per second with the given burst.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *httpClient) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates an OpenFoodFacts client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://world.openfoodfacts.org",
		userAgent: "allergen-risk/1.0",
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(1.5), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Product fetches /api/v0/product/{barcode}.json. A status other than 1 in
// the body means the product is unknown.
func (c *httpClient) Product(ctx context.Context, barcode string) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, eris.New("openfoodfacts: empty barcode")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "openfoodfacts: rate limit wait")
		}
	}

	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "openfoodfacts: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "openfoodfacts: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "openfoodfacts: read body")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	var pr productResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, eris.Wrap(err, "openfoodfacts: decode response")
	}
	if pr.Status != 1 || pr.Product == nil {
		return nil, ErrNotFound
	}
	if pr.Product.Code == "" {
		pr.Product.Code = barcode
	}
	return pr.Product, nil
}
