// Package vendorapi provides access to the vendor-data boundary: available
// vendors and product cost data used by procurement actions.
package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autonomos/orchestrator/domain"
)

// Directory is the vendor-data boundary consumed by the executor.
type Directory interface {
	GetAvailableVendors(ctx context.Context, productID string) ([]domain.VendorCandidate, error)
	GetProductCost(ctx context.Context, productID string) (float64, error)
	GetProductDetails(ctx context.Context, productID string) (domain.ProductDetails, error)
}

// Client is an HTTP implementation of Directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a vendor-data client against the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetAvailableVendors lists vendor candidates for a product.
func (c *Client) GetAvailableVendors(ctx context.Context, productID string) ([]domain.VendorCandidate, error) {
	var vendors []domain.VendorCandidate
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/products/%s/vendors", productID), &vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

// GetProductCost returns the unit cost for a product.
func (c *Client) GetProductCost(ctx context.Context, productID string) (float64, error) {
	details, err := c.GetProductDetails(ctx, productID)
	if err != nil {
		return 0, err
	}
	return details.Cost, nil
}

// GetProductDetails returns name and unit cost for a product.
func (c *Client) GetProductDetails(ctx context.Context, productID string) (domain.ProductDetails, error) {
	var details domain.ProductDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/products/%s", productID), &details); err != nil {
		return domain.ProductDetails{}, err
	}
	return details, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vendor data request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vendor data returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode vendor data: %w", err)
	}
	return nil
}
