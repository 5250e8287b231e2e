// Package shopify is the typed client for the primary storefront API.
package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

const defaultTimeout = 30 * time.Second

// Client wraps the storefront admin API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a storefront client from config.
func NewClient(cfg config.ShopifyConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    fmt.Sprintf("https://%s/admin/api/2024-10", cfg.ShopDomain),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-Shopify-Access-Token": c.token}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return remote.DoJSON(ctx, c.httpClient, "shopify", http.MethodGet, u, c.headers(), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return remote.DoJSON(ctx, c.httpClient, "shopify", http.MethodPost, c.baseURL+path, c.headers(), body, out)
}

// ListProductsUpdatedSince returns products updated at or after since,
// normalized, oldest first. A zero since returns everything.
func (c *Client) ListProductsUpdatedSince(ctx context.Context, since time.Time, onlyActive bool) ([]catalog.Product, error) {
	query := url.Values{"limit": {"250"}}
	if !since.IsZero() {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}
	if onlyActive {
		query.Set("status", "active")
	}

	var products []catalog.Product
	page := 1
	for {
		query.Set("page", fmt.Sprintf("%d", page))
		var resp productListResponse
		if err := c.get(ctx, "/products.json", query, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Products {
			products = append(products, normalizeProduct(p))
		}
		if len(resp.Products) < 250 {
			break
		}
		page++
	}
	return products, nil
}

// GetProduct fetches one product by id. Returns nil when the product no
// longer exists, so callers can detect stale mappings without error
// branching.
func (c *Client) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var resp productResponse
	err := c.get(ctx, "/products/"+id+".json", nil, &resp)
	if err != nil {
		var apiErr *remote.APIError
		if asAPIError(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	product := normalizeProduct(resp.Product)
	return &product, nil
}

// SearchProductByIdentifier probes for a product carrying the given
// identifier. Returns the product id, or "" when nothing matches.
func (c *Client) SearchProductByIdentifier(ctx context.Context, ident catalog.Identifier) (string, error) {
	query := url.Values{"limit": {"1"}}
	switch ident.Kind {
	case catalog.IdentifierSKU, catalog.IdentifierBarcode, catalog.IdentifierReference:
		query.Set(ident.Kind, ident.Value)
	case catalog.IdentifierName:
		query.Set("title", ident.Value)
	default:
		return "", fmt.Errorf("shopify: unsupported identifier kind %q", ident.Kind)
	}

	var resp productListResponse
	if err := c.get(ctx, "/products.json", query, &resp); err != nil {
		return "", err
	}
	if len(resp.Products) == 0 {
		return "", nil
	}
	return resp.Products[0].ID.String(), nil
}

// CreateProduct creates a product and returns its new id.
func (c *Client) CreateProduct(ctx context.Context, payload catalog.ProductCreate) (string, error) {
	body := map[string]interface{}{"product": denormalizeCreate(payload)}
	var resp productResponse
	if err := c.post(ctx, "/products.json", body, &resp); err != nil {
		return "", err
	}
	return resp.Product.ID.String(), nil
}

// ListOrdersUpdatedSince returns orders updated at or after since,
// normalized, oldest first.
func (c *Client) ListOrdersUpdatedSince(ctx context.Context, since time.Time) ([]catalog.Order, error) {
	query := url.Values{"limit": {"250"}, "status": {"any"}}
	if !since.IsZero() {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}

	var resp orderListResponse
	if err := c.get(ctx, "/orders.json", query, &resp); err != nil {
		return nil, err
	}

	orders := make([]catalog.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		orders = append(orders, normalizeOrder(o))
	}
	return orders, nil
}

// AdjustInventory applies a stock delta to the variant carrying sku.
func (c *Client) AdjustInventory(ctx context.Context, sku string, delta int) error {
	body := map[string]interface{}{
		"adjustment": map[string]interface{}{
			"sku":                  sku,
			"available_adjustment": delta,
		},
	}
	return c.post(ctx, "/inventory_levels/adjust.json", body, nil)
}
