// Package woo is the typed client for the optional second storefront.
package woo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

const defaultTimeout = 30 * time.Second

// Client wraps the second storefront's REST API. A nil *Client is a
// valid "not configured" state; callers check Enabled on config before
// constructing one.
type Client struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
}

// NewClient creates a client from config.
func NewClient(cfg config.WooConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/wp-json/wc/v3",
		key:        cfg.ConsumerKey,
		secret:     cfg.ConsumerSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) authQuery(query url.Values) url.Values {
	if query == nil {
		query = url.Values{}
	}
	query.Set("consumer_key", c.key)
	query.Set("consumer_secret", c.secret)
	return query
}

// FindProductByIdentifier probes for an existing product by identifier.
// Returns the product id, or "" when nothing matches.
func (c *Client) FindProductByIdentifier(ctx context.Context, ident catalog.Identifier) (string, error) {
	query := c.authQuery(url.Values{"per_page": {"1"}})
	switch ident.Kind {
	case catalog.IdentifierSKU, catalog.IdentifierBarcode, catalog.IdentifierReference:
		query.Set("sku", ident.Value)
	case catalog.IdentifierName:
		query.Set("search", ident.Value)
	default:
		return "", fmt.Errorf("woo: unsupported identifier kind %q", ident.Kind)
	}

	var resp []wireProduct
	u := c.baseURL + "/products?" + query.Encode()
	if err := remote.DoJSON(ctx, c.httpClient, "woo", http.MethodGet, u, nil, nil, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%d", resp[0].ID), nil
}

// ProductExists reports whether a previously mapped product id still
// resolves. A 404 means the product was deleted on this storefront.
func (c *Client) ProductExists(ctx context.Context, id string) (bool, error) {
	u := c.baseURL + "/products/" + id + "?" + c.authQuery(nil).Encode()

	var resp wireProduct
	if err := remote.DoJSON(ctx, c.httpClient, "woo", http.MethodGet, u, nil, nil, &resp); err != nil {
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateProduct creates a product and returns its new id.
func (c *Client) CreateProduct(ctx context.Context, payload catalog.ProductCreate) (string, error) {
	u := c.baseURL + "/products?" + c.authQuery(nil).Encode()

	var resp wireProduct
	if err := remote.DoJSON(ctx, c.httpClient, "woo", http.MethodPost, u, nil, denormalizeCreate(payload), &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", resp.ID), nil
}

type wireProduct struct {
	ID  int64  `json:"id"`
	SKU string `json:"sku"`
}

func denormalizeCreate(payload catalog.ProductCreate) map[string]interface{} {
	attributes := make([]map[string]interface{}, 0, len(payload.Options))
	for _, o := range payload.Options {
		attributes = append(attributes, map[string]interface{}{
			"name":      o.Name,
			"options":   o.Values,
			"variation": true,
			"visible":   true,
		})
	}

	images := make([]map[string]interface{}, 0, len(payload.Images))
	for _, img := range payload.Images {
		images = append(images, map[string]interface{}{"src": img.URL, "alt": img.Alt})
	}

	body := map[string]interface{}{
		"name":        payload.Title,
		"type":        "simple",
		"description": payload.Description,
		"attributes":  attributes,
		"images":      images,
	}
	if len(payload.Variants) == 1 {
		body["sku"] = payload.Variants[0].SKU
		body["regular_price"] = payload.Variants[0].Price
	}
	if len(payload.Variants) > 1 {
		body["type"] = "variable"
		variations := make([]map[string]interface{}, 0, len(payload.Variants))
		for _, v := range payload.Variants {
			variations = append(variations, map[string]interface{}{
				"sku":           v.SKU,
				"regular_price": v.Price,
				"options":       v.OptionValues,
			})
		}
		body["variations"] = variations
	}
	if payload.ProductType != "" {
		body["categories"] = []map[string]interface{}{{"name": payload.ProductType}}
	}
	if len(payload.Tags) > 0 {
		tags := make([]map[string]interface{}, 0, len(payload.Tags))
		for _, tag := range payload.Tags {
			tags = append(tags, map[string]interface{}{"name": tag})
		}
		body["tags"] = tags
	}
	return body
}
