// Package books is the typed client for the accounting/invoicing API.
package books

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

const defaultTimeout = 30 * time.Second

// Client wraps the accounting system API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an accounting client from config.
func NewClient(cfg config.BooksConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return remote.DoJSON(ctx, c.httpClient, "books", http.MethodGet, u, c.headers(), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return remote.DoJSON(ctx, c.httpClient, "books", http.MethodPost, c.baseURL+path, c.headers(), body, out)
}

// ListInventoryAdjustments returns one page of stock movements recorded
// at or after since, plus whether more pages remain. The endpoint is
// paginated and prone to transient failure; callers wrap it in the retry
// helper.
func (c *Client) ListInventoryAdjustments(ctx context.Context, since time.Time, page int) ([]catalog.InventoryAdjustment, bool, error) {
	query := url.Values{
		"page":     {fmt.Sprintf("%d", page)},
		"per_page": {"100"},
	}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	var resp adjustmentListResponse
	if err := c.get(ctx, "/inventory/adjustments", query, &resp); err != nil {
		return nil, false, err
	}

	adjustments := make([]catalog.InventoryAdjustment, 0, len(resp.Adjustments))
	for _, a := range resp.Adjustments {
		adjustments = append(adjustments, normalizeAdjustment(a))
	}
	return adjustments, resp.Page < resp.TotalPages, nil
}

// FindItemByIdentifier looks up an accounting item by SKU, barcode or
// reference. Returns nil when nothing matches.
func (c *Client) FindItemByIdentifier(ctx context.Context, identifier string) (*Item, error) {
	query := url.Values{"identifier": {identifier}, "limit": {"1"}}

	var resp itemListResponse
	if err := c.get(ctx, "/items/search", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := normalizeItem(resp.Items[0])
	return &item, nil
}

// CreateInvoice creates an invoice for an order and returns its id and
// number.
func (c *Client) CreateInvoice(ctx context.Context, payload InvoiceCreate) (id, number string, err error) {
	var resp invoiceResponse
	if err := c.post(ctx, "/invoices", payload, &resp); err != nil {
		return "", "", err
	}
	return resp.Invoice.ID, resp.Invoice.Number, nil
}

// InvoiceExists reports whether an invoice id still resolves. Voided
// and deleted invoices return 404 upstream.
func (c *Client) InvoiceExists(ctx context.Context, id string) (bool, error) {
	var resp invoiceResponse
	if err := c.get(ctx, "/invoices/"+id, nil, &resp); err != nil {
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindOrCreateContact resolves a contact by email, creating it when
// absent, and returns the contact id.
func (c *Client) FindOrCreateContact(ctx context.Context, email, name string) (string, error) {
	query := url.Values{"email": {email}, "limit": {"1"}}
	var found contactListResponse
	if err := c.get(ctx, "/contacts/search", query, &found); err != nil {
		return "", err
	}
	if len(found.Contacts) > 0 {
		return found.Contacts[0].ID, nil
	}

	var created contactResponse
	body := map[string]string{"email": email, "name": name}
	if err := c.post(ctx, "/contacts", body, &created); err != nil {
		return "", err
	}
	return created.Contact.ID, nil
}
