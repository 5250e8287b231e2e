package books

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// Item is a normalized accounting item with its price-list entries.
type Item struct {
	ID        string
	Name      string
	SKU       string
	Barcode   string
	Reference string
	Prices    []PriceEntry
}

// PriceEntry is one price-list row for an item.
type PriceEntry struct {
	PriceListID string
	Price       decimal.Decimal
}

// PriceForList returns the item's price on the given price list as a
// string, or ok=false when the list has no entry for this item.
func (i *Item) PriceForList(priceListID string) (string, bool) {
	for _, entry := range i.Prices {
		if entry.PriceListID == priceListID {
			return entry.Price.String(), true
		}
	}
	return "", false
}

// InvoiceCreate is the payload for creating an invoice from an order.
type InvoiceCreate struct {
	ContactID string        `json:"contact_id"`
	Reference string        `json:"reference"`
	Currency  string        `json:"currency"`
	Lines     []InvoiceLine `json:"lines"`
}

// InvoiceLine is one invoice line.
type InvoiceLine struct {
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type adjustmentListResponse struct {
	Adjustments []wireAdjustment `json:"adjustments"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"total_pages"`
}

type wireAdjustment struct {
	ID         string          `json:"id"`
	SKU        string          `json:"sku"`
	Delta      json.RawMessage `json:"delta"`
	AdjustedAt string          `json:"adjusted_at"`
}

type itemListResponse struct {
	Items []wireItem `json:"items"`
}

type wireItem struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	SKU       string      `json:"sku"`
	Barcode   string      `json:"barcode"`
	Reference string      `json:"reference"`
	Prices    []wirePrice `json:"prices"`
}

type wirePrice struct {
	PriceListID string          `json:"price_list_id"`
	Price       json.RawMessage `json:"price"`
}

type invoiceResponse struct {
	Invoice struct {
		ID     string `json:"id"`
		Number string `json:"number"`
	} `json:"invoice"`
}

type contactListResponse struct {
	Contacts []struct {
		ID string `json:"id"`
	} `json:"contacts"`
}

type contactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// normalizeAdjustment converts the wire shape; deltas may arrive as
// numbers or quoted strings.
func normalizeAdjustment(a wireAdjustment) catalog.InventoryAdjustment {
	adj := catalog.InventoryAdjustment{
		ID:  a.ID,
		SKU: a.SKU,
	}
	if d, err := decimal.NewFromString(strings.Trim(string(a.Delta), `"`)); err == nil {
		adj.Delta = int(d.IntPart())
	}
	if t, err := time.Parse(time.RFC3339, a.AdjustedAt); err == nil {
		adj.AdjustedAt = t
	}
	return adj
}

// normalizeItem converts the wire shape, dropping price entries whose
// amount cannot be parsed.
func normalizeItem(w wireItem) Item {
	item := Item{
		ID:        w.ID,
		Name:      w.Name,
		SKU:       w.SKU,
		Barcode:   w.Barcode,
		Reference: w.Reference,
	}
	for _, p := range w.Prices {
		amount, err := decimal.NewFromString(strings.Trim(string(p.Price), `"`))
		if err != nil {
			continue
		}
		item.Prices = append(item.Prices, PriceEntry{
			PriceListID: p.PriceListID,
			Price:       amount,
		})
	}
	return item
}
