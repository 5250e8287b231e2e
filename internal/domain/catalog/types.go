// Package catalog holds the normalized cross-system entity model.
//
// Remote adapters normalize their wire payloads into these types at the
// boundary, so sync code never branches on raw JSON shape.
package catalog

import "time"

// Product is a normalized storefront product.
type Product struct {
	ID          string
	Title       string
	Description string
	ProductType string
	Status      string // "active", "draft", "archived"
	Tags        []string
	Options     []ProductOption
	Variants    []Variant
	Images      []Image
	UpdatedAt   time.Time
}

// ProductOption is a product-level option axis (e.g. "Size": S/M/L).
type ProductOption struct {
	Name   string
	Values []string
}

// Variant is one sellable variation of a product.
// Price is kept as the source system's verbatim string; money math uses
// decimals but the "shopify" fallback copies this string unchanged.
type Variant struct {
	ID                string
	SKU               string
	Barcode           string
	Reference         string
	Price             string
	InventoryQuantity int
	SelectedOptions   []SelectedOption
}

// SelectedOption is one (name, value) pair on a variant.
type SelectedOption struct {
	Name  string
	Value string
}

// Image is a product image.
type Image struct {
	URL string
	Alt string
}

// ProductCreate is the payload built for creating a product on a target
// system.
type ProductCreate struct {
	Title       string
	Description string
	ProductType string
	Tags        []string
	Options     []ProductOption
	Variants    []VariantCreate
	Images      []Image
}

// VariantCreate is one variant of a create payload. OptionValues are
// positional against ProductCreate.Options.
type VariantCreate struct {
	SKU          string
	Barcode      string
	Price        string
	OptionValues []string
}

// Order is a normalized storefront order.
type Order struct {
	ID            string
	Number        string
	CustomerEmail string
	CustomerName  string
	Currency      string
	Total         string
	LineItems     []OrderLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLine is one line of an order.
type OrderLine struct {
	SKU      string
	Title    string
	Quantity int
	Price    string
}

// InventoryAdjustment is a normalized accounting-side stock movement.
type InventoryAdjustment struct {
	ID         string
	SKU        string
	Delta      int
	AdjustedAt time.Time
}

// Identifier is one candidate identifier used to probe a target system
// for an existing equivalent of a source entity.
type Identifier struct {
	Kind  string // "sku", "barcode", "reference", "name"
	Value string
}

// Identifier kinds, in matching priority order.
const (
	IdentifierSKU       = "sku"
	IdentifierBarcode   = "barcode"
	IdentifierReference = "reference"
	IdentifierName      = "name"
)
