package shopify

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/adapters/remote"
	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// wireID tolerates the API returning ids as numbers or strings.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*id = wireID(s)
	return nil
}

func (id wireID) String() string { return string(id) }

type productListResponse struct {
	Products []wireProduct `json:"products"`
}

type productResponse struct {
	Product wireProduct `json:"product"`
}

type wireProduct struct {
	ID          wireID        `json:"id"`
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html"`
	ProductType string        `json:"product_type"`
	Status      string        `json:"status"`
	Tags        string        `json:"tags"`
	Options     []wireOption  `json:"options"`
	Variants    []wireVariant `json:"variants"`
	Images      []wireImage   `json:"images"`
	UpdatedAt   string        `json:"updated_at"`
}

type wireOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type wireVariant struct {
	ID                wireID          `json:"id"`
	SKU               string          `json:"sku"`
	Barcode           string          `json:"barcode"`
	Price             json.RawMessage `json:"price"`
	InventoryQuantity int             `json:"inventory_quantity"`
	Option1           string          `json:"option1"`
	Option2           string          `json:"option2"`
	Option3           string          `json:"option3"`
}

type wireImage struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type orderListResponse struct {
	Orders []wireOrder `json:"orders"`
}

type wireOrder struct {
	ID         wireID         `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Currency   string         `json:"currency"`
	TotalPrice json.RawMessage `json:"total_price"`
	Customer   wireCustomer   `json:"customer"`
	LineItems  []wireLineItem `json:"line_items"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type wireCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type wireLineItem struct {
	SKU      string          `json:"sku"`
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    json.RawMessage `json:"price"`
}

// rawString normalizes a JSON value that may arrive as a quoted string
// or a bare number into its string form.
func rawString(raw json.RawMessage) string {
	return strings.Trim(string(raw), `"`)
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// normalizeProduct converts the wire shape into the catalog model; this
// is the only place raw product JSON is interpreted.
func normalizeProduct(p wireProduct) catalog.Product {
	product := catalog.Product{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.BodyHTML,
		ProductType: p.ProductType,
		Status:      p.Status,
		UpdatedAt:   parseWireTime(p.UpdatedAt),
	}

	if p.Tags != "" {
		for _, tag := range strings.Split(p.Tags, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				product.Tags = append(product.Tags, trimmed)
			}
		}
	}

	for _, o := range p.Options {
		product.Options = append(product.Options, catalog.ProductOption{
			Name:   o.Name,
			Values: o.Values,
		})
	}

	for _, v := range p.Variants {
		variant := catalog.Variant{
			ID:                v.ID.String(),
			SKU:               v.SKU,
			Barcode:           v.Barcode,
			Price:             rawString(v.Price),
			InventoryQuantity: v.InventoryQuantity,
		}
		positional := []string{v.Option1, v.Option2, v.Option3}
		for i, o := range p.Options {
			if i >= len(positional) || positional[i] == "" {
				continue
			}
			variant.SelectedOptions = append(variant.SelectedOptions, catalog.SelectedOption{
				Name:  o.Name,
				Value: positional[i],
			})
		}
		product.Variants = append(product.Variants, variant)
	}

	for _, img := range p.Images {
		product.Images = append(product.Images, catalog.Image{URL: img.Src, Alt: img.Alt})
	}

	return product
}

func normalizeOrder(o wireOrder) catalog.Order {
	order := catalog.Order{
		ID:            o.ID.String(),
		Number:        o.Name,
		CustomerEmail: o.Email,
		CustomerName:  strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName),
		Currency:      o.Currency,
		Total:         rawString(o.TotalPrice),
		CreatedAt:     parseWireTime(o.CreatedAt),
		UpdatedAt:     parseWireTime(o.UpdatedAt),
	}
	for _, li := range o.LineItems {
		order.LineItems = append(order.LineItems, catalog.OrderLine{
			SKU:      li.SKU,
			Title:    li.Title,
			Quantity: li.Quantity,
			Price:    rawString(li.Price),
		})
	}
	return order
}

// denormalizeCreate converts a create payload into the wire shape.
func denormalizeCreate(payload catalog.ProductCreate) map[string]interface{} {
	options := make([]map[string]interface{}, 0, len(payload.Options))
	for _, o := range payload.Options {
		options = append(options, map[string]interface{}{
			"name":   o.Name,
			"values": o.Values,
		})
	}

	variants := make([]map[string]interface{}, 0, len(payload.Variants))
	for _, v := range payload.Variants {
		variant := map[string]interface{}{
			"sku":     v.SKU,
			"barcode": v.Barcode,
			"price":   v.Price,
		}
		for i, value := range v.OptionValues {
			if i > 2 {
				break
			}
			variant["option"+strconv.Itoa(i+1)] = value
		}
		variants = append(variants, variant)
	}

	images := make([]map[string]interface{}, 0, len(payload.Images))
	for _, img := range payload.Images {
		images = append(images, map[string]interface{}{"src": img.URL, "alt": img.Alt})
	}

	return map[string]interface{}{
		"title":        payload.Title,
		"body_html":    payload.Description,
		"product_type": payload.ProductType,
		"tags":         strings.Join(payload.Tags, ", "),
		"options":      options,
		"variants":     variants,
		"images":       images,
	}
}

func asAPIError(err error, target **remote.APIError) bool {
	return errors.As(err, target)
}
