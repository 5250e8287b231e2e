package matcher

import (
	"context"
	"fmt"

	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// BuildCreatePayload builds the target create payload for a source
// product. Each variant's price is resolved from the configured price
// list; variants without an entry follow the fallback policy. Returns
// (nil, true, nil) when the product must be skipped: either it has no
// variants at all, or the "skip" fallback abandoned every variant. A
// product is never created with an empty variant list.
func BuildCreatePayload(ctx context.Context, prices PriceLookup, product catalog.Product, settings Settings) (*catalog.ProductCreate, bool, error) {
	if len(product.Variants) == 0 {
		return nil, true, nil
	}

	payload := &catalog.ProductCreate{
		Title:   product.Title,
		Options: copyOptions(product.Options),
	}
	if settings.IncludeDescriptions {
		payload.Description = product.Description
	}
	if settings.IncludeProductType {
		payload.ProductType = product.ProductType
	}
	if settings.IncludeTags {
		payload.Tags = append([]string(nil), product.Tags...)
	}
	if settings.IncludeImages {
		payload.Images = append([]catalog.Image(nil), product.Images...)
	}

	for _, variant := range product.Variants {
		price, ok, err := resolvePrice(ctx, prices, variant, settings)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			// "skip" fallback: abandon this variant entirely
			continue
		}

		payload.Variants = append(payload.Variants, catalog.VariantCreate{
			SKU:          variant.SKU,
			Barcode:      variant.Barcode,
			Price:        price,
			OptionValues: optionValues(payload.Options, variant),
		})
	}

	if len(payload.Variants) == 0 {
		return nil, true, nil
	}

	ensureDefaultValues(payload)
	return payload, false, nil
}

// resolvePrice looks the variant up on the configured price list and
// applies the fallback policy when no entry exists. ok=false means the
// variant is abandoned.
func resolvePrice(ctx context.Context, prices PriceLookup, variant catalog.Variant, settings Settings) (string, bool, error) {
	identifier := variant.SKU
	if identifier == "" {
		identifier = variant.Barcode
	}
	if identifier == "" {
		identifier = variant.Reference
	}

	if identifier != "" && settings.PriceListID != "" {
		price, found, err := prices.LookupPrice(ctx, identifier, settings.PriceListID)
		if err != nil {
			return "", false, err
		}
		if found {
			return price, true, nil
		}
	}

	switch settings.PriceFallback {
	case FallbackShopify, "":
		return variant.Price, true, nil
	case FallbackNone:
		return "0", true, nil
	case FallbackSkip:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("unknown price fallback policy %q", settings.PriceFallback)
	}
}

// optionValues produces the variant's positional option values, one per
// product option. Slots the source variant does not populate get the
// literal "Default", keeping target cardinality consistent even with
// sparse attribute data.
func optionValues(options []catalog.ProductOption, variant catalog.Variant) []string {
	if len(options) == 0 {
		return nil
	}

	byName := make(map[string]string, len(variant.SelectedOptions))
	for _, so := range variant.SelectedOptions {
		byName[so.Name] = so.Value
	}

	values := make([]string, len(options))
	for i, option := range options {
		if v, ok := byName[option.Name]; ok && v != "" {
			values[i] = v
		} else {
			values[i] = defaultOptionValue
		}
	}
	return values
}

// ensureDefaultValues appends "Default" to any option axis one of the
// built variants fell back to, so the target accepts the value.
func ensureDefaultValues(payload *catalog.ProductCreate) {
	for i, option := range payload.Options {
		used := false
		for _, variant := range payload.Variants {
			if i < len(variant.OptionValues) && variant.OptionValues[i] == defaultOptionValue {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		present := false
		for _, value := range option.Values {
			if value == defaultOptionValue {
				present = true
				break
			}
		}
		if !present {
			payload.Options[i].Values = append(payload.Options[i].Values, defaultOptionValue)
		}
	}
}

func copyOptions(options []catalog.ProductOption) []catalog.ProductOption {
	if len(options) == 0 {
		return nil
	}
	copied := make([]catalog.ProductOption, len(options))
	for i, o := range options {
		copied[i] = catalog.ProductOption{
			Name:   o.Name,
			Values: append([]string(nil), o.Values...),
		}
	}
	return copied
}
