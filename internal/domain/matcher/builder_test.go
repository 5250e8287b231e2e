package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

type fakePrices struct {
	// prices maps "identifier|priceListID" to a price string
	prices  map[string]string
	lookups int
}

func (f *fakePrices) LookupPrice(ctx context.Context, identifier, priceListID string) (string, bool, error) {
	f.lookups++
	price, ok := f.prices[identifier+"|"+priceListID]
	return price, ok, nil
}

func TestBuildCreatePayloadUsesPriceList(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{
		"DESK-1|retail": "199.90",
	}}
	product := catalog.Product{
		Title:    "Walnut Desk",
		Variants: []catalog.Variant{{SKU: "DESK-1", Price: "25000"}},
	}
	settings := Settings{PriceListID: "retail", PriceFallback: FallbackShopify}

	payload, skipped, err := BuildCreatePayload(context.Background(), prices, product, settings)

	require.NoError(t, err)
	require.False(t, skipped)
	require.Len(t, payload.Variants, 1)
	assert.Equal(t, "199.90", payload.Variants[0].Price)
}

func TestBuildCreatePayloadFallbackSourcePrice(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{}}
	product := catalog.Product{
		Title:    "Walnut Desk",
		Variants: []catalog.Variant{{SKU: "DESK-1", Price: "25000"}},
	}
	settings := Settings{PriceListID: "retail", PriceFallback: FallbackShopify}

	payload, skipped, err := BuildCreatePayload(context.Background(), prices, product, settings)

	require.NoError(t, err)
	require.False(t, skipped)
	require.Len(t, payload.Variants, 1)
	assert.Equal(t, "25000", payload.Variants[0].Price, "unmatched variant keeps the source price verbatim")
}

func TestBuildCreatePayloadFallbackNone(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{}}
	product := catalog.Product{
		Title:    "Lamp",
		Variants: []catalog.Variant{{SKU: "LAMP-1", Price: "49.00"}},
	}
	settings := Settings{PriceListID: "retail", PriceFallback: FallbackNone}

	payload, skipped, err := BuildCreatePayload(context.Background(), prices, product, settings)

	require.NoError(t, err)
	require.False(t, skipped)
	assert.Equal(t, "0", payload.Variants[0].Price)
}

func TestBuildCreatePayloadFallbackSkipDropsVariant(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{
		"DESK-1|retail": "199.90",
	}}
	product := catalog.Product{
		Title: "Walnut Desk",
		Variants: []catalog.Variant{
			{SKU: "DESK-1", Price: "25000"},
			{SKU: "DESK-2", Price: "26000"},
		},
	}
	settings := Settings{PriceListID: "retail", PriceFallback: FallbackSkip}

	payload, skipped, err := BuildCreatePayload(context.Background(), prices, product, settings)

	require.NoError(t, err)
	require.False(t, skipped)
	require.Len(t, payload.Variants, 1)
	assert.Equal(t, "DESK-1", payload.Variants[0].SKU)
}

func TestBuildCreatePayloadSkipsWhenAllVariantsDropped(t *testing.T) {
	prices := &fakePrices{prices: map[string]string{}}
	product := catalog.Product{
		Title:    "Walnut Desk",
		Variants: []catalog.Variant{{SKU: "DESK-1", Price: "25000"}},
	}
	settings := Settings{PriceListID: "retail", PriceFallback: FallbackSkip}

	payload, skipped, err := BuildCreatePayload(context.Background(), prices, product, settings)

	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Nil(t, payload)
}

func TestBuildCreatePayloadSkipsProductWithoutVariants(t *testing.T) {
	payload, skipped, err := BuildCreatePayload(context.Background(), &fakePrices{}, catalog.Product{Title: "Empty"}, Settings{})

	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Nil(t, payload)
}

func TestBuildCreatePayloadIncludeFlags(t *testing.T) {
	product := catalog.Product{
		Title:       "Lamp",
		Description: "A lamp.",
		ProductType: "Lighting",
		Tags:        []string{"home"},
		Images:      []catalog.Image{{URL: "https://cdn.example/lamp.jpg"}},
		Variants:    []catalog.Variant{{SKU: "LAMP-1", Price: "49.00"}},
	}

	payload, skipped, err := BuildCreatePayload(context.Background(), &fakePrices{}, product, Settings{PriceFallback: FallbackShopify})
	require.NoError(t, err)
	require.False(t, skipped)
	assert.Empty(t, payload.Description)
	assert.Empty(t, payload.ProductType)
	assert.Empty(t, payload.Tags)
	assert.Empty(t, payload.Images)

	full := Settings{
		PriceFallback:       FallbackShopify,
		IncludeImages:       true,
		IncludeTags:         true,
		IncludeDescriptions: true,
		IncludeProductType:  true,
	}
	payload, skipped, err = BuildCreatePayload(context.Background(), &fakePrices{}, product, full)
	require.NoError(t, err)
	require.False(t, skipped)
	assert.Equal(t, "A lamp.", payload.Description)
	assert.Equal(t, "Lighting", payload.ProductType)
	assert.Equal(t, []string{"home"}, payload.Tags)
	require.Len(t, payload.Images, 1)
}

func TestBuildCreatePayloadFillsDefaultOptionValues(t *testing.T) {
	product := catalog.Product{
		Title: "Tee",
		Options: []catalog.ProductOption{
			{Name: "Size", Values: []string{"S", "M"}},
			{Name: "Color", Values: []string{"Black"}},
		},
		Variants: []catalog.Variant{
			{SKU: "TEE-S", Price: "10", SelectedOptions: []catalog.SelectedOption{{Name: "Size", Value: "S"}}},
		},
	}

	payload, skipped, err := BuildCreatePayload(context.Background(), &fakePrices{}, product, Settings{PriceFallback: FallbackShopify})

	require.NoError(t, err)
	require.False(t, skipped)
	require.Len(t, payload.Variants, 1)
	assert.Equal(t, []string{"S", "Default"}, payload.Variants[0].OptionValues)
	// the Color axis picked up the Default value it now needs
	assert.Contains(t, payload.Options[1].Values, "Default")
	assert.NotContains(t, payload.Options[0].Values, "Default")
}

func TestBuildCreatePayloadUnknownFallbackErrors(t *testing.T) {
	product := catalog.Product{
		Title:    "Lamp",
		Variants: []catalog.Variant{{SKU: "LAMP-1", Price: "49.00"}},
	}

	_, _, err := BuildCreatePayload(context.Background(), &fakePrices{}, product, Settings{PriceFallback: "lowest"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lowest")
}
