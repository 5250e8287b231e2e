// Package matcher decides whether a source product already exists on a
// target system and, if not, builds the create payload for it.
package matcher

import (
	"context"

	"github.com/storesync/storefront-sync-backend/internal/domain/catalog"
)

// CollectIdentifiers gathers candidate identifiers from a source product
// in priority order: SKU, then barcode, then reference, then each
// variant's SKU/barcode, then the product name as a last resort.
// Duplicates and empty values are dropped; order is preserved.
func CollectIdentifiers(product catalog.Product) []catalog.Identifier {
	var idents []catalog.Identifier
	seen := make(map[string]bool)

	add := func(kind, value string) {
		if value == "" {
			return
		}
		key := kind + "\x00" + value
		if seen[key] {
			return
		}
		seen[key] = true
		idents = append(idents, catalog.Identifier{Kind: kind, Value: value})
	}

	if len(product.Variants) > 0 {
		primary := product.Variants[0]
		add(catalog.IdentifierSKU, primary.SKU)
		add(catalog.IdentifierBarcode, primary.Barcode)
		add(catalog.IdentifierReference, primary.Reference)
	}
	for _, v := range product.Variants {
		add(catalog.IdentifierSKU, v.SKU)
		add(catalog.IdentifierBarcode, v.Barcode)
	}
	add(catalog.IdentifierName, product.Title)

	return idents
}

// FindExisting probes the target for each candidate identifier in
// priority order. The first match short-circuits the search; no further
// candidates are checked once any match is found. Returns nil when no
// candidate matches.
func FindExisting(ctx context.Context, finder TargetFinder, product catalog.Product) (*CandidateMatch, error) {
	for _, ident := range CollectIdentifiers(product) {
		targetID, err := finder.FindProductByIdentifier(ctx, ident)
		if err != nil {
			return nil, err
		}
		if targetID != "" {
			return &CandidateMatch{Identifier: ident, TargetID: targetID}, nil
		}
	}
	return nil, nil
}
