package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/ticketbay/tb-projector/internal/adapter"
	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/uri"
)

// Resolver defines the interface for resolving an item's off-chain metadata
// document from its tokenURI
type Resolver interface {
	// Resolve dereferences metadataURI, enforces the document contract
	// (size bound, required fields) and returns the normalized metadata
	Resolve(ctx context.Context, metadataURI string) (*domain.ItemMetadata, error)
}

type resolver struct {
	uriResolver uri.Resolver
	httpClient  adapter.HTTPClient
	json        adapter.JSON
	maxBytes    int64
}

func NewResolver(uriResolver uri.Resolver, httpClient adapter.HTTPClient, json adapter.JSON, maxBytes int64) Resolver {
	return &resolver{
		uriResolver: uriResolver,
		httpClient:  httpClient,
		json:        json,
		maxBytes:    maxBytes,
	}
}

func (r *resolver) Resolve(ctx context.Context, metadataURI string) (*domain.ItemMetadata, error) {
	if metadataURI == "" {
		return nil, fmt.Errorf("%w: empty metadata URI", domain.ErrMetadataInvalid)
	}

	resolved, err := r.uriResolver.Resolve(ctx, metadataURI)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve metadata URI %s: %w", metadataURI, err)
	}

	body, err := r.httpClient.Get(ctx, resolved, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata from %s: %w", resolved, err)
	}
	if r.maxBytes > 0 && int64(len(body)) > r.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrMetadataTooLarge, r.maxBytes)
	}

	var raw map[string]interface{}
	if err := r.json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataInvalid, err)
	}

	return r.normalize(raw)
}

// normalize extracts the marketplace metadata fields. name and image are
// required; everything else is optional free-form.
func (r *resolver) normalize(raw map[string]interface{}) (*domain.ItemMetadata, error) {
	md := &domain.ItemMetadata{}

	if name, ok := raw["name"].(string); ok {
		md.Name = strings.TrimSpace(name)
	}
	if desc, ok := raw["description"].(string); ok {
		md.Description = desc
	}
	if image, ok := raw["image"].(string); ok {
		md.Image = strings.TrimSpace(image)
	}
	if itemType, ok := raw["itemType"].(string); ok {
		md.ItemType = normalizeItemType(itemType)
	}

	if md.Name == "" {
		return nil, fmt.Errorf("%w: missing required field name", domain.ErrMetadataInvalid)
	}
	if md.Image == "" {
		return nil, fmt.Errorf("%w: missing required field image", domain.ErrMetadataInvalid)
	}

	return md, nil
}

func normalizeItemType(s string) domain.ItemType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(domain.ItemTypeTicket):
		return domain.ItemTypeTicket
	case string(domain.ItemTypeVoucher):
		return domain.ItemTypeVoucher
	case string(domain.ItemTypeMembership):
		return domain.ItemTypeMembership
	default:
		// Unknown tags are preserved verbatim rather than dropped
		return domain.ItemType(s)
	}
}
