package domain

// ContentItem is a single published item fetched from a monitored account.
// Items arrive from the platform newest first; DiscoveredOrder preserves that
// return order, 0 being the most recent item.
type ContentItem struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	DiscoveredOrder int    `json:"discovered_order"`
}
