package venue

// Hyperliquid exposes a single info endpoint taking a typed POST body. Only
// the mid-price map is consumed, as a reference price on the live path.

// HyperliquidMidsRequest is the allMids request body.
type HyperliquidMidsRequest struct {
	Type string `json:"type"`
}

// HyperliquidMids maps asset name to mid price.
type HyperliquidMids map[string]string

// Mid returns the mid price for asset, nil when absent or malformed.
func (m HyperliquidMids) Mid(asset string) *float64 {
	return numPtr(m[asset])
}
