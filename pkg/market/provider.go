package market

import "context"

// Provider exposes exchange-agnostic market data.
type Provider interface {
	// Snapshot returns a normalized market snapshot for the specified symbol.
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	// OptionChain returns the current option-chain entries for an underlying.
	// Providers without options data return an empty slice, not an error.
	OptionChain(ctx context.Context, symbol string) ([]OptionQuote, error)
	// ListAssets returns all supported symbols along with metadata.
	ListAssets(ctx context.Context) ([]Asset, error)
}
