package market

import "context"

// Persistence hooks allow callers to persist market data to external stores.
type Persistence interface {
	// RecordCapture persists a single snapshot as an immutable audit row.
	RecordCapture(ctx context.Context, snapshot *Snapshot) error
}
