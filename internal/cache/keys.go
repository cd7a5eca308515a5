package cache

import (
	"strings"
	"time"

	"daytrader-api/internal/config"
)

// Namespace is the Redis key prefix for the trader application.
const Namespace = "daytrader"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Market Data Keys --------------------------------------------------------

// SnapshotLatestKey holds the most recent snapshot of one symbol.
func SnapshotLatestKey(symbol string) string {
	return formatKey("snapshot", "latest", strings.ToUpper(symbol))
}

// CaptureCountKey caches the number of captures recorded for a trading day.
func CaptureCountKey(tradeDate string) string {
	return formatKey("captures", "count", tradeDate)
}

// --- Proposal & Position Keys ------------------------------------------------

// PendingProposalsKey caches the IDs awaiting human approval.
func PendingProposalsKey() string {
	return formatKey("proposals", "pending")
}

// ProposalStatsKey caches the per-status counts for one trading day.
func ProposalStatsKey(tradeDate string) string {
	return formatKey("proposals", "stats", tradeDate)
}

// OpenPositionsKey caches the open book.
func OpenPositionsKey() string {
	return formatKey("positions", "open")
}

// PerformanceLatestKey caches the newest performance snapshot.
func PerformanceLatestKey() string {
	return formatKey("performance", "latest")
}

// --- TTL Helpers ------------------------------------------------------------

// SnapshotTTL returns short-lived TTL for quote keys.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// PendingProposalsTTL returns the TTL for the pending approvals list.
func PendingProposalsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5)
}

// ProposalStatsTTL returns the TTL for daily stats payloads.
func ProposalStatsTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// OpenPositionsTTL returns the TTL for the open book payload.
func OpenPositionsTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLMedium, 0.5)
}

// PerformanceTTL returns the TTL for performance snapshots.
func PerformanceTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// CaptureCountTTL returns the TTL for capture counters.
func CaptureCountTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}
