package policy

import "time"

// Category identifies the kind of data being cached.
type Category string

const (
	CategoryQuote        Category = "quote"
	CategoryFundamentals Category = "fundamentals"
	CategoryProfile      Category = "profile"
	CategoryHistory      Category = "history"
	CategoryNews         Category = "news"
	CategoryAIAnalysis   Category = "ai_analysis"
)

// Variant refines a category (e.g. how fresh a quote must be, or the
// resolution of a history series). Empty means the category default.
type Variant string

const (
	VariantRealtime Variant = "realtime"
	VariantStandard Variant = "standard"
	VariantExtended Variant = "extended"
	VariantIntraday Variant = "intraday"
	VariantDaily    Variant = "daily"
)

// TTL values per (category, variant).
const (
	TTLRealtimeQuote = 5 * time.Minute
	TTLStandardQuote = 15 * time.Minute
	TTLExtendedQuote = 60 * time.Minute
	TTLFundamentals  = 24 * time.Hour
	TTLProfile       = 7 * 24 * time.Hour
	TTLIntradayHist  = 1 * time.Hour
	TTLDailyHist     = 24 * time.Hour
	TTLNews          = 30 * time.Minute
	TTLAIAnalysis    = 6 * time.Hour
)

// DefaultTTL is used for any (category, variant) combination the table
// does not know about.
const DefaultTTL = TTLStandardQuote

type tableKey struct {
	cat Category
	v   Variant
}

var ttlTable = map[tableKey]time.Duration{
	{CategoryQuote, VariantRealtime}:   TTLRealtimeQuote,
	{CategoryQuote, VariantStandard}:   TTLStandardQuote,
	{CategoryQuote, ""}:                TTLStandardQuote,
	{CategoryQuote, VariantExtended}:   TTLExtendedQuote,
	{CategoryFundamentals, ""}:         TTLFundamentals,
	{CategoryProfile, ""}:              TTLProfile,
	{CategoryHistory, VariantIntraday}: TTLIntradayHist,
	{CategoryHistory, VariantDaily}:    TTLDailyHist,
	{CategoryHistory, ""}:              TTLDailyHist,
	{CategoryNews, ""}:                 TTLNews,
	{CategoryAIAnalysis, ""}:           TTLAIAnalysis,
}

// TTLFor returns the time-to-live for a category/variant pair. Unknown
// combinations fall back to DefaultTTL so a typo can never produce an
// uncacheable or permanently-fresh entry.
func TTLFor(cat Category, v Variant) time.Duration {
	if ttl, ok := ttlTable[tableKey{cat, v}]; ok {
		return ttl
	}
	if ttl, ok := ttlTable[tableKey{cat, ""}]; ok {
		return ttl
	}
	return DefaultTTL
}

// ExpiresAt converts a TTL into an absolute expiry. A TTL <= 0 is
// normalized to "already expired" rather than left open-ended.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return now
	}
	return now.Add(ttl)
}

// Priority orders partition clearing when a storage quota is exceeded.
// Low-priority data is cleared first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

// PriorityOf returns the cleanup priority for a category. Quotes are
// cheap to refetch; fundamentals and profiles are not.
func PriorityOf(cat Category) Priority {
	switch cat {
	case CategoryQuote, CategoryNews:
		return PriorityLow
	case CategoryHistory, CategoryAIAnalysis:
		return PriorityMedium
	case CategoryFundamentals, CategoryProfile:
		return PriorityHigh
	}
	return PriorityLow
}
