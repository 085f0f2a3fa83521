package policy

import (
	"testing"
	"time"
)

func TestTTLFor(t *testing.T) {
	tests := []struct {
		name string
		cat  Category
		v    Variant
		want time.Duration
	}{
		{"realtime quote", CategoryQuote, VariantRealtime, 5 * time.Minute},
		{"standard quote", CategoryQuote, VariantStandard, 15 * time.Minute},
		{"extended quote", CategoryQuote, VariantExtended, 60 * time.Minute},
		{"quote default variant", CategoryQuote, "", 15 * time.Minute},
		{"fundamentals", CategoryFundamentals, "", 24 * time.Hour},
		{"profile", CategoryProfile, "", 7 * 24 * time.Hour},
		{"intraday history", CategoryHistory, VariantIntraday, time.Hour},
		{"daily history", CategoryHistory, VariantDaily, 24 * time.Hour},
		{"history default variant", CategoryHistory, "", 24 * time.Hour},
		{"news", CategoryNews, "", 30 * time.Minute},
		{"ai analysis", CategoryAIAnalysis, "", 6 * time.Hour},
		{"unknown category", Category("bogus"), "", DefaultTTL},
		{"unknown variant falls to category default", CategoryQuote, Variant("bogus"), 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TTLFor(tt.cat, tt.v); got != tt.want {
				t.Errorf("TTLFor(%q, %q) = %v, want %v", tt.cat, tt.v, got, tt.want)
			}
		})
	}
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := ExpiresAt(now, 5*time.Minute); !got.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got, now.Add(5*time.Minute))
	}

	// A zero or negative TTL must not create a permanently-fresh entry.
	if got := ExpiresAt(now, 0); !got.Equal(now) {
		t.Errorf("ExpiresAt with zero TTL = %v, want %v", got, now)
	}
	if got := ExpiresAt(now, -time.Hour); !got.Equal(now) {
		t.Errorf("ExpiresAt with negative TTL = %v, want %v", got, now)
	}
}

func TestPriorityOf(t *testing.T) {
	tests := []struct {
		cat  Category
		want Priority
	}{
		{CategoryQuote, PriorityLow},
		{CategoryNews, PriorityLow},
		{CategoryHistory, PriorityMedium},
		{CategoryAIAnalysis, PriorityMedium},
		{CategoryFundamentals, PriorityHigh},
		{CategoryProfile, PriorityHigh},
		{Category("bogus"), PriorityLow},
	}

	for _, tt := range tests {
		if got := PriorityOf(tt.cat); got != tt.want {
			t.Errorf("PriorityOf(%q) = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestPriorityString(t *testing.T) {
	if PriorityLow.String() != "low" || PriorityMedium.String() != "medium" || PriorityHigh.String() != "high" {
		t.Error("unexpected priority strings")
	}
}
