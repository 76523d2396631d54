// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func intPtr(v int) *int { return &v }

func testImpression() Impression {
	return Impression{
		EntityID:          "book-42",
		SourceComponent:   "shelf-carousel",
		PageContext:       "/discover",
		TimestampMs:       1767225600000,
		ImpressionType:    ImpressionView,
		ContainerPosition: intPtr(3),
		ContainerType:     "carousel",
		ContainerID:       "trending",
		Metadata:          EventMetadata{CampaignID: "spring", Extra: map[string]string{"variant": "b"}},
	}
}

func TestImpressionTypeWeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  ImpressionType
		want float64
	}{
		{ImpressionView, 1.0},
		{ImpressionDetailExpand, 0.25},
		{ImpressionCardClick, 0.5},
		{ImpressionReferralClick, 1.0},
		{ImpressionType("scroll"), 0},
	}

	for _, tt := range tests {
		if got := tt.typ.Weight(); got != tt.want {
			t.Errorf("Weight(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestImpressionTypeCoalesces(t *testing.T) {
	t.Parallel()

	for _, typ := range []ImpressionType{ImpressionView, ImpressionCardClick, ImpressionReferralClick} {
		if !typ.Coalesces() {
			t.Errorf("Expected %q to coalesce", typ)
		}
	}
	if ImpressionDetailExpand.Coalesces() {
		t.Error("detail-expand must never coalesce")
	}
}

func TestImpressionEqual(t *testing.T) {
	t.Parallel()

	base := testImpression()

	tests := []struct {
		name   string
		mutate func(*Impression)
		equal  bool
	}{
		{"identical", func(*Impression) {}, true},
		{"timestamp differs", func(i *Impression) { i.TimestampMs++ }, false},
		{"position removed", func(i *Impression) { i.ContainerPosition = nil }, false},
		{"position differs", func(i *Impression) { i.ContainerPosition = intPtr(4) }, false},
		{"metadata extra differs", func(i *Impression) { i.Metadata = EventMetadata{CampaignID: "spring"} }, false},
		{"type differs", func(i *Impression) { i.ImpressionType = ImpressionCardClick }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testImpression()
			tt.mutate(&other)
			if got := base.Equal(other); got != tt.equal {
				t.Errorf("Equal() = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestImpressionKeyIgnoresTimestamp(t *testing.T) {
	t.Parallel()

	a := testImpression()
	b := testImpression()
	b.TimestampMs += 5000
	b.ContainerPosition = intPtr(9)

	if a.Key() != b.Key() {
		t.Error("Expected impressions differing only in timestamp and position to share a key")
	}
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	a := testImpression()
	b := testImpression()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Expected equal impressions to share a fingerprint")
	}

	b.TimestampMs++
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("Expected different timestamps to change the fingerprint")
	}

	c := ClickThrough{EntityID: a.EntityID, SourceComponent: a.SourceComponent, TimestampMs: a.TimestampMs}
	if c.Fingerprint() == a.Fingerprint() {
		t.Error("Expected fingerprints to be namespaced by record kind")
	}
}

func TestClickThroughSubmission(t *testing.T) {
	t.Parallel()

	c := ClickThrough{
		EntityID:        "book-7",
		SourceComponent: "review-card",
		ReferrerContext: "/reviews/9",
		TimestampMs:     1767225600000,
		Metadata:        EventMetadata{ReferralDomain: "bookshop.example"},
	}

	sub := c.Submission()
	if !sub.IsReferral {
		t.Error("Expected click with a referral domain to be a referral")
	}
	if sub.Referrer != "/reviews/9" || sub.Source != "review-card" {
		t.Errorf("Unexpected submission fields: %+v", sub)
	}

	c.Metadata = EventMetadata{}
	if c.Submission().IsReferral {
		t.Error("Expected click without a referral domain to not be a referral")
	}
}

func TestImpressionSubmissionWeight(t *testing.T) {
	t.Parallel()

	i := testImpression()
	i.ImpressionType = ImpressionDetailExpand
	sub := i.Submission()
	if sub.Weight != 0.25 {
		t.Errorf("Expected weight 0.25, got %v", sub.Weight)
	}
	if sub.Context != i.PageContext || sub.Type != ImpressionDetailExpand {
		t.Errorf("Unexpected submission fields: %+v", sub)
	}
}

func TestEventMetadataJSON(t *testing.T) {
	t.Parallel()

	input := `{"referralDomain":"bookshop.example","shelfId":"s-1","variant":"b","rank":3,"flag":true}`

	var m EventMetadata
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.ReferralDomain != "bookshop.example" || m.ShelfID != "s-1" {
		t.Errorf("Typed fields not populated: %+v", m)
	}
	if m.Extra["variant"] != "b" || m.Extra["rank"] != "3" || m.Extra["flag"] != "true" {
		t.Errorf("Extension map not populated: %+v", m.Extra)
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"flag":"true","rank":"3","referralDomain":"bookshop.example","shelfId":"s-1","variant":"b"}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestEventMetadataRejectsTypedNonString(t *testing.T) {
	t.Parallel()

	var m EventMetadata
	if err := json.Unmarshal([]byte(`{"referralDomain":42}`), &m); err == nil {
		t.Error("Expected error for non-string referralDomain")
	}
	if err := json.Unmarshal([]byte(`["a"]`), &m); err == nil {
		t.Error("Expected error for non-object metadata")
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil || !m.IsZero() {
		t.Errorf("Expected null to decode to empty metadata, got %+v (%v)", m, err)
	}
}

func TestEventMetadataGetSet(t *testing.T) {
	t.Parallel()

	var m EventMetadata
	m.Set(MetaSearchQuery, "dune")
	m.Set("utm_source", "newsletter")

	if m.SearchQuery != "dune" {
		t.Errorf("Expected SearchQuery to be set, got %q", m.SearchQuery)
	}
	if v, ok := m.Get("utm_source"); !ok || v != "newsletter" {
		t.Errorf("Get(utm_source) = %q, %v", v, ok)
	}
	if _, ok := m.Get(MetaCampaignID); ok {
		t.Error("Expected unset campaignId to be absent")
	}
}

func TestSentimentLevelRank(t *testing.T) {
	t.Parallel()

	for i, level := range SentimentLevels {
		rank, ok := level.Rank()
		if !ok || rank != i-3 {
			t.Errorf("Rank(%s) = %d, %v, want %d", level, rank, ok, i-3)
		}
	}
	if _, ok := SentimentUndetermined.Rank(); ok {
		t.Error("undetermined must not have a rank")
	}
	if SentimentUndetermined.Extremity() != -1 {
		t.Error("undetermined must have extremity -1")
	}
	if SentimentVeryNegative.Extremity() != 2 {
		t.Errorf("Expected extremity 2, got %d", SentimentVeryNegative.Extremity())
	}
	if _, err := ParseSentimentLevel("great"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestCriterionCountsScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts CriterionCounts
		score  float64
		total  int
	}{
		{"empty", CriterionCounts{}, 0, 0},
		{"all positive", CriterionCounts{Positive: 10}, 1, 10},
		{"all negative", CriterionCounts{Negative: 4}, -1, 4},
		{"balanced with neutral", CriterionCounts{Positive: 3, Negative: 3, Neutral: 4}, 0, 10},
		{"mostly positive", CriterionCounts{Positive: 96, Negative: 4}, 0.92, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.Total(); got != tt.total {
				t.Errorf("Total() = %d, want %d", got, tt.total)
			}
			if got := tt.counts.Score(); got != tt.score {
				t.Errorf("Score() = %v, want %v", got, tt.score)
			}
		})
	}
}
