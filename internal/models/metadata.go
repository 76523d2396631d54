// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Well-known metadata keys. Any other key lands in EventMetadata.Extra.
const (
	MetaReferralDomain = "referralDomain"
	MetaCampaignID     = "campaignId"
	MetaShelfID        = "shelfId"
	MetaSearchQuery    = "searchQuery"
)

// EventMetadata carries the optional context attached to an engagement record.
// Known fields are typed; everything else is kept as strings in Extra. On the wire
// it is a single flat JSON object.
type EventMetadata struct {
	ReferralDomain string
	CampaignID     string
	ShelfID        string
	SearchQuery    string
	Extra          map[string]string
}

// IsZero reports whether no metadata is set.
func (m EventMetadata) IsZero() bool {
	return m.ReferralDomain == "" && m.CampaignID == "" && m.ShelfID == "" &&
		m.SearchQuery == "" && len(m.Extra) == 0
}

// Equal compares all typed fields and the extension map.
func (m EventMetadata) Equal(o EventMetadata) bool {
	if m.ReferralDomain != o.ReferralDomain || m.CampaignID != o.CampaignID ||
		m.ShelfID != o.ShelfID || m.SearchQuery != o.SearchQuery {
		return false
	}
	if len(m.Extra) != len(o.Extra) {
		return false
	}
	for k, v := range m.Extra {
		if ov, ok := o.Extra[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Get returns the value stored under key, typed or extension.
func (m EventMetadata) Get(key string) (string, bool) {
	var v string
	switch key {
	case MetaReferralDomain:
		v = m.ReferralDomain
	case MetaCampaignID:
		v = m.CampaignID
	case MetaShelfID:
		v = m.ShelfID
	case MetaSearchQuery:
		v = m.SearchQuery
	default:
		v, ok := m.Extra[key]
		return v, ok
	}
	return v, v != ""
}

// Set stores value under key, routing well-known keys to their typed field.
func (m *EventMetadata) Set(key, value string) {
	switch key {
	case MetaReferralDomain:
		m.ReferralDomain = value
	case MetaCampaignID:
		m.CampaignID = value
	case MetaShelfID:
		m.ShelfID = value
	case MetaSearchQuery:
		m.SearchQuery = value
	default:
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key] = value
	}
}

// Flatten returns every set key as a plain map.
func (m EventMetadata) Flatten() map[string]string {
	out := make(map[string]string, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	for k, v := range map[string]string{
		MetaReferralDomain: m.ReferralDomain,
		MetaCampaignID:     m.CampaignID,
		MetaShelfID:        m.ShelfID,
		MetaSearchQuery:    m.SearchQuery,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// MarshalJSON encodes the metadata as one flat object with sorted keys.
func (m EventMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

// UnmarshalJSON accepts a flat object. Non-string extension values are kept as
// their JSON text so that no information is dropped; null decodes to empty metadata.
func (m *EventMetadata) UnmarshalJSON(data []byte) error {
	*m = EventMetadata{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			switch k {
			case MetaReferralDomain, MetaCampaignID, MetaShelfID, MetaSearchQuery:
				return fmt.Errorf("metadata field %q must be a string", k)
			}
			s = string(bytes.TrimSpace(v))
		}
		m.Set(k, s)
	}
	return nil
}
