// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package models

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// ImpressionType classifies how a book was seen.
type ImpressionType string

const (
	ImpressionView          ImpressionType = "view"
	ImpressionDetailExpand  ImpressionType = "detail-expand"
	ImpressionCardClick     ImpressionType = "card-click"
	ImpressionReferralClick ImpressionType = "referral-click"
)

// impressionWeights is the weighting policy applied at submission time.
var impressionWeights = map[ImpressionType]float64{
	ImpressionView:          1.0,
	ImpressionDetailExpand:  0.25,
	ImpressionCardClick:     0.5,
	ImpressionReferralClick: 1.0,
}

// Valid reports whether t is one of the known impression types.
func (t ImpressionType) Valid() bool {
	_, ok := impressionWeights[t]
	return ok
}

// Weight returns the contribution of a single impression of this type.
// Unknown types weigh zero.
func (t ImpressionType) Weight() float64 {
	return impressionWeights[t]
}

// Coalesces reports whether repeated impressions of this type collapse into one
// pending record. Detail-expand events are always distinct.
func (t ImpressionType) Coalesces() bool {
	return t != ImpressionDetailExpand
}

// Impression is a locally queued record of a book being seen.
type Impression struct {
	EntityID          string         `json:"entityId" validate:"required"`
	SourceComponent   string         `json:"sourceComponent" validate:"required"`
	PageContext       string         `json:"pageContext"`
	TimestampMs       int64          `json:"timestampMs" validate:"gt=0"`
	ImpressionType    ImpressionType `json:"impressionType" validate:"required,impressiontype"`
	ContainerPosition *int           `json:"containerPosition,omitempty" validate:"omitempty,gte=0"`
	ContainerType     string         `json:"containerType,omitempty"`
	ContainerID       string         `json:"containerId,omitempty"`
	Metadata          EventMetadata  `json:"metadata"`
}

// ImpressionKey identifies impressions that coalesce while pending.
type ImpressionKey struct {
	EntityID        string
	SourceComponent string
	PageContext     string
	ImpressionType  ImpressionType
}

// Key returns the deduplication key of the impression.
func (i Impression) Key() ImpressionKey {
	return ImpressionKey{
		EntityID:        i.EntityID,
		SourceComponent: i.SourceComponent,
		PageContext:     i.PageContext,
		ImpressionType:  i.ImpressionType,
	}
}

// Weight returns the weight of the impression under the current policy.
func (i Impression) Weight() float64 {
	return i.ImpressionType.Weight()
}

// Equal reports full field equality, timestamp included.
func (i Impression) Equal(o Impression) bool {
	return i.EntityID == o.EntityID &&
		i.SourceComponent == o.SourceComponent &&
		i.PageContext == o.PageContext &&
		i.TimestampMs == o.TimestampMs &&
		i.ImpressionType == o.ImpressionType &&
		equalPosition(i.ContainerPosition, o.ContainerPosition) &&
		i.ContainerType == o.ContainerType &&
		i.ContainerID == o.ContainerID &&
		i.Metadata.Equal(o.Metadata)
}

// Fingerprint returns a stable hex digest of the record's canonical JSON form.
// It is used as the idempotency key on submission and to key retry bookkeeping.
func (i Impression) Fingerprint() string {
	return fingerprint("impression", i)
}

// Submission builds the ingestion payload for the impression, attaching its weight.
func (i Impression) Submission() ImpressionSubmission {
	return ImpressionSubmission{
		Source:        i.SourceComponent,
		Context:       i.PageContext,
		Type:          i.ImpressionType,
		Weight:        i.Weight(),
		Position:      i.ContainerPosition,
		ContainerType: i.ContainerType,
		ContainerID:   i.ContainerID,
		Metadata:      i.Metadata,
		TimestampMs:   i.TimestampMs,
	}
}

// ClickThrough is a locally queued record of a reader following a link. Click-throughs
// are never deduplicated.
type ClickThrough struct {
	EntityID          string        `json:"entityId" validate:"required"`
	SourceComponent   string        `json:"sourceComponent" validate:"required"`
	ReferrerContext   string        `json:"referrerContext"`
	TimestampMs       int64         `json:"timestampMs" validate:"gt=0"`
	ContainerPosition *int          `json:"containerPosition,omitempty" validate:"omitempty,gte=0"`
	ContainerType     string        `json:"containerType,omitempty"`
	ContainerID       string        `json:"containerId,omitempty"`
	Metadata          EventMetadata `json:"metadata"`
}

// IsReferral reports whether the click carries a referral domain.
func (c ClickThrough) IsReferral() bool {
	return c.Metadata.ReferralDomain != ""
}

// Equal reports full field equality, timestamp included.
func (c ClickThrough) Equal(o ClickThrough) bool {
	return c.EntityID == o.EntityID &&
		c.SourceComponent == o.SourceComponent &&
		c.ReferrerContext == o.ReferrerContext &&
		c.TimestampMs == o.TimestampMs &&
		equalPosition(c.ContainerPosition, o.ContainerPosition) &&
		c.ContainerType == o.ContainerType &&
		c.ContainerID == o.ContainerID &&
		c.Metadata.Equal(o.Metadata)
}

// Fingerprint returns a stable hex digest of the record's canonical JSON form.
func (c ClickThrough) Fingerprint() string {
	return fingerprint("click_through", c)
}

// Submission builds the ingestion payload for the click-through.
func (c ClickThrough) Submission() ClickThroughSubmission {
	return ClickThroughSubmission{
		Source:        c.SourceComponent,
		Referrer:      c.ReferrerContext,
		Position:      c.ContainerPosition,
		ContainerType: c.ContainerType,
		ContainerID:   c.ContainerID,
		Metadata:      c.Metadata,
		IsReferral:    c.IsReferral(),
		TimestampMs:   c.TimestampMs,
	}
}

func equalPosition(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func fingerprint(kind string, v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = nil // record types here always marshal
	}
	sum := sha256.New()
	sum.Write([]byte(kind))
	sum.Write([]byte{0})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil))
}
