// Package tracker stores the query audit trail: one QueryRecord per
// answered question, capturing what was asked, which memories backed the
// answer, and which provider tier produced it.
package tracker

import (
	"time"

	"github.com/google/uuid"
)

// Status records whether a completion provider produced the answer.
type Status string

const (
	// StatusProcessed marks answers produced by a completion provider.
	StatusProcessed Status = "processed"
	// StatusFailed marks answers where every provider tier failed or was
	// cooling down and the static template responded instead.
	StatusFailed Status = "failed"
)

// QueryRecord is one answered (or attempted) tracker query.
type QueryRecord struct {
	ID                uuid.UUID   `json:"id"`
	UserID            string      `json:"user_id"`
	QueryText         string      `json:"query_text"`
	LocationFilter    string      `json:"location_filter"`
	CommunityResponse string      `json:"community_response"`
	ModelResponse     string      `json:"model_response"`
	RelatedMemoryIDs  []uuid.UUID `json:"related_memory_ids"` // ranked, best match first
	Status            Status      `json:"status"`
	Source            string      `json:"source"` // provider tier that produced the answer
	CreatedAt         time.Time   `json:"created_at"`
}
