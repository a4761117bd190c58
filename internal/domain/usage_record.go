package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one row of advertising usage data taken from a batch.
// Records are immutable once written.
type UsageRecord struct {
	ID          uuid.UUID `json:"id"`
	BatchID     uuid.UUID `json:"batch_id"`
	Advertiser  string    `json:"advertiser"`
	Brand       string    `json:"brand"`
	StartDate   time.Time `json:"start"`
	EndDate     time.Time `json:"end"`
	Format      string    `json:"format"`
	Platform    string    `json:"platform"`
	Impressions float64   `json:"impr"`
	CreatedAt   time.Time `json:"created_at"`
}

// YearlyImpressions is the impression total for one calendar year of start dates.
type YearlyImpressions struct {
	Year             int     `json:"year"`
	TotalImpressions float64 `json:"total_impressions"`
}

// RecordFilter narrows usage record listings.
type RecordFilter struct {
	BatchID *uuid.UUID
}
