// Package models defines the feedback record and the request/response shapes
// used by the enrichment pipeline and the query API.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the coarse triage level of a negative remark.
type Severity string

// Severity levels, from a closed enum.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidSeverity reports whether s is one of the closed enum values.
func ValidSeverity(s Severity) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// ThemeVocabulary is the closed set of theme tags, in canonical order.
// "autre" is the catch-all and is only assigned when nothing else matches.
var ThemeVocabulary = []string{
	"attente", "service", "nourriture", "prix", "ambiance", "propreté",
	"quantité", "température", "accueil", "carte", "boisson", "dessert",
	"terrasse", "bruit", "décoration", "parking", "réservation", "enfants",
	"allergènes", "autre",
}

// MaxThemes caps how many themes a record may carry.
const MaxThemes = 5

// EmbeddingDimensions is the fixed length of feedback embedding vectors.
// It must match the vector(N) column in the feedbacks table.
const EmbeddingDimensions = 1536

// Feedback is a single feedback record. The capture flow creates it with all
// AI fields nil; the pipeline sets NormalizedText, SentimentScore, Themes and
// Severity together in one write, and Embedding in a second independent write.
type Feedback struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurantId"`
	ServiceType  string    `json:"serviceType"`
	PositiveText string    `json:"positiveText"`
	NegativeText *string   `json:"negativeText,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	// AI-enriched fields. NormalizedText == nil means "not yet processed".
	NormalizedText *string   `json:"normalizedText,omitempty"`
	SentimentScore *float64  `json:"sentimentScore,omitempty"`
	Themes         []string  `json:"themes,omitempty"`
	Severity       *Severity `json:"severity,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
}

// HasNegative reports whether the record carries non-empty negative text.
func (f *Feedback) HasNegative() bool {
	return f.NegativeText != nil && *f.NegativeText != ""
}

// CreateFeedbackRequest is the request to create a feedback record.
type CreateFeedbackRequest struct {
	RestaurantID uuid.UUID  `json:"restaurantId"`
	ServiceType  string     `json:"serviceType"`
	PositiveText string     `json:"positiveText"`
	NegativeText *string    `json:"negativeText,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// SentimentFilter selects records by presence of negative text.
// "positive" matches records with empty or absent negative text,
// "negative" matches records with non-empty negative text.
type SentimentFilter string

// Sentiment filter values.
const (
	SentimentAll      SentimentFilter = "all"
	SentimentPositive SentimentFilter = "positive"
	SentimentNegative SentimentFilter = "negative"
)

// ValidSentimentFilter reports whether s is a known filter value.
func ValidSentimentFilter(s SentimentFilter) bool {
	return s == SentimentAll || s == SentimentPositive || s == SentimentNegative
}

// DefaultSearchLimit is the similarity search limit when none is given.
const DefaultSearchLimit = 30

// SearchOptions are the optional filters for similarity search.
// RestaurantID equality and "embedding IS NOT NULL" are always applied.
type SearchOptions struct {
	Limit       int
	Sentiment   SentimentFilter
	DateFrom    *time.Time // inclusive
	DateTo      *time.Time // exclusive
	ServiceType string
}

// FeedbackWithSimilarity is one similarity search match. Similarity is
// 1 - cosine distance between the stored vector and the query vector.
type FeedbackWithSimilarity struct {
	Feedback
	Similarity float64 `json:"similarity"`
}

// ThemeCount is one aggregated (theme, count) pair, ordered by count desc.
type ThemeCount struct {
	Theme string `json:"theme"`
	Count int    `json:"count"`
}
