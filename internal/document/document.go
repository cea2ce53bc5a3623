// Package document defines the unit of storage and retrieval: a descriptive
// text with its vector embedding and motorsport attributes.
//
// Documents are created by the ingestion pipeline after normalization and
// embedding succeed, and are immutable once stored. Validation lives here so
// that every store backend enforces the same invariants at its boundary.
package document

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Document categories. The set is closed: a document carrying any other
// category is rejected at the store boundary.
const (
	CategoryDrivers           = "drivers"
	CategoryTeams             = "teams"
	CategoryRaceResults       = "race-results"
	CategoryQualifyingResults = "qualifying-results"
	CategorySprintResults     = "sprint-results"
	CategorySchedule          = "schedule"
	CategoryStandings         = "standings"
)

// Terminal race outcomes accepted in the Position field in place of a
// finishing position.
const (
	PositionDNF = "DNF" // did not finish
	PositionDSQ = "DSQ" // disqualified
	PositionDNS = "DNS" // did not start
)

// MinTextLength is the minimum rune count for a document's descriptive text.
// Anything shorter carries too little signal to be worth embedding.
const MinTextLength = 10

var (
	// ErrEmptyText indicates the descriptive text is empty or too short.
	ErrEmptyText = errors.New("document text too short")

	// ErrUnknownCategory indicates the category is outside the closed set.
	ErrUnknownCategory = errors.New("unknown document category")

	// ErrInvalidSeason indicates the season is not a 4-digit year.
	ErrInvalidSeason = errors.New("invalid season")

	// ErrDimensionMismatch indicates the embedding length differs from the
	// configured vector dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidPosition indicates the position is neither a positive
	// integer nor one of the terminal-outcome sentinels.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrNegativePoints indicates a negative points value.
	ErrNegativePoints = errors.New("points must not be negative")
)

var seasonPattern = regexp.MustCompile(`^\d{4}$`)

var validCategories = map[string]struct{}{
	CategoryDrivers:           {},
	CategoryTeams:             {},
	CategoryRaceResults:       {},
	CategoryQualifyingResults: {},
	CategorySprintResults:     {},
	CategorySchedule:          {},
	CategoryStandings:         {},
}

// Document is one stored unit of text, embedding and attributes.
//
// ID is assigned by the store on insert and is empty on drafts. Metadata
// preserves the raw source record for traceability.
type Document struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Embedding   []float32         `json:"embedding"`
	Source      string            `json:"source"`
	Category    string            `json:"category"`
	Season      string            `json:"season"`
	Track       string            `json:"track,omitempty"`
	Driver      string            `json:"driver,omitempty"`
	Team        string            `json:"team,omitempty"`
	Constructor string            `json:"constructor,omitempty"`
	Position    string            `json:"position,omitempty"`
	Points      float64           `json:"points"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ValidCategory reports whether category belongs to the closed category set.
func ValidCategory(category string) bool {
	_, ok := validCategories[category]
	return ok
}

// ValidSeason reports whether season is a well-formed 4-digit year.
func ValidSeason(season string) bool {
	return seasonPattern.MatchString(season)
}

// ValidPosition reports whether position is empty, a positive integer, or a
// terminal-outcome sentinel.
func ValidPosition(position string) bool {
	switch position {
	case "", PositionDNF, PositionDSQ, PositionDNS:
		return true
	}
	n, err := strconv.Atoi(position)
	return err == nil && n > 0
}

// Validate checks the document against the data-model invariants for the
// given vector dimension. It returns the first violation found.
func (d *Document) Validate(dims int) error {
	if len(strings.TrimSpace(d.Text)) < MinTextLength {
		return fmt.Errorf("%w: %d runes, need %d", ErrEmptyText, len([]rune(d.Text)), MinTextLength)
	}
	if !ValidCategory(d.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, d.Category)
	}
	if !ValidSeason(d.Season) {
		return fmt.Errorf("%w: %q", ErrInvalidSeason, d.Season)
	}
	if len(d.Embedding) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), dims)
	}
	if !ValidPosition(d.Position) {
		return fmt.Errorf("%w: %q", ErrInvalidPosition, d.Position)
	}
	if d.Points < 0 {
		return fmt.Errorf("%w: %v", ErrNegativePoints, d.Points)
	}
	return nil
}

// Categories returns the closed category set in stable order.
func Categories() []string {
	return []string{
		CategoryDrivers,
		CategoryTeams,
		CategoryRaceResults,
		CategoryQualifyingResults,
		CategorySprintResults,
		CategorySchedule,
		CategoryStandings,
	}
}
