// Package record normalizes heterogeneous raw records into canonical
// document drafts with deterministic descriptive text.
//
// Source files do not share a naming convention ("Driver" vs "driver" vs
// "Name"), so field extraction goes through a table-driven alias resolver: a
// declarative map from canonical field name to an ordered list of accepted
// source keys. The descriptive sentence is the embedding input, so for a
// given raw record, category and season it must be byte-identical on every
// run.
package record

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pitwall/pitwall/internal/document"
)

// RawRecord is one arbitrarily-keyed row from a source file.
type RawRecord map[string]string

// Sentinel values substituted when no alias resolves for a canonical field.
const (
	UnknownDriver = "Unknown Driver"
	UnknownTeam   = "Unknown Team"
	UnknownTrack  = "Unknown Track"
)

// fieldAliases maps each canonical field to the source keys that may carry
// it, in preference order. Matching is case-insensitive on top of the listed
// variants.
var fieldAliases = map[string][]string{
	"driver":      {"driver", "Driver", "name", "Name", "driver_name", "DriverName", "full_name", "FullName"},
	"team":        {"team", "Team", "team_name", "TeamName", "constructor", "Constructor", "entrant", "Entrant"},
	"constructor": {"constructor", "Constructor", "chassis", "Chassis", "team", "Team"},
	"track":       {"track", "Track", "circuit", "Circuit", "circuit_name", "CircuitName", "venue", "Venue", "grand_prix", "GrandPrix", "race", "Race"},
	"position":    {"position", "Position", "pos", "Pos", "finishing_position", "FinishingPosition", "grid", "Grid", "rank", "Rank"},
	"points":      {"points", "Points", "pts", "Pts", "score", "Score"},
	"season":      {"season", "Season", "year", "Year"},
	"time":        {"time", "Time", "race_time", "RaceTime", "best_time", "BestTime", "q3", "Q3", "lap_time", "LapTime"},
	"date":        {"date", "Date", "race_date", "RaceDate", "start_date", "StartDate"},
	"nationality": {"nationality", "Nationality", "country", "Country"},
	"number":      {"number", "Number", "car_number", "CarNumber", "no", "No"},
	"wins":        {"wins", "Wins", "victories", "Victories"},
	"round":       {"round", "Round", "race_number", "RaceNumber"},
}

// Normalizer converts raw records into document drafts and descriptive text.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Field resolves a canonical field from the raw record by trying each known
// alias in order, then a case-insensitive pass over the record's own keys.
// It returns fallback when nothing matches.
func Field(raw RawRecord, canonical, fallback string) string {
	aliases, ok := fieldAliases[canonical]
	if !ok {
		aliases = []string{canonical}
	}
	for _, alias := range aliases {
		if v, ok := raw[alias]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, alias := range aliases {
		for k, v := range raw {
			if strings.EqualFold(k, alias) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return fallback
}

// Normalize produces a document draft (no ID, no embedding) and its
// descriptive sentence for the given category and season.
//
// Normalize never fails: when sentence generation cannot produce anything
// useful, a fallback sentence naming only category, season and source is
// used so the record survives with reduced fidelity instead of aborting the
// run.
func (n *Normalizer) Normalize(raw RawRecord, category, season, source string) document.Document {
	doc := document.Document{
		Source:      source,
		Category:    category,
		Season:      season,
		Driver:      Field(raw, "driver", ""),
		Team:        Field(raw, "team", ""),
		Constructor: Field(raw, "constructor", ""),
		Track:       Field(raw, "track", ""),
		Position:    normalizePosition(Field(raw, "position", "")),
		Points:      parsePoints(Field(raw, "points", "")),
		Metadata:    metadataFrom(raw),
	}

	text := Describe(raw, category, season)
	if strings.TrimSpace(text) == "" {
		n.logger.Warn("descriptive text generation produced nothing, using fallback",
			"category", category, "season", season, "source", source)
		text = fallbackSentence(category, season, source)
	}
	doc.Text = text
	return doc
}

// Describe builds the category-specific descriptive sentence. Identical
// inputs always yield the identical sentence.
func Describe(raw RawRecord, category, season string) string {
	switch category {
	case document.CategoryDrivers:
		return describeDriver(raw, season)
	case document.CategoryTeams:
		return describeTeam(raw, season)
	case document.CategoryRaceResults:
		return describeResult(raw, season, "race")
	case document.CategorySprintResults:
		return describeResult(raw, season, "sprint")
	case document.CategoryQualifyingResults:
		return describeQualifying(raw, season)
	case document.CategorySchedule:
		return describeSchedule(raw, season)
	case document.CategoryStandings:
		return describeStandings(raw, season)
	default:
		return describeGeneric(raw, category, season)
	}
}

func describeDriver(raw RawRecord, season string) string {
	driver := Field(raw, "driver", UnknownDriver)
	team := Field(raw, "team", UnknownTeam)

	var b strings.Builder
	fmt.Fprintf(&b, "%s drives for %s in the %s season", driver, team, season)
	if nat := Field(raw, "nationality", ""); nat != "" {
		fmt.Fprintf(&b, ", representing %s", nat)
	}
	if num := Field(raw, "number", ""); num != "" {
		fmt.Fprintf(&b, ", racing with car number %s", num)
	}
	if pts := Field(raw, "points", ""); pts != "" {
		fmt.Fprintf(&b, ", and has scored %s championship points", pts)
	}
	b.WriteString(".")
	return b.String()
}

func describeTeam(raw RawRecord, season string) string {
	team := Field(raw, "team", UnknownTeam)

	var b strings.Builder
	fmt.Fprintf(&b, "%s competes in the %s season", team, season)
	if nat := Field(raw, "nationality", ""); nat != "" {
		fmt.Fprintf(&b, " as a %s team", nat)
	}
	if wins := Field(raw, "wins", ""); wins != "" {
		fmt.Fprintf(&b, " with %s race wins", wins)
	}
	if pts := Field(raw, "points", ""); pts != "" {
		fmt.Fprintf(&b, " and %s constructor points", pts)
	}
	b.WriteString(".")
	return b.String()
}

func describeResult(raw RawRecord, season, kind string) string {
	driver := Field(raw, "driver", UnknownDriver)
	track := Field(raw, "track", UnknownTrack)
	team := Field(raw, "team", "")

	var b strings.Builder
	b.WriteString(driver)
	if team != "" {
		fmt.Fprintf(&b, " (%s)", team)
	}
	fmt.Fprintf(&b, " %s in the %s %s %s", positionPhrase(normalizePosition(Field(raw, "position", ""))), season, track, kind)
	if pts := Field(raw, "points", ""); pts != "" {
		fmt.Fprintf(&b, ", scoring %s points", pts)
	}
	if t := Field(raw, "time", ""); t != "" {
		fmt.Fprintf(&b, " with a time of %s", t)
	}
	b.WriteString(".")
	return b.String()
}

func describeQualifying(raw RawRecord, season string) string {
	driver := Field(raw, "driver", UnknownDriver)
	track := Field(raw, "track", UnknownTrack)

	var b strings.Builder
	fmt.Fprintf(&b, "%s qualified %s for the %s %s Grand Prix",
		driver, ordinalOrOutcome(normalizePosition(Field(raw, "position", ""))), season, track)
	if t := Field(raw, "time", ""); t != "" {
		fmt.Fprintf(&b, " with a best lap of %s", t)
	}
	b.WriteString(".")
	return b.String()
}

func describeSchedule(raw RawRecord, season string) string {
	track := Field(raw, "track", UnknownTrack)

	var b strings.Builder
	fmt.Fprintf(&b, "The %s %s Grand Prix", season, track)
	if round := Field(raw, "round", ""); round != "" {
		fmt.Fprintf(&b, ", round %s of the championship,", round)
	}
	if date := Field(raw, "date", ""); date != "" {
		fmt.Fprintf(&b, " takes place on %s", date)
	} else {
		b.WriteString(" is on the calendar")
	}
	b.WriteString(".")
	return b.String()
}

func describeStandings(raw RawRecord, season string) string {
	subject := Field(raw, "driver", "")
	if subject == "" {
		subject = Field(raw, "team", UnknownTeam)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s holds position %s in the %s championship standings",
		subject, Field(raw, "position", "?"), season)
	if pts := Field(raw, "points", ""); pts != "" {
		fmt.Fprintf(&b, " with %s points", pts)
	}
	if wins := Field(raw, "wins", ""); wins != "" {
		fmt.Fprintf(&b, " and %s wins", wins)
	}
	b.WriteString(".")
	return b.String()
}

// describeGeneric concatenates the first few non-empty fields in sorted key
// order so unknown categories still produce deterministic text.
func describeGeneric(raw RawRecord, category, season string) string {
	const maxFields = 5

	keys := make([]string, 0, len(raw))
	for k := range raw {
		if strings.TrimSpace(raw[k]) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.TrimSpace(raw[k])))
		if len(parts) == maxFields {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s record for the %s season. %s.", category, season, strings.Join(parts, ", "))
}

func fallbackSentence(category, season, source string) string {
	return fmt.Sprintf("A %s record from %s for the %s season.", category, source, season)
}

// positionPhrase renders a grammatical phrase for a finishing position or a
// terminal outcome.
func positionPhrase(position string) string {
	switch position {
	case document.PositionDNF:
		return "did not finish"
	case document.PositionDSQ:
		return "was disqualified"
	case document.PositionDNS:
		return "did not start"
	case "":
		return "competed"
	default:
		return fmt.Sprintf("finished in position %s", position)
	}
}

func ordinalOrOutcome(position string) string {
	switch position {
	case document.PositionDNF:
		return "but did not set a time"
	case document.PositionDSQ:
		return "but was disqualified"
	case document.PositionDNS:
		return "but did not start"
	case "":
		return "for the grid"
	default:
		return "in position " + position
	}
}

// normalizePosition folds the textual outcome variants seen across source
// files onto the canonical sentinels.
func normalizePosition(position string) string {
	switch strings.ToUpper(strings.TrimSpace(position)) {
	case "":
		return ""
	case "DNF", "RET", "RETIRED", "DID NOT FINISH":
		return document.PositionDNF
	case "DSQ", "DQ", "DISQUALIFIED":
		return document.PositionDSQ
	case "DNS", "DID NOT START":
		return document.PositionDNS
	}
	if n, err := strconv.Atoi(strings.TrimSpace(position)); err == nil && n > 0 {
		return strconv.Itoa(n)
	}
	return strings.TrimSpace(position)
}

func parsePoints(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// metadataFrom copies the raw record so the original row survives alongside
// the canonical fields.
func metadataFrom(raw RawRecord) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	md := make(map[string]string, len(raw))
	for k, v := range raw {
		md[k] = v
	}
	return md
}
