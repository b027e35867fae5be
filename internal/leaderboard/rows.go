// Package leaderboard reads and submits scores to the shared score sheet.
//
// The sheet is published as CSV whose header names vary between form
// revisions, so columns are located by pattern rather than position.
package leaderboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const defaultName = "Player"

// Row is one submitted game.
type Row struct {
	Timestamp string    `json:"timestamp"`
	At        time.Time `json:"at"` // zero when Timestamp could not be parsed
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	Props     int       `json:"props"`
	AvgSat    float64   `json:"avg_sat"`
	Year      int       `json:"year"`
	Version   string    `json:"version"`
}

// columns holds the header position of each field, -1 when absent.
type columns struct {
	ts, name, score, props, avgSat, year, ver int
}

var (
	reTimestamp = regexp.MustCompile(`(?i)tidst[aä]mpel|timestamp|time`)
	reName      = regexp.MustCompile(`(?i)^name$`)
	reScore     = regexp.MustCompile(`(?i)^score$`)
	reProps     = regexp.MustCompile(`(?i)^props?$`)
	reAvgSat    = regexp.MustCompile(`(?i)^avgsat$|avg.?sat|snittn[oö]jd`)
	reYear      = regexp.MustCompile(`(?i)^year$|[aå]r`)
	reVersion   = regexp.MustCompile(`(?i)^ver$|version`)
)

func indexHeader(header []string) columns {
	find := func(re *regexp.Regexp) int {
		return slices.IndexFunc(header, func(h string) bool {
			return re.MatchString(strings.ToLower(strings.TrimSpace(h)))
		})
	}
	return columns{
		ts:     find(reTimestamp),
		name:   find(reName),
		score:  find(reScore),
		props:  find(reProps),
		avgSat: find(reAvgSat),
		year:   find(reYear),
		ver:    find(reVersion),
	}
}

// ParseCSV reads every row of the sheet regardless of version.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	ix := indexHeader(header)

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		get := func(i int) string {
			if i >= 0 && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		score := number(get(ix.score))
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		name := get(ix.name)
		if name == "" {
			name = defaultName
		}
		ts := get(ix.ts)
		at, _ := ParseTimestamp(ts)
		rows = append(rows, Row{
			Timestamp: ts,
			At:        at,
			Name:      name,
			Score:     int64(math.Round(score)),
			Props:     int(number(get(ix.props))),
			AvgSat:    number(get(ix.avgSat)),
			Year:      int(number(get(ix.year))),
			Version:   get(ix.ver),
		})
	}
	return rows, nil
}

// number reads a sheet cell, ignoring spaces and thousands separators.
// Unparseable cells count as zero.
func number(s string) float64 {
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

var dottedTime = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(\d{2})\.(\d{2})\.(\d{2})$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
}

// ParseTimestamp understands the sheet's dotted times ("2025-08-22
// 00.14.31"), ISO 8601 and "YYYY-MM-DD HH:MM[:SS]". Times without a zone are
// read in local time, the way the sheet's form records them.
func ParseTimestamp(s string) (time.Time, bool) {
	return ParseTimestampIn(s, time.Local)
}

// ParseTimestampIn is ParseTimestamp with zone-less times read in loc. The
// result is always UTC.
func ParseTimestampIn(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = dottedTime.ReplaceAllString(s, "$1 $2:$3:$4")
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func normName(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}

// ForVersion keeps rows submitted by the given game version.
func ForVersion(rows []Row, version string) []Row {
	var out []Row
	for _, r := range rows {
		if strings.TrimSpace(r.Version) == version {
			out = append(out, r)
		}
	}
	return out
}

// beats reports whether a ranks above b: higher score, then more recent.
func beats(a, b Row) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.At.After(b.At)
}

// Top keeps each player's best row (case-insensitive name, ties go to the
// most recent) and orders them by score, then recency.
func Top(rows []Row) []Row {
	best := make(map[string]Row)
	var order []string
	for _, r := range rows {
		k := normName(r.Name)
		cur, ok := best[k]
		if !ok {
			order = append(order, k)
		}
		if !ok || beats(r, cur) {
			best[k] = r
		}
	}
	out := make([]Row, 0, len(best))
	for _, k := range order {
		out = append(out, best[k])
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		switch {
		case beats(a, b):
			return -1
		case beats(b, a):
			return 1
		}
		return 0
	})
	return out
}

// Stats summarises every game of a version, duplicates included.
type Stats struct {
	TotalGames  int   `json:"total_games"`
	UniqueNames int   `json:"unique_names"`
	Mean        int64 `json:"mean"`
	Median      int64 `json:"median"`
	TopScore    int64 `json:"top_score"`
}

// StatsOf computes Stats. The median of an even count is the upper middle.
func StatsOf(rows []Row) Stats {
	s := Stats{TotalGames: len(rows)}
	if len(rows) == 0 {
		return s
	}
	names := make(map[string]struct{})
	scores := make([]int64, 0, len(rows))
	var sum float64
	for _, r := range rows {
		names[normName(r.Name)] = struct{}{}
		scores = append(scores, r.Score)
		sum += float64(r.Score)
	}
	slices.Sort(scores)
	s.UniqueNames = len(names)
	s.Mean = int64(math.Round(sum / float64(len(scores))))
	s.Median = scores[len(scores)/2]
	s.TopScore = scores[len(scores)-1]
	return s
}
