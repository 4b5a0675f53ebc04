// Path: internal/scrape/rows.go
package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"chartwatch/internal/domain"
)

// Column layout of the kworb daily track table:
// Pos, P+, Artist and Title, Days, Pk, (x?), Streams, Streams+, 7Day, 7Day+, Total.
const (
	trackRankCell    = 0
	trackTitleCell   = 2
	trackStreamsCell = 6
	trackTotalCell   = 10
	trackMinCells    = 7

	artistRankCell      = 0
	artistNameCell      = 1
	artistListenersCell = 2
	artistDeltaCell     = 3
	artistMinCells      = 3
)

var (
	nonDigits = regexp.MustCompile(`[^\d]`)
	hasLetter = regexp.MustCompile(`[a-zA-Z]`)
)

// ValidName reports whether a scraped name is plausibly a real title or
// artist rather than a position-change symbol or a mis-aligned cell. The
// rules mirror the cleanup filter: at least two characters and at least one
// alphabetic character.
func ValidName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return len(trimmed) >= 2 && hasLetter.MatchString(trimmed)
}

// parseRank extracts a positive integer rank from a cell, tolerating stray
// markers around the number. Returns 0 when no usable rank is present.
func parseRank(cell string) int {
	digits := nonDigits.ReplaceAllString(cell, "")
	rank, err := strconv.Atoi(digits)
	if err != nil || rank <= 0 {
		return 0
	}
	return rank
}

// ParseArtistRows turns extracted listener-table cells into validated raw
// artist records. Invalid rows are counted, never fatal. The first row
// claiming a rank wins; later claimants are rejected. Source order is
// preserved; sorting and top-N truncation are the caller's job.
func ParseArtistRows(rows [][]string, floor int64) ([]domain.RawArtist, int) {
	records := make([]domain.RawArtist, 0, len(rows))
	rejected := 0
	seen := make(map[int]bool)

	for _, cells := range rows {
		if len(cells) < artistMinCells {
			rejected++
			continue
		}

		rank := parseRank(cells[artistRankCell])
		if rank == 0 {
			rejected++
			continue
		}
		if seen[rank] {
			rejected++
			continue
		}

		name := strings.TrimSpace(cells[artistNameCell])
		if !ValidName(name) {
			rejected++
			continue
		}

		listeners := NormalizeCount(cells[artistListenersCell])
		if listeners < floor {
			rejected++
			continue
		}

		var delta *int64
		if len(cells) > artistDeltaCell {
			delta = NormalizeSignedDelta(cells[artistDeltaCell])
		}

		seen[rank] = true
		records = append(records, domain.RawArtist{
			Name:             name,
			Rank:             rank,
			MonthlyListeners: listeners,
			ListenersDelta:   delta,
		})
	}

	return records, rejected
}

// ParseTrackRows turns extracted daily-chart cells into validated raw track
// records. The combined "Artist - Title" cell is split on the first " - ";
// when the separator is missing the whole string becomes the title and the
// artist is the Unknown sentinel. That fallback is a known limitation of the
// source layout, not a verified rule.
func ParseTrackRows(rows [][]string, floor int64) ([]domain.RawTrack, int) {
	records := make([]domain.RawTrack, 0, len(rows))
	rejected := 0
	seen := make(map[int]bool)

	for _, cells := range rows {
		if len(cells) < trackMinCells {
			rejected++
			continue
		}

		rank := parseRank(cells[trackRankCell])
		if rank == 0 {
			rejected++
			continue
		}
		if seen[rank] {
			rejected++
			continue
		}

		combined := strings.TrimSpace(cells[trackTitleCell])
		artist, title := splitArtistTitle(combined)
		if !ValidName(title) {
			rejected++
			continue
		}

		streams := NormalizeCount(cells[trackStreamsCell])
		if streams < floor {
			rejected++
			continue
		}

		var total *int64
		if len(cells) > trackTotalCell {
			if v := NormalizeCount(cells[trackTotalCell]); v > 0 {
				total = &v
			}
		}

		seen[rank] = true
		records = append(records, domain.RawTrack{
			Track:        title,
			Artist:       artist,
			Rank:         rank,
			DailyStreams: streams,
			TotalStreams: total,
		})
	}

	return records, rejected
}

func splitArtistTitle(combined string) (artist, title string) {
	parts := strings.SplitN(combined, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return domain.UnknownArtist, combined
}
