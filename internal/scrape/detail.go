// Path: internal/scrape/detail.go
package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"chartwatch/internal/domain"

	"golang.org/x/net/html"
)

// Per-artist detail pages: title cell first, then total and daily figures.
const detailMinCells = 3

var (
	trackHrefPattern = regexp.MustCompile(`track/([^/?.]+)`)
	videoHrefPattern = regexp.MustCompile(`video/([^/]+)\.html`)
)

// ParseTopSongs extracts the leading rows of an artist's top songs table:
// linked title, total streams, daily streams. Rows without a title or a
// positive total are skipped.
func ParseTopSongs(markup string, limit int) ([]domain.ArtistTopSong, error) {
	rows, err := extractLinkedRows(markup)
	if err != nil {
		return nil, err
	}

	songs := make([]domain.ArtistTopSong, 0, limit)
	for _, row := range rows {
		if len(songs) >= limit {
			break
		}
		if len(row.cells) < detailMinCells || row.cells[0] == "" {
			continue
		}
		total := parseDecimal(row.cells[1])
		if total <= 0 {
			continue
		}

		song := domain.ArtistTopSong{
			TrackName:    row.cells[0],
			TotalStreams: total,
			DailyStreams: parseDecimal(row.cells[2]),
		}
		if m := trackHrefPattern.FindStringSubmatch(row.href); m != nil {
			song.SpotifyURL = "https://open.spotify.com/track/" + m[1]
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// ParseTopVideos extracts the leading rows of an artist's top videos table:
// linked title, total views, yesterday's views.
func ParseTopVideos(markup string, limit int) ([]domain.ArtistTopVideo, error) {
	rows, err := extractLinkedRows(markup)
	if err != nil {
		return nil, err
	}

	videos := make([]domain.ArtistTopVideo, 0, limit)
	for _, row := range rows {
		if len(videos) >= limit {
			break
		}
		if len(row.cells) < detailMinCells || row.cells[0] == "" {
			continue
		}
		total := NormalizeCount(row.cells[1])
		if total <= 0 {
			continue
		}

		video := domain.ArtistTopVideo{
			VideoTitle:     row.cells[0],
			TotalViews:     total,
			YesterdayViews: NormalizeCount(row.cells[2]),
		}
		if m := videoHrefPattern.FindStringSubmatch(row.href); m != nil {
			video.YouTubeURL = "https://www.youtube.com/watch?v=" + m[1]
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// linkedRow is a table row whose first cell may carry a link.
type linkedRow struct {
	cells []string
	href  string
}

func extractLinkedRows(markup string) ([]linkedRow, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var rows []linkedRow
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			row := linkedRow{}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					if len(row.cells) == 0 {
						row.href = firstHref(c)
					}
					row.cells = append(row.cells, collapseText(c))
				}
			}
			if len(row.cells) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, nil
}

// firstHref returns the href of the first anchor under a node.
func firstHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" {
				return attr.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := firstHref(c); href != "" {
			return href
		}
	}
	return ""
}

// parseDecimal parses a comma-separated figure keeping its fractional part,
// the way detail pages print stream totals. Garbage yields 0.
func parseDecimal(text string) float64 {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
