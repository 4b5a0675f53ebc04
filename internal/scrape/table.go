// Path: internal/scrape/table.go
package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractRows walks every <table> in the markup and returns, for each <tr>,
// the trimmed text of its <td> cells. Header rows carry <th> cells only and
// come back empty, so they are dropped here rather than by the caller.
func ExtractRows(markup string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			cells := cellTexts(n)
			if len(cells) > 0 {
				rows = append(rows, cells)
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

// cellTexts collects the text of each <td> directly inside a row, in order.
func cellTexts(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, collapseText(c))
		}
	}
	return cells
}

// collapseText concatenates all descendant text nodes and collapses runs of
// whitespace, matching what a browser renders for the cell.
func collapseText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
