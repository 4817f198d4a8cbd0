package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteByte(' ')
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(` +`)

// Normalize drops non printable runes, turns non-breaking spaces into
// spaces and collapses runs of whitespace the way a browser renders
// them.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Text is the normalized text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	return Normalize(buffer.String())
}

// Cells returns the normalized text of each <td> in a table row.
func Cells(row *goquery.Selection) []string {
	tds := row.Find("td")
	cells := make([]string, tds.Length())
	tds.Each(func(i int, td *goquery.Selection) {
		cells[i] = Text(td)
	})
	return cells
}

// Cell returns cells[i] or "" when the row is too short.
func Cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}
