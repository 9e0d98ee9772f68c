package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FirstText returns the first text node under `node` (in document order) that
// is not blank once trimmed with TrimMarks.
func FirstText(node *html.Node) (string, bool) {
	if node == nil {
		return "", false
	}
	if node.Type == html.TextNode {
		text := TrimMarks(node.Data)
		return text, text != ""
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		text, ok := FirstText(child)
		if ok {
			return text, true
		}
	}
	return "", false
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// TrimMarks strips non printable characters and outer whitespace, inner
// whitespace is kept as is.
func TrimMarks(s string) string {
	return strings.TrimSpace(removeNonPrintable(s))
}

// CleanText strips non printable characters (ex. bidi marks that game servers
// like to wrap names in), trims and collapses inner whitespace.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

// SelectionText returns FirstText of the first node in the selection, ok is
// false when the selection is empty or holds no text.
func SelectionText(sel *goquery.Selection) (text string, ok bool) {
	if sel.Length() == 0 {
		return "", false
	}
	return FirstText(sel.Nodes[0])
}
