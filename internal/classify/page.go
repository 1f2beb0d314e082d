package classify

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/vietddude/arcsign/internal/core/domain"
)

// StatusClass is the class of the element the user-center page uses for the sign-in badge.
const StatusClass = "sign-status"

// PageStatus reads the sign-in badge of the user-center page.
//
// Only the badge text counts as evidence. A page without the badge, or without a
// sign-in button, proves nothing and yields ok=false.
func PageStatus(body string) (domain.Outcome, bool) {
	text, found := StatusText(body)
	if !found {
		return domain.OutcomeUnknown, false
	}
	switch {
	case strings.Contains(text, "已签到"):
		return domain.OutcomeAlreadyDone, true
	case strings.Contains(text, "成功"):
		return domain.OutcomeJustSucceeded, true
	}
	return domain.OutcomeUnknown, false
}

// StatusText returns the trimmed text of the first element carrying StatusClass.
func StatusText(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	n := findByClass(doc, StatusClass)
	if n == nil {
		return "", false
	}
	return strings.TrimSpace(collectText(n)), true
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
