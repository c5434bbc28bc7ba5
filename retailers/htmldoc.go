package retailers

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlDoc is a thin wrapper over the parsed HTML tree so extractor
// heuristics work on typed nodes instead of raw string search.
type htmlDoc struct {
	root *html.Node
}

type htmlImage struct {
	Src    string
	Alt    string
	Class  string
	Width  string
	Height string
}

func parseHTML(s string) *htmlDoc {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}
	return &htmlDoc{root: root}
}

func (d *htmlDoc) walk(fn func(*html.Node)) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		fn(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(d.root)
}

// Images returns every img element in document order.
func (d *htmlDoc) Images() []htmlImage {
	var out []htmlImage
	d.walk(func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		var img htmlImage
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "src":
				img.Src = strings.TrimSpace(a.Val)
			case "alt":
				img.Alt = a.Val
			case "class":
				img.Class = a.Val
			case "width":
				img.Width = a.Val
			case "height":
				img.Height = a.Val
			}
		}
		out = append(out, img)
	})
	return out
}

// Text flattens the document to plain text, dropping script/style and
// inserting line breaks at block boundaries.
func (d *htmlDoc) Text() string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br", "p", "div", "tr", "li", "h1", "h2", "h3", "h4", "table":
				b.WriteByte('\n')
			case "td", "th":
				b.WriteByte(' ')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(d.root)
	return b.String()
}

func htmlToText(s string) string {
	doc := parseHTML(s)
	if doc == nil {
		return ""
	}
	return doc.Text()
}
