// Copyright 2025 The urlmd Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package convert

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ConvertHTML is this repository's implementation of the html→markdown
// black-box collaborator treats as out-of-scope (it names
// only the {markdown, title, contentHtml} interface, not an algorithm).
// It walks the parsed DOM tree directly rather than leaning on a
// byte-regex pass, the same structural approach goquery's own selector
// engine takes over golang.org/x/net/html's tokenizer.
func ConvertHTML(htmlDoc string, selector string) (markdown, title, contentHTML string, err error) {
	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(htmlDoc))
	if parseErr != nil {
		return "", "", "", parseErr
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); title == "" {
		title = h1
	}

	root := doc.Selection
	if selector != "" {
		if sel := doc.Find(selector); sel.Length() > 0 {
			root = sel
		}
	}
	if root.Length() == 0 || root.Is("html") {
		if body := doc.Find("body"); body.Length() > 0 {
			root = body
		}
	}

	contentHTML, _ = goquery.OuterHtml(root.First())

	var b strings.Builder
	root.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			renderNode(&b, n, 0)
		}
	})

	return strings.TrimSpace(collapseBlankLines(b.String())), title, contentHTML, nil
}

// renderNode emits a markdown-ish rendering of n and its children,
// mirroring the handful of block/inline element rules a
// readability+turndown pipeline applies (headings, paragraphs, lists,
// links, emphasis, code, blockquotes, images).
func renderNode(b *strings.Builder, n *html.Node, listDepth int) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		// fallthrough to element handling below
	default:
		renderChildren(b, n, listDepth)
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Head:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.DataAtom - atom.H1 + 1)
		b.WriteString("\n" + strings.Repeat("#", level) + " ")
		renderChildren(b, n, listDepth)
		b.WriteString("\n\n")
	case atom.P, atom.Div:
		renderChildren(b, n, listDepth)
		b.WriteString("\n\n")
	case atom.Br:
		b.WriteString("\n")
	case atom.Strong, atom.B:
		b.WriteString("**")
		renderChildren(b, n, listDepth)
		b.WriteString("**")
	case atom.Em, atom.I:
		b.WriteString("_")
		renderChildren(b, n, listDepth)
		b.WriteString("_")
	case atom.Code:
		b.WriteString("`")
		renderChildren(b, n, listDepth)
		b.WriteString("`")
	case atom.Pre:
		b.WriteString("\n```\n")
		renderChildren(b, n, listDepth)
		b.WriteString("\n```\n\n")
	case atom.Blockquote:
		b.WriteString("\n> ")
		renderChildren(b, n, listDepth)
		b.WriteString("\n\n")
	case atom.A:
		href := attrValue(n, "href")
		b.WriteString("[")
		renderChildren(b, n, listDepth)
		b.WriteString("](" + href + ")")
	case atom.Img:
		alt := attrValue(n, "alt")
		src := attrValue(n, "src")
		b.WriteString("![" + alt + "](" + src + ")")
	case atom.Li:
		b.WriteString("\n" + strings.Repeat("  ", listDepth) + "- ")
		renderChildren(b, n, listDepth+1)
	case atom.Ul, atom.Ol:
		renderChildren(b, n, listDepth+1)
		b.WriteString("\n")
	default:
		renderChildren(b, n, listDepth)
	}
}

func renderChildren(b *strings.Builder, n *html.Node, listDepth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c, listDepth)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
