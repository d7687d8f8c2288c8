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

package extract

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	xhtml "golang.org/x/net/html"

	"urlmd/internal/apperr"
)

// xpathStepRe accepts only a restricted XPath subset: a step is an
// element name or "*", optionally followed by one
// positional predicate "[n]" or one attribute predicate
// ("[@attr='v']" or "[contains(@attr,'v')]"); steps are joined by "/"
// or "//"; a trailing "/text()" is tolerated and ignored (antchfx
// returns text nodes naturally via .Data).
var xpathStepRe = regexp.MustCompile(`^(\*|[A-Za-z][\w-]*)(\[\d+\]|\[@[\w-]+=(?:'[^']*'|"[^"]*")\]|\[contains\(@[\w-]+,\s*(?:'[^']*'|"[^"]*")\)\])?$`)

// ValidateXPath reports whether expr stays within the restricted
// subset this service supports, returning an UnsupportedXPath error
// describing the first offending step when it does not.
func ValidateXPath(expr string) error {
	trimmed := strings.TrimSuffix(strings.TrimSpace(expr), "/text()")

	// Splitting on "/" leaves an empty part wherever "//" occurs, so both
	// separators reduce to the same step list.
	for _, s := range strings.Split(trimmed, "/") {
		if s == "" {
			continue
		}
		if !xpathStepRe.MatchString(s) {
			return apperr.New(apperr.UnsupportedXPath, "unsupported xpath step: "+s)
		}
	}
	return nil
}

// XPath evaluates schema's fields against html using the restricted
// XPath subset, backed by antchfx/htmlquery for node selection and
// antchfx/xpath for compiled-expression reuse. Every selector/xpath
// string is validated before compilation so unsupported constructs
// surface as UnsupportedXPath rather than a confusing evaluator error.
func XPath(html string, schema Schema, selectorRoot string) (Result, error) {
	if err := tooLarge(html); err != nil {
		return nil, err
	}
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err)
	}

	root := doc
	base := selectorRoot
	if base == "" {
		base = schema.BaseXPath
	}
	if base != "" {
		if err := ValidateXPath(base); err != nil {
			return nil, err
		}
		if nodes := htmlquery.Find(doc, base); len(nodes) > 0 {
			root = nodes[0]
		}
	}

	result := make(Result, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Selector != "" {
			if err := ValidateXPath(f.Selector); err != nil {
				return nil, err
			}
		}
		if f.Multiple {
			var nodes []*xhtml.Node
			if f.Selector == "" {
				nodes = []*xhtml.Node{root}
			} else {
				nodes = htmlquery.Find(root, f.Selector)
			}
			values := make([]string, 0, len(nodes))
			for _, n := range nodes {
				values = append(values, extractXPathValue(n, f))
			}
			result[f.Name] = values
			continue
		}

		var node *xhtml.Node
		if f.Selector == "" {
			node = root
		} else {
			node = htmlquery.FindOne(root, f.Selector)
		}
		if node == nil {
			result[f.Name] = ""
			continue
		}
		result[f.Name] = extractXPathValue(node, f)
	}
	return result, nil
}

func extractXPathValue(n *xhtml.Node, f Field) string {
	switch f.Type {
	case FieldHTML:
		return htmlquery.OutputHTML(n, true)
	case FieldAttribute:
		return htmlquery.SelectAttr(n, f.Attribute)
	default:
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
}

// Compile validates expr against the restricted subset and compiles it
// via antchfx/xpath, for callers that want to pre-validate and reuse a
// compiled expression across many documents instead of calling XPath
// (which validates and compiles on every call through htmlquery).
func Compile(expr string) (*xpath.Expr, error) {
	if err := ValidateXPath(expr); err != nil {
		return nil, err
	}
	return xpath.Compile(expr)
}
